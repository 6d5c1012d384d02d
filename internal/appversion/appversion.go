// Package appversion exposes the version stamped into release binaries.
package appversion

// version is overridden at link time through -ldflags; development builds
// report "dev".
var version = "dev" //nolint:gochecknoglobals // ldflags needs a package-level var

// String reports the running binary's version.
func String() string {
	return version
}
