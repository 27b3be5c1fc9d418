// Package version reports the version of lynx built into the running binary.
package version

import (
	"runtime/debug"
	"strings"
)

// Default is the version returned when the build info carries none.
const Default = "dev"

// version is set with `-ldflags "-X github.com/lynxgpu/lynx/internal/version.version=v1.2.3"`.
var version string

// lynxModule is the module path of this repository.
const lynxModule = "github.com/lynxgpu/lynx"

// GetLynxVersion returns the version of lynx, either the one set at link time, the one
// recorded by `go install`, or the one a dependent module requires.
func GetLynxVersion() string {
	if version != "" {
		return version
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return Default
	}
	return fromBuildInfo(info)
}

func fromBuildInfo(info *debug.BuildInfo) string {
	if info.Main.Path == lynxModule && !versionMissing(info.Main.Version) {
		return info.Main.Version
	}
	for _, dep := range info.Deps {
		if dep.Path != lynxModule {
			continue
		}
		if dep.Replace != nil && !versionMissing(dep.Replace.Version) {
			return dep.Replace.Version
		}
		if !versionMissing(dep.Version) {
			return dep.Version
		}
	}
	return Default
}

func versionMissing(v string) bool {
	v = strings.TrimSpace(v)
	return v == "" || v == "(devel)"
}
