package wsprbeacon

import (
	"fmt"
	"runtime/debug"
	"strconv"
)

// Set at build time via `-ldflags "-X 'github.com/doismellburning/wsprbeacon/src.WSPRBEACON_VERSION=X'"`
var WSPRBEACON_VERSION string

func buildSetting(bi *debug.BuildInfo, key string, defaultValue string) string {
	if bi == nil {
		return defaultValue
	}

	for _, bs := range bi.Settings {
		if bs.Key == key {
			return bs.Value
		}
	}

	return defaultValue
}

// VersionString describes this build, e.g.
// "wsprbeacon 1.2 (revision abc123, built at 2026-01-01T00:00:00Z)".
func VersionString() string {
	var buildInfo, _ = debug.ReadBuildInfo()

	var (
		buildTime       = buildSetting(buildInfo, "vcs.time", "UNKNOWN")
		buildCommit     = buildSetting(buildInfo, "vcs.revision", "UNKNOWN")
		dirtyStr        = buildSetting(buildInfo, "vcs.modified", "INVALID")
		dirty, dirtyErr = strconv.ParseBool(dirtyStr)
	)

	if dirty {
		buildCommit += "-DIRTY"
	} else if dirtyErr != nil {
		buildCommit += "-UNKNOWNDIRTY"
	}

	var version = WSPRBEACON_VERSION
	if version == "" {
		version = "!UNKNOWN!"
	}

	return fmt.Sprintf("wsprbeacon %s (revision %s, built at %s)", version, buildCommit, buildTime)
}
