// Package version holds build metadata stamped in with -ldflags.
package version

var (
	Version   = ""
	Commit    = ""
	BuildTime = ""
)

type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	BuildTime string `json:"build_time,omitempty"`
}

// Resolve returns the stamped metadata, reporting "dev" for unstamped builds.
func Resolve() Info {
	info := Info{Version: Version, Commit: Commit, BuildTime: BuildTime}
	if info.Version == "" {
		info.Version = "dev"
	}
	return info
}

func String() string {
	info := Resolve()
	if info.Commit == "" {
		return info.Version
	}
	c := info.Commit
	if len(c) > 12 {
		c = c[:12]
	}
	return info.Version + " (" + c + ")"
}
