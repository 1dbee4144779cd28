// Package version 构建版本信息
package version

import (
	"runtime/debug"
	"strings"
)

var (
	// Version 版本号，构建时通过 -ldflags 注入，未注入时取模块版本
	Version = ""

	// BuildTime 构建时间，通过 -ldflags 注入
	BuildTime = ""

	// GitCommit Git 提交哈希，通过 -ldflags 注入，未注入时取 vcs.revision
	GitCommit = ""
)

func init() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	if Version == "" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		Version = info.Main.Version
	}
	if GitCommit == "" {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" {
				GitCommit = s.Value
			}
		}
	}
}

// GetVersion 完整版本信息
func GetVersion() string {
	v := strings.TrimPrefix(Version, "v")
	if v == "" {
		v = "dev"
	}
	out := "v" + v
	if BuildTime != "" {
		out += " (built " + BuildTime + ")"
	}
	if GitCommit != "" {
		commit := GitCommit
		if len(commit) > 8 {
			commit = commit[:8]
		}
		out += " commit " + commit
	}
	return out
}
