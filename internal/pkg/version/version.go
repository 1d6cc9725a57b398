// ### 发布流程
// 1. **更新版本号**：修改 `internal/pkg/version/version.go`
// 2. **构建时注入**：go build -ldflags "-X nodeagent/internal/pkg/version.GitCommit=..."
// 3. **推送代码和 Tag**：推送到远程仓库

package version

import "runtime"

var (
	Version         = "1.2.0" // 版本号 -- 发布时候更新版本号
	ProtocolVersion = "1"     // 与采集端通信的协议版本
	BuildTime       string
	GitCommit       string
	GoVersion       = runtime.Version()
)

func GetVersion() string {
	return Version
}

// GetUserAgent websocket握手时携带的标识
func GetUserAgent() string {
	return "NodeAgent/" + Version
}

// Info 版本与协议信息，version 命令和状态接口共用
type Info struct {
	Version         string `json:"version"`
	ProtocolVersion string `json:"protocol_version"`
	UserAgent       string `json:"user_agent"`
	BuildTime       string `json:"build_time,omitempty"`
	GitCommit       string `json:"git_commit,omitempty"`
	GoVersion       string `json:"go_version"`
	Platform        string `json:"platform"`
}

// Get 当前构建的版本信息，未注入的构建字段为空
func Get() Info {
	return Info{
		Version:         Version,
		ProtocolVersion: ProtocolVersion,
		UserAgent:       GetUserAgent(),
		BuildTime:       BuildTime,
		GitCommit:       GitCommit,
		GoVersion:       GoVersion,
		Platform:        runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// Rows 按显示顺序的键值对，未注入的字段显示为 unknown
func (i Info) Rows() [][]string {
	orUnknown := func(s string) string {
		if s == "" {
			return "unknown"
		}
		return s
	}
	return [][]string{
		{"Version", i.Version},
		{"Protocol", i.ProtocolVersion},
		{"User-Agent", i.UserAgent},
		{"Build Time", orUnknown(i.BuildTime)},
		{"Git Commit", orUnknown(i.GitCommit)},
		{"Go", i.GoVersion},
		{"Platform", i.Platform},
	}
}
