package system

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// AllowList 自定义命令白名单，命令名 -> argv
// 命令名不区分大小写，argv 直接执行，不经过shell
type AllowList struct {
	commands map[string][]string
}

// allowListFile 白名单文件格式
//
//	commands:
//	  prune: ["docker", "system", "prune", "-f"]
type allowListFile struct {
	Commands map[string][]string `yaml:"commands"`
}

// NewAllowList 合并配置中的白名单与白名单文件，文件中的同名条目覆盖配置
func NewAllowList(inline map[string][]string, file string) (*AllowList, error) {
	a := &AllowList{commands: make(map[string][]string)}
	for name, argv := range inline {
		if err := a.add(name, argv); err != nil {
			return nil, err
		}
	}
	if file == "" {
		return a, nil
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read allowlist file: %w", err)
	}
	var parsed allowListFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse allowlist file %s: %w", file, err)
	}
	for name, argv := range parsed.Commands {
		if err := a.add(name, argv); err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}
	}
	return a, nil
}

func (a *AllowList) add(name string, argv []string) error {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return fmt.Errorf("custom command with empty name")
	}
	if len(argv) == 0 || strings.TrimSpace(argv[0]) == "" {
		return fmt.Errorf("custom command %q has empty argv", name)
	}
	a.commands[key] = append([]string(nil), argv...)
	return nil
}

// Lookup 返回命令对应的 argv 副本
func (a *AllowList) Lookup(name string) ([]string, bool) {
	if a == nil {
		return nil, false
	}
	argv, ok := a.commands[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, false
	}
	return append([]string(nil), argv...), true
}

// Allowed 命令是否在白名单中
func (a *AllowList) Allowed(name string) bool {
	_, ok := a.Lookup(name)
	return ok
}

// Names 白名单中的命令名，已排序
func (a *AllowList) Names() []string {
	if a == nil {
		return nil
	}
	names := make([]string, 0, len(a.commands))
	for name := range a.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
