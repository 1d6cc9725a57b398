package task

import (
	"fmt"
	"strings"

	"nodeagent/internal/pkg/protocol"
)

// CustomPolicy 自定义命令白名单
type CustomPolicy interface {
	Allowed(name string) bool
}

// InvalidCommandError 命令类型与目标组合不合法，执行器不会被调用
type InvalidCommandError struct {
	Reason string
}

func (e *InvalidCommandError) Error() string {
	return e.Reason
}

// targetRule 某类命令对各目标范围的判定，不在表中的范围不合法
// 值为空串表示合法，否则为拒绝原因
type targetRule struct {
	ignoreTarget bool
	scopes       map[protocol.Scope]string
}

var validityTable = map[protocol.Op]targetRule{
	protocol.OpStart: {scopes: map[protocol.Scope]string{
		protocol.ScopeUnit:     "",
		protocol.ScopeAllUnits: "",
		protocol.ScopeHost:     "Start does not accept target Server",
	}},
	protocol.OpStop: {scopes: map[protocol.Scope]string{
		protocol.ScopeUnit:     "",
		protocol.ScopeAllUnits: "",
		protocol.ScopeHost:     "Stop does not accept target Server",
	}},
	protocol.OpRestart: {scopes: map[protocol.Scope]string{
		protocol.ScopeUnit:     "",
		protocol.ScopeAllUnits: "",
		protocol.ScopeHost:     "restart of the host is not supported; use RebootServer",
	}},
	protocol.OpPayout: {scopes: map[protocol.Scope]string{
		protocol.ScopeUnit:     "",
		protocol.ScopeAllUnits: "Payout requires a single node target; use PayoutAll",
		protocol.ScopeHost:     "Payout requires a single node target",
	}},
	protocol.OpPayoutAll:  {ignoreTarget: true},
	protocol.OpRebootHost: {ignoreTarget: true},
	protocol.OpCustom:     {ignoreTarget: true},
}

// Validate 执行前检查命令，返回 *InvalidCommandError
func Validate(cmd protocol.Command, policy CustomPolicy) error {
	rule, ok := validityTable[cmd.Kind.Op]
	if !ok {
		return &InvalidCommandError{Reason: fmt.Sprintf("unknown command kind %s", cmd.Kind)}
	}

	if !rule.ignoreTarget {
		reason, ok := rule.scopes[cmd.Target.Scope]
		if !ok {
			return &InvalidCommandError{Reason: fmt.Sprintf("%s does not accept target %s", cmd.Kind, cmd.Target)}
		}
		if reason != "" {
			return &InvalidCommandError{Reason: reason}
		}
		if cmd.Target.Scope == protocol.ScopeUnit && strings.TrimSpace(cmd.Target.Unit) == "" {
			return &InvalidCommandError{Reason: "node name must not be empty"}
		}
	}

	if cmd.Kind.Op == protocol.OpCustom {
		if strings.TrimSpace(cmd.Kind.Name) == "" {
			return &InvalidCommandError{Reason: "custom command name must not be empty"}
		}
		if policy == nil || !policy.Allowed(cmd.Kind.Name) {
			return &InvalidCommandError{Reason: fmt.Sprintf("custom command '%s' is not in the allow-list", cmd.Kind.Name)}
		}
	}
	return nil
}
