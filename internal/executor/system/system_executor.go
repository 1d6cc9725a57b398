/**
 * 系统执行器
 * @author: sun977
 * @date: 2025.10.21
 * @description: 通过容器命令行、节点管理脚本和主机命令完成采集端下发的节点操作
 */
package system

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"nodeagent/internal/config"
	"nodeagent/internal/executor/base"
	"nodeagent/internal/pkg/protocol"
)

var errUnsupportedTarget = errors.New("unsupported target")

// SystemExecutor 系统执行器
type SystemExecutor struct {
	cfg    config.ExecutorConfig
	allow  *AllowList
	runner ProcessRunner
}

// NewSystemExecutor 创建系统执行器，runner 为空时使用 os/exec
func NewSystemExecutor(cfg *config.ExecutorConfig, allow *AllowList, runner ProcessRunner) *SystemExecutor {
	if runner == nil {
		runner = ExecRunner{}
	}
	e := &SystemExecutor{allow: allow, runner: runner}
	if cfg != nil {
		e.cfg = *cfg
	}
	if e.cfg.ContainerCLI == "" {
		e.cfg.ContainerCLI = "docker"
	}
	if e.cfg.Shell == "" {
		e.cfg.Shell = "bash"
	}
	if len(e.cfg.RebootCommand) == 0 {
		e.cfg.RebootCommand = []string{"sudo", "shutdown", "-r", "now"}
	}
	return e
}

var _ base.Executor = (*SystemExecutor)(nil)

// Run 执行命令
func (e *SystemExecutor) Run(ctx context.Context, cmd protocol.Command) (string, error) {
	switch cmd.Kind.Op {
	case protocol.OpStart:
		return e.lifecycle(ctx, cmd.Target, "start", "started", e.cfg.StartAllScript)
	case protocol.OpStop:
		return e.lifecycle(ctx, cmd.Target, "stop", "stopped", e.cfg.StopAllScript)
	case protocol.OpRestart:
		if cmd.Target.Scope == protocol.ScopeHost {
			return "", &base.ExecutionError{Action: "host restart", Err: errors.New("restart of the host is not supported; use RebootServer")}
		}
		return e.lifecycle(ctx, cmd.Target, "restart", "restarted", e.cfg.RestartAllScript)
	case protocol.OpPayout:
		return e.payout(ctx, cmd.Target)
	case protocol.OpPayoutAll:
		out, err := e.script(ctx, "all units payout", e.cfg.PayoutAllScript)
		if err != nil {
			return "", err
		}
		return "payout for all units succeeded:\n" + out, nil
	case protocol.OpRebootHost:
		if _, err := e.exec(ctx, "host reboot", e.cfg.RebootCommand); err != nil {
			return "", err
		}
		return "host reboot command sent", nil
	case protocol.OpCustom:
		return e.custom(ctx, cmd.Kind.Name)
	default:
		return "", &base.ExecutionError{Action: "command", Err: fmt.Errorf("unknown command kind %s", cmd.Kind)}
	}
}

// lifecycle 单节点走容器命令行，全部节点走管理脚本
func (e *SystemExecutor) lifecycle(ctx context.Context, target protocol.Target, verb, done, allScript string) (string, error) {
	switch target.Scope {
	case protocol.ScopeUnit:
		if _, err := e.exec(ctx, "unit "+verb, []string{e.cfg.ContainerCLI, verb, target.Unit}); err != nil {
			return "", err
		}
		return fmt.Sprintf("unit '%s' %s", target.Unit, done), nil
	case protocol.ScopeAllUnits:
		if _, err := e.script(ctx, "all units "+verb, allScript); err != nil {
			return "", err
		}
		return "all units " + done, nil
	default:
		return "", &base.ExecutionError{Action: "unit " + verb, Err: errUnsupportedTarget}
	}
}

func (e *SystemExecutor) payout(ctx context.Context, target protocol.Target) (string, error) {
	if target.Scope != protocol.ScopeUnit {
		return "", &base.ExecutionError{Action: "unit payout", Err: errUnsupportedTarget}
	}
	out, err := e.script(ctx, "unit payout", e.cfg.PayoutScript+" "+shellQuote(target.Unit))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("payout for unit '%s' succeeded:\n%s", target.Unit, out), nil
}

func (e *SystemExecutor) custom(ctx context.Context, name string) (string, error) {
	argv, ok := e.allow.Lookup(name)
	if !ok {
		return "", &base.ExecutionError{Action: fmt.Sprintf("custom command '%s'", name), Err: errors.New("not in allow-list")}
	}
	out, err := e.exec(ctx, fmt.Sprintf("custom command '%s'", name), argv)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("custom command '%s' succeeded:\n%s", name, out), nil
}

func (e *SystemExecutor) script(ctx context.Context, action, script string) (string, error) {
	if strings.TrimSpace(script) == "" {
		return "", &base.ExecutionError{Action: action, Err: errors.New("no script configured")}
	}
	return e.exec(ctx, action, []string{e.cfg.Shell, "-c", script})
}

// exec 运行进程，非零退出时错误中携带标准错误输出
func (e *SystemExecutor) exec(ctx context.Context, action string, argv []string) (string, error) {
	stdout, stderr, err := e.runner.Run(ctx, e.cfg.WorkDir, argv[0], argv[1:]...)
	if err != nil {
		return "", &base.ExecutionError{
			Action: action,
			Stderr: strings.TrimSpace(string(stderr)),
			Err:    err,
		}
	}
	return string(stdout), nil
}

// shellQuote 节点名拼接进脚本前加单引号
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
