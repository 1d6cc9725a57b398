/**
 * 采集端命令协议
 * @author: sun977
 * @date: 2026.02.10
 * @description: 采集端与Agent之间的命令、命令响应与信封结构，JSON文本帧，字段与旧版监控程序保持一致
 */
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// Op 命令种类
type Op int

const (
	OpStart      Op = iota + 1 // 启动节点
	OpStop                     // 停止节点
	OpRestart                  // 重启节点
	OpPayout                   // 单节点payout
	OpPayoutAll                // 全部节点payout
	OpRebootHost               // 重启主机
	OpCustom                   // 白名单自定义命令
)

// 线上使用的标签，RebootServer 为历史名称
var opTags = map[Op]string{
	OpStart:      "Start",
	OpStop:       "Stop",
	OpRestart:    "Restart",
	OpPayout:     "Payout",
	OpPayoutAll:  "PayoutAll",
	OpRebootHost: "RebootServer",
	OpCustom:     "Custom",
}

var opByTag = map[string]Op{
	"Start":        OpStart,
	"Stop":         OpStop,
	"Restart":      OpRestart,
	"Payout":       OpPayout,
	"PayoutAll":    OpPayoutAll,
	"RebootServer": OpRebootHost,
	"RebootHost":   OpRebootHost,
}

func (o Op) String() string {
	if tag, ok := opTags[o]; ok {
		return tag
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

// Kind 命令类型，Custom 携带命令名
type Kind struct {
	Op   Op
	Name string // 仅 OpCustom 使用
}

var (
	KindStart      = Kind{Op: OpStart}
	KindStop       = Kind{Op: OpStop}
	KindRestart    = Kind{Op: OpRestart}
	KindPayout     = Kind{Op: OpPayout}
	KindPayoutAll  = Kind{Op: OpPayoutAll}
	KindRebootHost = Kind{Op: OpRebootHost}
)

// CustomKind 构造自定义命令类型
func CustomKind(name string) Kind {
	return Kind{Op: OpCustom, Name: name}
}

func (k Kind) String() string {
	if k.Op == OpCustom {
		return "Custom(" + k.Name + ")"
	}
	return k.Op.String()
}

// MarshalJSON 单元变体编码为字符串，Custom 编码为 {"Custom":"name"}
func (k Kind) MarshalJSON() ([]byte, error) {
	if k.Op == OpCustom {
		return json.Marshal(map[string]string{"Custom": k.Name})
	}
	tag, ok := opTags[k.Op]
	if !ok {
		return nil, fmt.Errorf("unknown command kind %d", int(k.Op))
	}
	return json.Marshal(tag)
}

// UnmarshalJSON 解析命令类型
func (k *Kind) UnmarshalJSON(data []byte) error {
	var tag string
	if err := json.Unmarshal(data, &tag); err == nil {
		op, ok := opByTag[tag]
		if !ok {
			return fmt.Errorf("unknown command_type %q", tag)
		}
		*k = Kind{Op: op}
		return nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("command_type must be a string or object: %w", err)
	}
	if len(obj) != 1 {
		return fmt.Errorf("command_type object must have exactly one key, got %d", len(obj))
	}
	raw, ok := obj["Custom"]
	if !ok {
		for key := range obj {
			return fmt.Errorf("unknown command_type %q", key)
		}
	}
	var name string
	if err := json.Unmarshal(raw, &name); err != nil {
		return fmt.Errorf("Custom command name must be a string: %w", err)
	}
	*k = CustomKind(name)
	return nil
}

// Scope 命令目标范围
type Scope int

const (
	ScopeUnit     Scope = iota + 1 // 单个节点
	ScopeAllUnits                  // 全部节点
	ScopeHost                      // 主机本身
)

// Target 命令目标
type Target struct {
	Scope Scope
	Unit  string // 仅 ScopeUnit 使用
}

// UnitTarget 单节点目标
func UnitTarget(name string) Target {
	return Target{Scope: ScopeUnit, Unit: name}
}

// AllUnitsTarget 全部节点目标
func AllUnitsTarget() Target {
	return Target{Scope: ScopeAllUnits}
}

// HostTarget 主机目标
func HostTarget() Target {
	return Target{Scope: ScopeHost}
}

func (t Target) String() string {
	switch t.Scope {
	case ScopeUnit:
		return "Node(" + t.Unit + ")"
	case ScopeAllUnits:
		return "AllNodes"
	case ScopeHost:
		return "Server"
	default:
		return "Unknown"
	}
}

// MarshalJSON 编码为 {"Node":"name"} / "AllNodes" / "Server"
func (t Target) MarshalJSON() ([]byte, error) {
	switch t.Scope {
	case ScopeUnit:
		return json.Marshal(map[string]string{"Node": t.Unit})
	case ScopeAllUnits:
		return json.Marshal("AllNodes")
	case ScopeHost:
		return json.Marshal("Server")
	default:
		return nil, fmt.Errorf("unknown target scope %d", int(t.Scope))
	}
}

// UnmarshalJSON 解析目标，同时接受 Unit/AllUnits/Host 写法
func (t *Target) UnmarshalJSON(data []byte) error {
	var tag string
	if err := json.Unmarshal(data, &tag); err == nil {
		switch tag {
		case "AllNodes", "AllUnits":
			*t = AllUnitsTarget()
		case "Server", "Host":
			*t = HostTarget()
		default:
			return fmt.Errorf("unknown target %q", tag)
		}
		return nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("target must be a string or object: %w", err)
	}
	if len(obj) != 1 {
		return fmt.Errorf("target object must have exactly one key, got %d", len(obj))
	}
	for key, raw := range obj {
		if key != "Node" && key != "Unit" {
			return fmt.Errorf("unknown target %q", key)
		}
		var name string
		if err := json.Unmarshal(raw, &name); err != nil {
			return fmt.Errorf("target node name must be a string: %w", err)
		}
		*t = UnitTarget(name)
	}
	return nil
}

// Command 采集端下发的命令，接收后不再修改
type Command struct {
	ID         string            `json:"id"`
	Kind       Kind              `json:"command_type"`
	Target     Target            `json:"target"`
	Parameters map[string]string `json:"parameters"` // nil 编码为 null，空map编码为 {}
	IssuedAt   int64             `json:"timestamp"`  // Unix秒，解码时拒绝负数
}

// UnmarshalJSON 必填字段缺失时报错，parameters 可缺省
func (c *Command) UnmarshalJSON(data []byte) error {
	var aux struct {
		ID         *string           `json:"id"`
		Kind       *Kind             `json:"command_type"`
		Target     *Target           `json:"target"`
		Parameters map[string]string `json:"parameters"`
		IssuedAt   *int64            `json:"timestamp"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	switch {
	case aux.ID == nil:
		return errMissingField("id")
	case aux.Kind == nil:
		return errMissingField("command_type")
	case aux.Target == nil:
		return errMissingField("target")
	case aux.IssuedAt == nil:
		return errMissingField("timestamp")
	case *aux.IssuedAt < 0:
		return errNegativeTimestamp(*aux.IssuedAt)
	}
	*c = Command{
		ID:         *aux.ID,
		Kind:       *aux.Kind,
		Target:     *aux.Target,
		Parameters: aux.Parameters,
		IssuedAt:   *aux.IssuedAt,
	}
	return nil
}

// Status 命令生命周期状态 Received -> InProgress -> Completed|Failed
type Status string

const (
	StatusReceived   Status = "Received"
	StatusInProgress Status = "InProgress"
	StatusCompleted  Status = "Completed"
	StatusFailed     Status = "Failed"
)

var statusRank = map[Status]int{
	StatusReceived:   1,
	StatusInProgress: 2,
	StatusCompleted:  3,
	StatusFailed:     3,
}

// IsTerminal 是否为终态
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Valid 是否为已知状态
func (s Status) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// CanTransition 状态只能前进，终态之后不再变化
func (s Status) CanTransition(to Status) bool {
	from, ok := statusRank[s]
	if !ok {
		return false
	}
	next, ok := statusRank[to]
	if !ok {
		return false
	}
	return !s.IsTerminal() && next > from
}

// UnmarshalJSON 拒绝未知状态
func (s *Status) UnmarshalJSON(data []byte) error {
	var tag string
	if err := json.Unmarshal(data, &tag); err != nil {
		return err
	}
	if !Status(tag).Valid() {
		return fmt.Errorf("unknown status %q", tag)
	}
	*s = Status(tag)
	return nil
}

// CommandResponse 命令响应
// result 只在 Completed 时出现，error 只在 Failed 时出现
type CommandResponse struct {
	CommandID   string  `json:"command_id"`
	Status      Status  `json:"status"`
	Result      *string `json:"result"`
	Error       *string `json:"error"`
	RespondedAt int64   `json:"timestamp"`
}

// UnmarshalJSON 必填字段缺失时报错
func (r *CommandResponse) UnmarshalJSON(data []byte) error {
	var aux struct {
		CommandID   *string `json:"command_id"`
		Status      *Status `json:"status"`
		Result      *string `json:"result"`
		Error       *string `json:"error"`
		RespondedAt *int64  `json:"timestamp"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	switch {
	case aux.CommandID == nil:
		return errMissingField("command_id")
	case aux.Status == nil:
		return errMissingField("status")
	case aux.RespondedAt == nil:
		return errMissingField("timestamp")
	case *aux.RespondedAt < 0:
		return errNegativeTimestamp(*aux.RespondedAt)
	}
	*r = CommandResponse{
		CommandID:   *aux.CommandID,
		Status:      *aux.Status,
		Result:      aux.Result,
		Error:       aux.Error,
		RespondedAt: *aux.RespondedAt,
	}
	return nil
}

// NewReceived 收到命令的即时响应
func NewReceived(commandID string, at time.Time) CommandResponse {
	return CommandResponse{CommandID: commandID, Status: StatusReceived, RespondedAt: at.Unix()}
}

// NewInProgress 执行中状态，仅用于本地记录
func NewInProgress(commandID string, at time.Time) CommandResponse {
	return CommandResponse{CommandID: commandID, Status: StatusInProgress, RespondedAt: at.Unix()}
}

// NewCompleted 执行成功
func NewCompleted(commandID, result string, at time.Time) CommandResponse {
	return CommandResponse{CommandID: commandID, Status: StatusCompleted, Result: &result, RespondedAt: at.Unix()}
}

// NewFailed 执行失败或命令无效
func NewFailed(commandID, message string, at time.Time) CommandResponse {
	return CommandResponse{CommandID: commandID, Status: StatusFailed, Error: &message, RespondedAt: at.Unix()}
}

func errMissingField(name string) error {
	return fmt.Errorf("missing field %q", name)
}

// 时间戳为无符号秒数
func errNegativeTimestamp(v int64) error {
	return fmt.Errorf("timestamp must not be negative, got %d", v)
}
