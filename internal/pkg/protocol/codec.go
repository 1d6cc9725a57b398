package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// 信封类型标签
const (
	TypeCommand  = "Command"
	TypeResponse = "Response"
)

// Envelope 命令通道上的消息，Command 与 Response 二选一
// 线上格式 {"type":"Command","payload":{...}}
type Envelope struct {
	Command  *Command
	Response *CommandResponse
}

// CommandEnvelope 包装命令
func CommandEnvelope(cmd Command) Envelope {
	return Envelope{Command: &cmd}
}

// ResponseEnvelope 包装响应
func ResponseEnvelope(resp CommandResponse) Envelope {
	return Envelope{Response: &resp}
}

type rawEnvelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// MarshalJSON 编码信封
func (e Envelope) MarshalJSON() ([]byte, error) {
	var (
		kind    string
		payload interface{}
	)
	switch {
	case e.Command != nil && e.Response != nil:
		return nil, errors.New("envelope carries both command and response")
	case e.Command != nil:
		kind, payload = TypeCommand, e.Command
	case e.Response != nil:
		kind, payload = TypeResponse, e.Response
	default:
		return nil, errors.New("empty envelope")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(rawEnvelope{Type: kind, Payload: body})
}

// UnmarshalJSON 解码信封
func (e *Envelope) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type    *string         `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Type == nil {
		return errMissingField("type")
	}
	if len(raw.Payload) == 0 || bytes.Equal(raw.Payload, []byte("null")) {
		return errMissingField("payload")
	}

	switch *raw.Type {
	case TypeCommand:
		var cmd Command
		if err := json.Unmarshal(raw.Payload, &cmd); err != nil {
			return err
		}
		*e = Envelope{Command: &cmd}
	case TypeResponse:
		var resp CommandResponse
		if err := json.Unmarshal(raw.Payload, &resp); err != nil {
			return err
		}
		*e = Envelope{Response: &resp}
	default:
		return fmt.Errorf("unknown message type %q", *raw.Type)
	}
	return nil
}

// DecodeError 入站文本无法解析为信封
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return "decode message: " + e.Err.Error()
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// EncodeEnvelope 将信封编码为文本帧
func EncodeEnvelope(env Envelope) ([]byte, error) {
	return json.Marshal(env)
}

// EncodeSnapshot 将遥测快照编码为文本帧
func EncodeSnapshot(snap TelemetrySnapshot) ([]byte, error) {
	return json.Marshal(snap)
}

// DecodeEnvelope 解析入站文本帧，任何格式问题都返回 *DecodeError
func DecodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, &DecodeError{Err: err}
	}
	return env, nil
}

// DecodeSnapshot 解析遥测帧，供测试与本地工具使用
func DecodeSnapshot(data []byte) (TelemetrySnapshot, error) {
	var snap TelemetrySnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return TelemetrySnapshot{}, &DecodeError{Err: err}
	}
	return snap, nil
}
