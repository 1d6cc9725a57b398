package client

import (
	"errors"
	"fmt"
)

// ErrConnectFailed 首次连接在全部尝试后仍失败，调用方应进入本地模式
var ErrConnectFailed = errors.New("could not connect to collector")

// ErrSessionUsed 会话只能运行一次，结束后不会重连
var ErrSessionUsed = errors.New("session already started")

// errRemoteClosed 对端正常关闭连接
var errRemoteClosed = errors.New("connection closed by collector")

// TransportError 连接读写失败，结束当前会话
type TransportError struct {
	Op  string // dial / read / write / ping
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s failed: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
