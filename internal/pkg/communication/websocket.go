/**
 * 采集端websocket传输
 * @author: sun977
 * @date: 2026.02.15
 * @description: 基于gorilla/websocket的双工文本帧传输，负责握手、保活超时和代理拨号，不涉及消息语义
 */
package communication

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"nodeagent/internal/core/lib/network/dialer"
	"nodeagent/internal/pkg/logger"
	"nodeagent/internal/pkg/version"
)

// DialConfig 传输层配置，构建后只读
type DialConfig struct {
	Endpoint         string        // ws:// 或 wss:// 地址
	HandshakeTimeout time.Duration // 握手超时
	PingInterval     time.Duration // ping间隔，0表示不设置读超时
	PongTimeout      time.Duration // 等待pong的额外时间
	WriteTimeout     time.Duration // 单帧写超时
	SkipTLSVerify    bool          // 跳过证书校验
	Proxy            string        // socks5代理
}

// WebsocketDialer websocket拨号器
type WebsocketDialer struct {
	cfg    DialConfig
	dialer *websocket.Dialer
}

// NewWebsocketDialer 创建拨号器
func NewWebsocketDialer(cfg DialConfig) (*WebsocketDialer, error) {
	netDialer, err := dialer.New(cfg.Proxy, cfg.HandshakeTimeout)
	if err != nil {
		return nil, err
	}

	wsDialer := &websocket.Dialer{
		NetDialContext:   netDialer.DialContext,
		HandshakeTimeout: cfg.HandshakeTimeout,
	}
	if cfg.SkipTLSVerify {
		wsDialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &WebsocketDialer{cfg: cfg, dialer: wsDialer}, nil
}

// Dial 建立一条websocket连接
func (d *WebsocketDialer) Dial(ctx context.Context) (*Conn, error) {
	header := http.Header{}
	header.Set("User-Agent", version.GetUserAgent())

	ws, resp, err := d.dialer.DialContext(ctx, d.cfg.Endpoint, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket handshake with %s failed (status %d): %w", d.cfg.Endpoint, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial %s failed: %w", d.cfg.Endpoint, err)
	}
	return newConn(ws, d.cfg), nil
}

// Conn 一条已建立的连接
// 同一时刻只允许一个读者和一个写者，Ping 与 Close 可并发调用
type Conn struct {
	ws           *websocket.Conn
	readTimeout  time.Duration
	writeTimeout time.Duration
	closeOnce    sync.Once
	closeErr     error
}

func newConn(ws *websocket.Conn, cfg DialConfig) *Conn {
	c := &Conn{ws: ws, writeTimeout: cfg.WriteTimeout}
	if cfg.PingInterval > 0 {
		c.readTimeout = cfg.PingInterval + cfg.PongTimeout
		ws.SetReadDeadline(time.Now().Add(c.readTimeout))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(c.readTimeout))
		})
	}
	return c
}

// ReadFrame 读取下一帧文本，非文本帧被跳过
func (c *Conn) ReadFrame() ([]byte, error) {
	for {
		kind, data, err := c.ws.ReadMessage()
		if err != nil {
			return nil, err
		}
		if c.readTimeout > 0 {
			c.ws.SetReadDeadline(time.Now().Add(c.readTimeout))
		}
		if kind == websocket.TextMessage {
			return data, nil
		}
		logger.Debugf("websocket: skip non-text frame type %d", kind)
	}
}

// WriteFrame 写出一帧文本
func (c *Conn) WriteFrame(data []byte) error {
	if c.writeTimeout > 0 {
		c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// Ping 发送保活ping
func (c *Conn) Ping() error {
	timeout := c.writeTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(timeout))
}

// Close 发送关闭帧后断开连接，可重复调用
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}

// IsClosed 判断错误是否为连接正常关闭
func IsClosed(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) ||
		errors.Is(err, net.ErrClosed)
}
