package dialer

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"time"

	"golang.org/x/net/proxy"
)

// ProxyDialer 代理拨号器 (支持 SOCKS5)
type ProxyDialer struct {
	ProxyURL *url.URL
	Timeout  time.Duration
	forward  proxy.Dialer
}

func NewProxyDialer(proxyAddr string, timeout time.Duration) (*ProxyDialer, error) {
	u, err := url.Parse(proxyAddr)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy address: %v", err)
	}
	if u.Scheme != "socks5" {
		return nil, fmt.Errorf("unsupported proxy scheme: %s (only socks5 is supported)", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid proxy address: missing host")
	}

	var auth *proxy.Auth
	if u.User != nil {
		auth = &proxy.Auth{
			User: u.User.Username(),
		}
		if p, ok := u.User.Password(); ok {
			auth.Password = p
		}
	}

	// 到代理本身的连接使用带超时的直连
	forward, err := proxy.SOCKS5("tcp", u.Host, auth, &net.Dialer{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("failed to create socks5 dialer: %v", err)
	}

	return &ProxyDialer{
		ProxyURL: u,
		Timeout:  timeout,
		forward:  forward,
	}, nil
}

func (d *ProxyDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}

	// x/net 的 SOCKS5 拨号器实现了 ContextDialer
	if cd, ok := d.forward.(proxy.ContextDialer); ok {
		return cd.DialContext(ctx, network, address)
	}

	type dialResult struct {
		Conn net.Conn
		Err  error
	}
	ch := make(chan dialResult, 1)
	go func() {
		conn, err := d.forward.Dial(network, address)
		ch <- dialResult{Conn: conn, Err: err}
	}()

	select {
	case <-ctx.Done():
		// 拨号迟到的连接需要关闭
		go func() {
			if res := <-ch; res.Conn != nil {
				res.Conn.Close()
			}
		}()
		return nil, ctx.Err()
	case res := <-ch:
		return res.Conn, res.Err
	}
}
