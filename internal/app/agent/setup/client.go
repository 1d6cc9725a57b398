package setup

import (
	"context"

	"nodeagent/internal/config"
	"nodeagent/internal/pkg/communication"
	"nodeagent/internal/service/client"
)

// SetupClient 初始化采集端会话
// 会话配置在此处复制一份，之后不再读取进程配置
func SetupClient(cfg *config.Config, core *CoreModule, opts ...client.SessionOption) (*ClientModule, error) {
	wsDialer, err := communication.NewWebsocketDialer(communication.DialConfig{
		Endpoint:         cfg.Session.Endpoint,
		HandshakeTimeout: cfg.Session.ConnectTimeout,
		PingInterval:     cfg.Session.PingInterval,
		PongTimeout:      cfg.Session.PongTimeout,
		WriteTimeout:     cfg.Session.WriteTimeout,
		SkipTLSVerify:    cfg.Session.SkipTLSVerify,
		Proxy:            cfg.Session.Proxy,
	})
	if err != nil {
		return nil, err
	}

	dial := client.DialFunc(func(ctx context.Context) (client.Transport, error) {
		conn, err := wsDialer.Dial(ctx)
		if err != nil {
			return nil, err
		}
		return conn, nil
	})

	opts = append(opts, client.WithSessionMetrics(core.Metrics))
	session := client.NewSession(client.ConfigFromSession(cfg.Session), dial, core.Machine, core.Publisher, opts...)
	return &ClientModule{Session: session}, nil
}
