package setup

import (
	"fmt"
	"net/http"
	"time"

	"nodeagent/internal/app/agent/middleware"
	"nodeagent/internal/app/agent/router"
	"nodeagent/internal/config"
	"nodeagent/internal/handler/status"
)

// SetupServer 初始化本地状态接口，未启用时返回 nil
func SetupServer(cfg *config.Config, provider status.Provider) *ServerModule {
	if cfg.Server == nil || !cfg.Server.Enabled {
		return nil
	}

	r := router.NewRouter(&router.RouterConfig{
		Mode: cfg.Server.Mode,
		Logging: &middleware.LoggingConfig{
			SkipPaths:            []string{"/health", "/ping"},
			SlowRequestThreshold: 2 * time.Second,
		},
	}, provider)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r.GetEngine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return &ServerModule{
		Router:     r,
		HTTPServer: httpServer,
	}
}
