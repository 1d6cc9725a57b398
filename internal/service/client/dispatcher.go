package client

import (
	"context"
	"errors"
	"io"

	"nodeagent/internal/pkg/communication"
	"nodeagent/internal/pkg/logger"
	"nodeagent/internal/pkg/metrics"
	"nodeagent/internal/pkg/protocol"
	"nodeagent/internal/service/task"
)

// CommandHandler 处理入站命令，不得阻塞到命令执行完成
type CommandHandler interface {
	Handle(ctx context.Context, cmd protocol.Command, sink task.ResponseSink)
}

// dispatcher 入站分发器，连接唯一的读者
type dispatcher struct {
	transport Transport
	handler   CommandHandler
	sink      task.ResponseSink
	metrics   *metrics.Metrics
}

// run 读取直到连接关闭或出错
// 无法解码的帧丢弃后继续读取
func (d *dispatcher) run(ctx context.Context) error {
	for {
		frame, err := d.transport.ReadFrame()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, io.EOF) || communication.IsClosed(err) {
				return errRemoteClosed
			}
			return &TransportError{Op: "read", Err: err}
		}

		env, err := protocol.DecodeEnvelope(frame)
		if err != nil {
			d.metrics.FrameDropped(ctx, metrics.DropDecode)
			logger.LogSystemEvent("Dispatcher", "Decode", "discarding inbound frame: "+err.Error(), logger.WarnLevel,
				map[string]interface{}{"frame_size": len(frame)})
			continue
		}

		switch {
		case env.Command != nil:
			d.handler.Handle(ctx, *env.Command, d.sink)
		case env.Response != nil:
			logger.LogSystemEvent("Dispatcher", "UnexpectedResponse", "discarding inbound response for "+env.Response.CommandID, logger.WarnLevel, nil)
		}
	}
}
