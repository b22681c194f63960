package app

import (
	"context"
	"fmt"

	"github.com/vk/phaseboard/internal/ctxlog"
	"github.com/vk/phaseboard/internal/logfeed"
	"github.com/vk/phaseboard/internal/monitor"
)

// Run executes the main application logic based on the provided configuration.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	if a.config.HealthcheckPort > 0 {
		go a.startHealthcheckServer(a.config.HealthcheckPort)
	}

	src, closeSrc, err := a.newSource(ctx)
	if err != nil {
		return err
	}
	if closeSrc != nil {
		defer closeSrc()
	}

	mon := monitor.New(a.graph, a.layout, src, logfeed.Options{
		Interval: a.config.PollInterval,
		Lookback: a.config.Lookback,
		Grace:    a.config.Grace,
	})

	if a.config.StatusPort > 0 {
		go a.startStatusServer(a.config.StatusPort, mon)
	}

	if a.config.SessionID == "" {
		a.logger.Info("No session to watch; serving the static graph until cancelled.")
		<-ctx.Done()
		return nil
	}

	a.logger.Info("👀 Watching session.", "session_id", a.config.SessionID)
	mon.Watch(a.config.SessionID)
	mon.Run(ctx)
	a.logger.Info("🏁 Session watch finished.")

	a.logger.Debug("App.Run method finished.")
	return nil
}

// newSource builds the log source selected by the transport setting.
func (a *App) newSource(ctx context.Context) (logfeed.Source, func() error, error) {
	switch a.config.Transport {
	case "socketio":
		src, err := logfeed.DialSocketSource(ctx, logfeed.SocketOptions{
			URL: a.config.SourceURL,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect socket.io log source: %w", err)
		}
		return src, src.Close, nil
	default:
		return logfeed.NewHTTPSource(a.config.SourceURL, nil), nil, nil
	}
}
