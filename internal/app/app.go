// Package app wires the pipeline loader, graph builder, log poller and
// status server into one runnable application.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/vk/phaseboard/internal/ctxlog"
	"github.com/vk/phaseboard/internal/graph"
	"github.com/vk/phaseboard/internal/pipeline"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	config *Config

	pipeline *pipeline.Pipeline
	graph    *graph.Graph
	layout   *graph.Layout
}

// NewApp constructs the application: logger, pipeline model, dependency
// graph and layout. A cyclic pipeline is not fatal here (the diagnostic is
// logged and carried in the graph so the monitor can surface it), but a
// definition that cannot be loaded at all is.
func NewApp(outW io.Writer, cfg *Config) (*App, error) {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	loader := pipeline.NewLoader()
	model, err := loader.Load(ctx, cfg.PipelinePath)
	if err != nil {
		return nil, fmt.Errorf("failed to load pipeline definition: %w", err)
	}
	logger.Debug("Pipeline definition loaded.", "phases", len(model.Phases))

	g, err := graph.Build(ctx, model)
	if err != nil {
		var unplaced *graph.UnplacedError
		if !errors.As(err, &unplaced) {
			return nil, fmt.Errorf("failed to build dependency graph: %w", err)
		}
		logger.Warn("Pipeline contains a dependency cycle; affected phases will be flagged.",
			"error", unplaced)
	}
	logger.Debug("Dependency graph built.", "node_count", len(g.Nodes), "edge_count", len(g.Edges))

	layout := graph.Arrange(g, model.InputNames(), graph.Mode(cfg.LayoutMode))
	logger.Debug("Layout computed.", "canvas_width", layout.CanvasWidth, "canvas_height", layout.CanvasHeight)

	return &App{
		outW:     outW,
		logger:   logger,
		config:   cfg,
		pipeline: model,
		graph:    g,
		layout:   layout,
	}, nil
}

// Graph returns the built dependency graph. This is primarily for testing.
func (a *App) Graph() *graph.Graph {
	return a.graph
}
