package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"slides/internal/config"
	mcpserver "slides/internal/mcp"
	"slides/internal/service"
)

// ServeMCP runs the editor as a standalone MCP server on stdin/stdout with
// no GUI. Destructive tools wait for the GUI to approve them through the
// shared mcp_approvals table. Edits reach the GUI once the agent saves.
func ServeMCP(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	svc, err := OpenServices(ctx, cfg, service.NopEmitter{}, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		svc.Close(closeCtx)
	}()

	srv := mcpserver.New(ctx, mcpserver.Deps{
		Emitter:   service.NopEmitter{},
		Logger:    logger.Named("mcp"),
		Decks:     svc.Decks,
		Exports:   svc.Exports,
		Images:    svc.Images,
		Approvals: svc.Approvals,
	})

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ServeStdio() }()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("mcp server: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("mcp: interrupted")
		return nil
	}
}
