package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"slides/internal/service"
	"slides/internal/storage"
)

// Server is the MCP server for the slide editor.
// It exposes tools, resources, and prompts so AI agents can build decks.
type Server struct {
	mcp      *server.MCPServer
	emitter  EventEmitter
	approval *ApprovalQueue
	logger   *zap.Logger

	// Services (injected from app layer)
	decks   *service.DeckService
	exports *service.ExportService
	images  *service.ImageSearchService
}

// Deps holds all dependencies passed from the App layer to the MCP server.
type Deps struct {
	Emitter EventEmitter
	Logger  *zap.Logger
	Decks   *service.DeckService
	Exports *service.ExportService
	Images  *service.ImageSearchService

	// When set, approvals go through the mcp_approvals table (standalone mode).
	Approvals       *storage.ApprovalStore
	ApprovalTimeout time.Duration
}

// New creates and configures a new MCP server with all tools and resources.
func New(ctx context.Context, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	approval := NewApprovalQueue(ctx, deps.Emitter)
	if deps.Approvals != nil {
		approval.SetStore(deps.Approvals)
	}
	if deps.ApprovalTimeout > 0 {
		approval.timeout = deps.ApprovalTimeout
	}
	s := &Server{
		emitter:  deps.Emitter,
		approval: approval,
		logger:   logger,
		decks:    deps.Decks,
		exports:  deps.Exports,
		images:   deps.Images,
	}

	s.mcp = server.NewMCPServer(
		"slides-mcp",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, false),
		server.WithPromptCapabilities(true),
	)

	s.registerDeckTools()
	s.registerSlideTools()
	s.registerElementTools()
	s.registerExportTools()
	s.registerResources()
	s.registerPrompts()

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	s.logger.Info("mcp: starting stdio server")
	return server.ServeStdio(s.mcp)
}

// Approve forwards a user approval to the approval queue.
func (s *Server) Approve(actionID string) {
	s.approval.Approve(actionID)
}

// Reject forwards a user rejection to the approval queue.
func (s *Server) Reject(actionID string) {
	s.approval.Reject(actionID)
}

// ── Helpers ────────────────────────────────────────────────

// textResult creates a simple text tool result.
func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

// jsonResult serializes v to JSON and wraps it in a text tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return textResult(string(data)), nil
}

// stateResult returns the open deck as the tool result.
func (s *Server) stateResult() (*mcp.CallToolResult, error) {
	st, err := s.decks.State()
	if err != nil {
		return nil, err
	}
	return jsonResult(st)
}
