package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerExportTools() {
	// ── export_deck ────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("export_deck",
		mcp.WithDescription("Export a deck to a pptx, pdf or docx file. Exporting the open deck includes unsaved edits."),
		mcp.WithString("format",
			mcp.Description("Output format"),
			mcp.Enum("pptx", "pdf", "docx"),
			mcp.Required(),
		),
		mcp.WithString("path",
			mcp.Description("Absolute output path; the extension is added when missing"),
			mcp.Required(),
		),
		mcp.WithString("deckId",
			mcp.Description("Deck to export (defaults to the open deck)"),
		),
	), s.handleExportDeck)

	// ── search_images ──────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("search_images",
		mcp.WithDescription("Search Wikipedia for images. Pass a result url to add_element with kind=image, or use insert_image."),
		mcp.WithString("query",
			mcp.Description("Search terms"),
			mcp.Required(),
		),
	), s.handleSearchImages)

	// ── insert_image ───────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("insert_image",
		mcp.WithDescription("Download an image and add it to the current slide"),
		mcp.WithString("url",
			mcp.Description("Image URL, usually from search_images"),
			mcp.Required(),
		),
	), s.handleInsertImage)
}

func (s *Server) handleExportDeck(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	format := req.GetString("format", "")
	path := req.GetString("path", "")
	deckID := req.GetString("deckId", "")
	if deckID == "" {
		deckID = s.decks.OpenDeckID()
	}
	if deckID == "" {
		return nil, fmt.Errorf("deckId is required when no deck is open")
	}
	if err := s.exports.ExportDeck(ctx, deckID, format, path); err != nil {
		return nil, fmt.Errorf("export deck: %w", err)
	}
	return textResult(fmt.Sprintf("Deck %s exported as %s", deckID, format)), nil
}

func (s *Server) handleSearchImages(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := req.GetString("query", "")
	if query == "" {
		return nil, fmt.Errorf("query is required")
	}
	return jsonResult(s.images.Search(ctx, query))
}

func (s *Server) handleInsertImage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := s.images.Insert(ctx, req.GetString("url", ""))
	if err != nil {
		return nil, err
	}
	return jsonResult(map[string]any{"elementId": id})
}
