package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerDeckTools() {
	// ── list_decks ─────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("list_decks",
		mcp.WithDescription("List all decks in the library, most recently edited first"),
	), s.handleListDecks)

	// ── open_deck ──────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("open_deck",
		mcp.WithDescription("Open a deck for editing. Pass name instead of deckId to create a new deck and open it."),
		mcp.WithString("deckId",
			mcp.Description("ID of the deck to open"),
		),
		mcp.WithString("name",
			mcp.Description("Name for a new deck (used when deckId is empty)"),
		),
	), s.handleOpenDeck)

	// ── get_deck ───────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("get_deck",
		mcp.WithDescription("Get the open deck: slides, elements, current slide and selection"),
	), s.handleGetDeck)

	// ── save_deck ──────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("save_deck",
		mcp.WithDescription("Save the open deck and record a revision. Edits are kept in memory until saved."),
		mcp.WithString("label",
			mcp.Description("Revision label shown in the history list"),
		),
	), s.handleSaveDeck)

	// ── undo / redo ────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("undo",
		mcp.WithDescription("Undo the last change to the open deck"),
	), s.handleUndo)

	s.mcp.AddTool(mcp.NewTool("redo",
		mcp.WithDescription("Redo the last undone change"),
	), s.handleRedo)
}

func (s *Server) handleListDecks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	decks, err := s.decks.ListDecks()
	if err != nil {
		return nil, fmt.Errorf("list decks: %w", err)
	}
	return jsonResult(decks)
}

func (s *Server) handleOpenDeck(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	deckID := req.GetString("deckId", "")
	if deckID == "" {
		name := req.GetString("name", "")
		if name == "" {
			return nil, fmt.Errorf("deckId or name is required")
		}
		d, err := s.decks.CreateDeck(name)
		if err != nil {
			return nil, err
		}
		deckID = d.ID
	}
	st, err := s.decks.OpenDeck(ctx, deckID)
	if err != nil {
		return nil, err
	}
	return jsonResult(st)
}

func (s *Server) handleGetDeck(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.stateResult()
}

func (s *Server) handleSaveDeck(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	label := req.GetString("label", "Saved by agent")
	if err := s.decks.SaveDeck(ctx, label); err != nil {
		return nil, err
	}
	return textResult(fmt.Sprintf("Deck %s saved", s.decks.OpenDeckID())), nil
}

func (s *Server) handleUndo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ok, err := s.decks.Undo()
	if err != nil {
		return nil, err
	}
	if !ok {
		return textResult("Nothing to undo"), nil
	}
	return s.stateResult()
}

func (s *Server) handleRedo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ok, err := s.decks.Redo()
	if err != nil {
		return nil, err
	}
	if !ok {
		return textResult("Nothing to redo"), nil
	}
	return s.stateResult()
}
