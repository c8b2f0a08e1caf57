package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"slides/internal/domain"
)

func (s *Server) registerSlideTools() {
	// ── add_slide ──────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("add_slide",
		mcp.WithDescription("Append an empty slide to the open deck and make it current"),
	), s.handleAddSlide)

	// ── delete_slide ───────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("delete_slide",
		mcp.WithDescription("🛑 DESTRUCTIVE: Delete a slide and its elements. The last slide cannot be deleted. Requires user approval."),
		mcp.WithNumber("slideId",
			mcp.Description("ID of the slide to delete"),
			mcp.Required(),
		),
	), s.handleDeleteSlide)

	// ── set_current_slide ──────────────────────────────
	s.mcp.AddTool(mcp.NewTool("set_current_slide",
		mcp.WithDescription("Make a slide current. add_element and update_element act on the current slide."),
		mcp.WithNumber("slideId",
			mcp.Description("ID of the slide"),
			mcp.Required(),
		),
	), s.handleSetCurrentSlide)

	// ── set_background ─────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("set_background",
		mcp.WithDescription("Set a slide background. A color replaces a background image and vice versa."),
		mcp.WithNumber("slideId",
			mcp.Description("ID of the slide (defaults to the current slide)"),
		),
		mcp.WithString("color",
			mcp.Description("CSS color, e.g. #1e293b"),
		),
		mcp.WithString("image",
			mcp.Description("Image as a data URL or http(s) URL"),
		),
	), s.handleSetBackground)
}

func (s *Server) handleAddSlide(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := s.decks.AddSlide()
	if err != nil {
		return nil, err
	}
	return jsonResult(map[string]int{"slideId": id})
}

func (s *Server) handleDeleteSlide(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	slideID := req.GetInt("slideId", 0)
	st, err := s.decks.State()
	if err != nil {
		return nil, err
	}
	if _, ok := findSlide(st, slideID); !ok {
		return nil, fmt.Errorf("slide %d not found", slideID)
	}
	if len(st.Slides) == 1 {
		return textResult("The last slide cannot be deleted"), nil
	}

	meta := fmt.Sprintf(`{"deckId":%q,"slideIds":[%d]}`, st.Deck.ID, slideID)
	approved, err := s.approval.Request("delete_slide",
		fmt.Sprintf("Delete slide %d of %q", slideID, st.Deck.Name), meta)
	if err != nil || !approved {
		return textResult("Action rejected by user"), nil
	}

	if err := s.decks.DeleteSlide(slideID); err != nil {
		return nil, err
	}
	return textResult(fmt.Sprintf("Slide %d deleted", slideID)), nil
}

func (s *Server) handleSetCurrentSlide(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	slideID := req.GetInt("slideId", 0)
	st, err := s.decks.State()
	if err != nil {
		return nil, err
	}
	if _, ok := findSlide(st, slideID); !ok {
		return nil, fmt.Errorf("slide %d not found", slideID)
	}
	if err := s.decks.SetCurrentSlide(slideID); err != nil {
		return nil, err
	}
	return textResult(fmt.Sprintf("Current slide set to %d", slideID)), nil
}

func (s *Server) handleSetBackground(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	slideID, err := s.slideIDArg(args)
	if err != nil {
		return nil, err
	}
	patch := domain.BackgroundPatch{
		Color: stringArg(args, "color"),
		Image: stringArg(args, "image"),
	}
	if patch.Color == nil && patch.Image == nil {
		return nil, fmt.Errorf("color or image is required")
	}
	if err := s.decks.SetBackground(slideID, patch); err != nil {
		return nil, err
	}
	return s.stateResult()
}

func findSlide(st *domain.DeckState, id int) (domain.Slide, bool) {
	for _, sl := range st.Slides {
		if sl.ID == id {
			return sl, true
		}
	}
	return domain.Slide{}, false
}
