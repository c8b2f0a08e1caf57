package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"slides/internal/domain"
)

func (s *Server) registerElementTools() {
	// ── add_element ────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("add_element",
		mcp.WithDescription("Add a text or image element to a slide at the default position. The new element is selected."),
		mcp.WithString("kind",
			mcp.Description("Element kind"),
			mcp.Enum(string(domain.KindText), string(domain.KindImage)),
			mcp.Required(),
		),
		mcp.WithString("content",
			mcp.Description("Text for text elements; data URL or http(s) URL for images"),
		),
		mcp.WithNumber("slideId",
			mcp.Description("Slide to add to (defaults to the current slide)"),
		),
	), s.handleAddElement)

	// ── update_element ─────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("update_element",
		mcp.WithDescription("Change an element's position, size, content or style. Omitted fields are kept."),
		mcp.WithNumber("elementId",
			mcp.Description("ID of the element"),
			mcp.Required(),
		),
		mcp.WithNumber("slideId",
			mcp.Description("Slide holding the element (defaults to the current slide)"),
		),
		mcp.WithNumber("x", mcp.Description("Left edge in canvas pixels (canvas is 960x540)")),
		mcp.WithNumber("y", mcp.Description("Top edge in canvas pixels")),
		mcp.WithNumber("width", mcp.Description("Width in canvas pixels")),
		mcp.WithNumber("height", mcp.Description("Height in canvas pixels")),
		mcp.WithString("content", mcp.Description("New text or image source")),
		mcp.WithString("style",
			mcp.Description(`Style patch as JSON, e.g. {"fontSize":32,"color":"#ffffff","fontWeight":"bold","fontStyle":"italic","backgroundColor":"#000000"}`),
		),
	), s.handleUpdateElement)

	// ── remove_element ─────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("remove_element",
		mcp.WithDescription("🛑 DESTRUCTIVE: Remove an element from the current slide. Requires user approval."),
		mcp.WithNumber("elementId",
			mcp.Description("ID of the element"),
			mcp.Required(),
		),
	), s.handleRemoveElement)
}

// focusSlide makes the slide named in args current, if any.
func (s *Server) focusSlide(args map[string]any) error {
	if _, ok := args["slideId"]; !ok {
		return nil
	}
	slideID, err := s.slideIDArg(args)
	if err != nil {
		return err
	}
	st, err := s.decks.State()
	if err != nil {
		return err
	}
	if _, ok := findSlide(st, slideID); !ok {
		return fmt.Errorf("slide %d not found", slideID)
	}
	return s.decks.SetCurrentSlide(slideID)
}

func (s *Server) handleAddElement(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	if err := s.focusSlide(args); err != nil {
		return nil, err
	}
	id, err := s.decks.AddElement(req.GetString("kind", ""), req.GetString("content", ""))
	if err != nil {
		return nil, err
	}
	return jsonResult(map[string]domain.ElementID{"elementId": id})
}

func (s *Server) handleUpdateElement(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	id, err := elementIDArg(args)
	if err != nil {
		return nil, err
	}
	if err := s.focusSlide(args); err != nil {
		return nil, err
	}

	patch := domain.ElementPatch{
		X:       floatArg(args, "x"),
		Y:       floatArg(args, "y"),
		Width:   floatArg(args, "width"),
		Height:  floatArg(args, "height"),
		Content: stringArg(args, "content"),
	}
	if raw := req.GetString("style", ""); raw != "" {
		var style domain.StylePatch
		if err := parseJSON(raw, &style); err != nil {
			return nil, fmt.Errorf("parse style: %w", err)
		}
		patch.Style = &style
	}

	if err := s.requireElement(id); err != nil {
		return nil, err
	}
	if err := s.decks.UpdateElement(id, patch); err != nil {
		return nil, err
	}
	return s.stateResult()
}

func (s *Server) handleRemoveElement(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := elementIDArg(req.GetArguments())
	if err != nil {
		return nil, err
	}
	if err := s.requireElement(id); err != nil {
		return nil, err
	}

	meta := fmt.Sprintf(`{"elementIds":[%d]}`, id)
	approved, err := s.approval.Request("remove_element",
		fmt.Sprintf("Remove element %d", id), meta)
	if err != nil || !approved {
		return textResult("Action rejected by user"), nil
	}

	if err := s.decks.RemoveElement(id); err != nil {
		return nil, err
	}
	return textResult(fmt.Sprintf("Element %d removed", id)), nil
}

// requireElement checks that id is on the current slide, where element
// edits apply.
func (s *Server) requireElement(id domain.ElementID) error {
	st, err := s.decks.State()
	if err != nil {
		return err
	}
	sl, ok := findSlide(st, st.CurrentSlideID)
	if !ok {
		return fmt.Errorf("no current slide")
	}
	if _, ok := sl.Element(id); !ok {
		return fmt.Errorf("element %d is not on the current slide %d", id, sl.ID)
	}
	return nil
}
