package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerPrompts() {
	s.mcp.AddPrompt(mcp.NewPrompt("outline_to_deck",
		mcp.WithPromptDescription("Turn a topic or outline into a finished slide deck"),
		mcp.WithArgument("topic",
			mcp.ArgumentDescription("Title of the presentation"),
			mcp.RequiredArgument(),
		),
		mcp.WithArgument("outline",
			mcp.ArgumentDescription("Bullet outline, one slide per top-level item (optional)"),
		),
	), s.handleOutlineToDeckPrompt)
}

func (s *Server) handleOutlineToDeckPrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	topic := req.Params.Arguments["topic"]
	outline := req.Params.Arguments["outline"]
	if outline == "" {
		outline = "(none given: draft 5 to 7 slides yourself)"
	}
	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Build a deck about: %s", topic),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Build a slide deck titled "%s".

Outline:
%s

Follow these steps:

1. Call open_deck with name "%s" to create and open a new deck
2. On slide 1, add a title text element (add_element kind=text) and make it large with update_element (style {"fontSize":48,"fontWeight":"bold"}, x=80, y=200, width=800, height=80)
3. For each outline item, call add_slide, then add a heading text element near the top and a body text element below it
4. Where a picture helps, call search_images and insert_image, then move and size it with update_element
5. Use set_background sparingly for section dividers
6. Call save_deck with label "Draft from outline"

The canvas is 960x540. Keep elements inside it and avoid overlaps.`, topic, outline, topic),
				},
			},
		},
	}, nil
}
