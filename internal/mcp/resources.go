package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"slides/internal/domain"
)

const (
	decksURI      = "slides://decks"
	deckURIPrefix = "slides://deck/"
	deckURISuffix = "/slides"
)

func (s *Server) registerResources() {
	// ── slides://decks ─────────────────────────────────
	s.mcp.AddResource(mcp.NewResource(
		decksURI,
		"All Decks",
		mcp.WithMIMEType("application/json"),
	), s.handleDecksResource)

	// ── slides://deck/{deckId}/slides ──────────────────
	s.mcp.AddResourceTemplate(
		mcp.NewResourceTemplate(
			deckURIPrefix+"{deckId}"+deckURISuffix,
			"Slides of a Deck",
		),
		s.handleDeckSlidesResource,
	)
}

func (s *Server) handleDecksResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	decks, err := s.decks.ListDecks()
	if err != nil {
		return nil, err
	}

	type deckSummary struct {
		ID         string `json:"id"`
		Name       string `json:"name"`
		SlideCount int    `json:"slideCount"`
	}

	summaries := []deckSummary{}
	for _, d := range decks {
		summaries = append(summaries, deckSummary{ID: d.ID, Name: d.Name, SlideCount: d.SlideCount})
	}

	data, _ := json.MarshalIndent(summaries, "", "  ")
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      decksURI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleDeckSlidesResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := req.Params.URI
	deckID := extractDeckIDFromURI(uri)
	if deckID == "" {
		return nil, fmt.Errorf("could not extract deckId from URI: %s", uri)
	}

	doc, err := s.decks.LoadDocument(deckID)
	if err != nil {
		return nil, err
	}

	summaries := make([]slideSummary, len(doc.Slides))
	for i, sl := range doc.Slides {
		summaries[i] = summarizeSlide(sl)
	}

	data, _ := json.MarshalIndent(summaries, "", "  ")
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// extractDeckIDFromURI extracts the deck ID from "slides://deck/{id}/slides".
func extractDeckIDFromURI(uri string) string {
	rest, ok := strings.CutPrefix(uri, deckURIPrefix)
	if !ok {
		return ""
	}
	id, ok := strings.CutSuffix(rest, deckURISuffix)
	if !ok || strings.Contains(id, "/") {
		return ""
	}
	return id
}

// ── Summaries ──────────────────────────────────────────────
// Embedded images are megabytes of base64; agents get a short stand-in.

type elementSummary struct {
	ID      domain.ElementID   `json:"id"`
	Kind    domain.ElementKind `json:"type"`
	X       float64            `json:"x"`
	Y       float64            `json:"y"`
	Width   float64            `json:"width"`
	Height  float64            `json:"height"`
	Content string             `json:"content"`
	Source  string             `json:"source,omitempty"`
}

type slideSummary struct {
	ID         int              `json:"id"`
	Background string           `json:"background,omitempty"`
	Elements   []elementSummary `json:"elements"`
}

func summarizeSlide(sl domain.Slide) slideSummary {
	out := slideSummary{ID: sl.ID, Elements: []elementSummary{}}
	if bg := sl.Background; bg != nil {
		out.Background = bg.Color
		if bg.Image != "" {
			out.Background = shortContent(bg.Image)
		}
	}
	for _, el := range domain.ReadingOrder(sl.Elements) {
		out.Elements = append(out.Elements, elementSummary{
			ID:      el.ID,
			Kind:    el.Kind,
			X:       el.X,
			Y:       el.Y,
			Width:   el.Width,
			Height:  el.Height,
			Content: shortContent(el.Content),
			Source:  el.Source,
		})
	}
	return out
}

func shortContent(s string) string {
	if strings.HasPrefix(s, "data:") {
		mime := strings.TrimPrefix(s, "data:")
		if i := strings.IndexAny(mime, ";,"); i >= 0 {
			mime = mime[:i]
		}
		return fmt.Sprintf("[embedded %s, %d bytes]", mime, len(s))
	}
	return s
}
