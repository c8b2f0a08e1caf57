package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"slides/internal/config"
	"slides/internal/service"
)

// ExportHeadless writes a stored deck without starting the GUI. deckRef is
// a deck id or an exact deck name.
func ExportHeadless(ctx context.Context, cfg *config.Config, logger *zap.Logger, deckRef, format, out string) (string, error) {
	svc, err := OpenServices(ctx, cfg, service.NopEmitter{}, logger)
	if err != nil {
		return "", err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		svc.Close(closeCtx)
	}()

	id, err := resolveDeck(svc.Decks, deckRef)
	if err != nil {
		return "", err
	}
	if err := svc.Exports.ExportDeck(ctx, id, format, out); err != nil {
		return "", err
	}
	return id, nil
}

func resolveDeck(decks *service.DeckService, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("deck is required")
	}
	all, err := decks.ListDecks()
	if err != nil {
		return "", err
	}
	var byName []string
	for _, d := range all {
		if d.ID == ref {
			return d.ID, nil
		}
		if d.Name == ref {
			byName = append(byName, d.ID)
		}
	}
	switch len(byName) {
	case 0:
		return "", fmt.Errorf("deck %q not found", ref)
	case 1:
		return byName[0], nil
	default:
		return "", fmt.Errorf("deck name %q is ambiguous (%d decks), use the id", ref, len(byName))
	}
}
