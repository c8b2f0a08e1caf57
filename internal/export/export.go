package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"go.uber.org/zap"

	"slides/internal/domain"
)

// ErrUnknownFormat is returned for a format no exporter is registered for.
var ErrUnknownFormat = errors.New("unknown export format")

// Document is the read-only input of every exporter.
type Document struct {
	Title  string
	Slides []domain.Slide
}

// FormatSpec describes an export format for the save dialog.
type FormatSpec struct {
	Format    string `json:"format"`
	Label     string `json:"label"`
	Extension string `json:"extension"`
	MIMEType  string `json:"mimeType"`
}

// Exporter encodes a whole document into one artifact.
type Exporter interface {
	Spec() FormatSpec
	Export(ctx context.Context, doc Document, w io.Writer, logger *zap.Logger) error
}

// ── Exporter Registry ──────────────────────────────────────
// Each format registers itself from init().

var (
	registryMu sync.RWMutex
	registry   = map[string]Exporter{}
)

func Register(e Exporter) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[e.Spec().Format] = e
}

// Get returns the exporter for format.
func Get(format string) (Exporter, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	e, ok := registry[format]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	return e, nil
}

// Formats returns the specs of all registered formats, sorted by name.
func Formats() []FormatSpec {
	registryMu.RLock()
	defer registryMu.RUnlock()
	specs := make([]FormatSpec, 0, len(registry))
	for _, e := range registry {
		specs = append(specs, e.Spec())
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Format < specs[j].Format })
	return specs
}

// Write looks up format and exports doc to w.
func Write(ctx context.Context, format string, doc Document, w io.Writer, logger *zap.Logger) error {
	e, err := Get(format)
	if err != nil {
		return err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := e.Export(ctx, doc, w, logger); err != nil {
		return fmt.Errorf("export %s: %w", format, err)
	}
	return nil
}
