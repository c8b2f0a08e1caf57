package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"slides/internal/domain"
	"slides/internal/export"
)

// ─────────────────────────────────────────────────────────────
// Image Search — Wikipedia page images
// ─────────────────────────────────────────────────────────────

const (
	searchLimit     = 20
	searchThumbSize = 200
	maxImageBytes   = 20 << 20
	userAgent       = "slides/1.0 (desktop slide editor)"
)

// ImageResult is one search hit shown in the image picker.
type ImageResult struct {
	ID       int    `json:"id"`
	Title    string `json:"title"`
	URL      string `json:"url"`
	ThumbURL string `json:"thumbUrl"`
}

// ImageSearchService queries Wikipedia for page images and inserts picked
// results into the open deck.
type ImageSearchService struct {
	endpoint string
	client   *http.Client
	decks    *DeckService
	emitter  EventEmitter
	logger   *zap.Logger

	mu      sync.Mutex
	query   string
	results []ImageResult
}

func NewImageSearchService(
	endpoint string,
	timeout time.Duration,
	decks *DeckService,
	emitter EventEmitter,
	logger *zap.Logger,
) *ImageSearchService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImageSearchService{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		decks:    decks,
		emitter:  emitter,
		logger:   logger,
		results:  []ImageResult{},
	}
}

// Results returns the last successful result list.
func (s *ImageSearchService) Results() []ImageResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ImageResult(nil), s.results...)
}

// LastQuery returns the query behind Results.
func (s *ImageSearchService) LastQuery() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.query
}

// Search runs a query and returns the result list. A blank query does
// nothing. A failed request is logged and leaves the previous results in
// place.
func (s *ImageSearchService) Search(ctx context.Context, query string) []ImageResult {
	query = strings.TrimSpace(query)
	if query == "" {
		return s.Results()
	}

	results, err := s.fetch(ctx, query)
	if err != nil {
		s.logger.Warn("image search failed", zap.String("query", query), zap.Error(err))
		return s.Results()
	}

	s.mu.Lock()
	s.query = query
	s.results = results
	s.mu.Unlock()

	s.emitter.Emit(ctx, EventImageResults, map[string]any{"query": query, "results": results})
	return results
}

type wikiResponse struct {
	Query struct {
		Pages map[string]wikiPage `json:"pages"`
	} `json:"query"`
}

type wikiPage struct {
	PageID    int       `json:"pageid"`
	Title     string    `json:"title"`
	Index     int       `json:"index"`
	Thumbnail *wikiFile `json:"thumbnail"`
	Original  *wikiFile `json:"original"`
}

type wikiFile struct {
	Source string `json:"source"`
}

func (s *ImageSearchService) searchURL(query string) string {
	q := url.Values{}
	q.Set("action", "query")
	q.Set("format", "json")
	q.Set("prop", "pageimages")
	q.Set("generator", "search")
	q.Set("gsrsearch", query)
	q.Set("gsrlimit", fmt.Sprint(searchLimit))
	q.Set("piprop", "thumbnail|original")
	q.Set("pithumbsize", fmt.Sprint(searchThumbSize))
	q.Set("origin", "*")
	return s.endpoint + "?" + q.Encode()
}

func (s *ImageSearchService) fetch(ctx context.Context, query string) ([]ImageResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.searchURL(query), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search request: %s", resp.Status)
	}

	var body wikiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return parseWikiPages(body.Query.Pages), nil
}

// parseWikiPages orders pages by search rank and drops those without an
// image.
func parseWikiPages(pages map[string]wikiPage) []ImageResult {
	ordered := make([]wikiPage, 0, len(pages))
	for _, p := range pages {
		ordered = append(ordered, p)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Index != ordered[j].Index {
			return ordered[i].Index < ordered[j].Index
		}
		return ordered[i].PageID < ordered[j].PageID
	})

	results := []ImageResult{}
	for _, p := range ordered {
		var r ImageResult
		r.ID, r.Title = p.PageID, p.Title
		if p.Thumbnail != nil {
			r.ThumbURL = p.Thumbnail.Source
		}
		switch {
		case p.Original != nil && p.Original.Source != "":
			r.URL = p.Original.Source
		default:
			r.URL = r.ThumbURL
		}
		if r.URL == "" {
			continue
		}
		results = append(results, r)
	}
	return results
}

// Insert adds the image at imageURL to the current slide. The image is
// downloaded and embedded; if that fails the element keeps the remote URL.
func (s *ImageSearchService) Insert(ctx context.Context, imageURL string) (domain.ElementID, error) {
	store, err := s.decks.Current()
	if err != nil {
		return domain.NoElement, err
	}
	if strings.TrimSpace(imageURL) == "" {
		return domain.NoElement, fmt.Errorf("image url is required")
	}

	content, err := s.download(ctx, imageURL)
	if err != nil {
		s.logger.Warn("embed search image failed, keeping url", zap.String("url", imageURL), zap.Error(err))
		content = imageURL
	}
	return store.AddElement(domain.KindImage, content), nil
}

func (s *ImageSearchService) download(ctx context.Context, imageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download image: %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	if len(data) > maxImageBytes {
		return "", fmt.Errorf("image larger than %d bytes", maxImageBytes)
	}

	mimeType := resp.Header.Get("Content-Type")
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = mimeType[:i]
	}
	if !strings.HasPrefix(mimeType, "image/") {
		mimeType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return "", fmt.Errorf("not an image: %s", mimeType)
	}
	return export.EncodeDataURL(data, mimeType), nil
}
