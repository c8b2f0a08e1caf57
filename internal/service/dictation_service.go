package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"

	"slides/internal/config"
	"slides/internal/deck"
	"slides/internal/domain"
)

// ErrDictationUnsupported is returned once the platform reported that
// speech recognition is unavailable.
var ErrDictationUnsupported = errors.New("speech recognition is not supported on this platform")

// ErrDictationInactive is returned when a transcript arrives with no session.
var ErrDictationInactive = errors.New("dictation is not active")

// ─────────────────────────────────────────────────────────────
// Dictation — transcript stream into a text element
// ─────────────────────────────────────────────────────────────
//
// Recognition itself runs in the webview. The frontend forwards each
// result as a TranscriptChunk and a session goroutine turns every chunk
// into a single update of the target element.

// TranscriptChunk is one recognition result. Interim chunks replace each
// other until a final chunk commits the phrase.
type TranscriptChunk struct {
	Text  string `json:"text"`
	Final bool   `json:"final"`
}

// DictationStatus is sent with dictation:state events.
type DictationStatus struct {
	Active    bool             `json:"active"`
	Supported bool             `json:"supported"`
	Locale    string           `json:"locale"`
	ElementID domain.ElementID `json:"elementId"`
}

type DictationService struct {
	decks   *DeckService
	emitter EventEmitter
	logger  *zap.Logger

	mu          sync.Mutex
	locale      string
	unsupported bool
	session     *dictationSession
}

type dictationSession struct {
	slideID   int
	elementID domain.ElementID
	chunks    chan TranscriptChunk
	cancel    context.CancelFunc
	done      chan struct{}
}

func NewDictationService(decks *DeckService, locale string, emitter EventEmitter, logger *zap.Logger) *DictationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !slices.Contains(config.Locales, locale) {
		locale = config.Locales[0]
	}
	return &DictationService{decks: decks, emitter: emitter, logger: logger, locale: locale}
}

func (s *DictationService) Locale() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locale
}

// SetLocale switches the recognition language. It applies to the next
// session.
func (s *DictationService) SetLocale(ctx context.Context, locale string) error {
	if !slices.Contains(config.Locales, locale) {
		return fmt.Errorf("unsupported dictation locale %q (valid: %v)", locale, config.Locales)
	}
	s.mu.Lock()
	s.locale = locale
	s.mu.Unlock()
	s.emitStatus(ctx)
	return nil
}

func (s *DictationService) Status() DictationStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := DictationStatus{Supported: !s.unsupported, Locale: s.locale}
	if s.session != nil {
		st.Active = true
		st.ElementID = s.session.elementID
	}
	return st
}

func (s *DictationService) emitStatus(ctx context.Context) {
	s.emitter.Emit(ctx, EventDictationState, s.Status())
}

// Start begins a session writing into the selected text element, or into
// a new text element when nothing suitable is selected. A running session
// is stopped first.
func (s *DictationService) Start(ctx context.Context) (domain.ElementID, error) {
	s.mu.Lock()
	unsupported := s.unsupported
	s.mu.Unlock()
	if unsupported {
		return domain.NoElement, ErrDictationUnsupported
	}

	store, err := s.decks.Current()
	if err != nil {
		return domain.NoElement, err
	}
	s.Stop(ctx)

	slideID, target, base := dictationTarget(store)

	sessCtx, cancel := context.WithCancel(context.Background())
	sess := &dictationSession{
		slideID:   slideID,
		elementID: target,
		chunks:    make(chan TranscriptChunk, 16),
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	go s.run(sessCtx, sess, store, base)

	s.mu.Lock()
	s.session = sess
	s.mu.Unlock()

	s.logger.Debug("dictation started", zap.Int64("element", int64(target)), zap.String("locale", s.Locale()))
	s.emitStatus(ctx)
	return target, nil
}

func dictationTarget(store *deck.Store) (slideID int, id domain.ElementID, base string) {
	snap := store.Snapshot()
	if cur, ok := snap.CurrentSlide(); ok {
		if el, ok := cur.Element(snap.SelectedElementID); ok && el.Kind == domain.KindText {
			base := el.Content
			if base == domain.PlaceholderText {
				base = ""
			}
			return cur.ID, el.ID, base
		}
	}
	id = store.AddElement(domain.KindText, "")
	return store.Snapshot().CurrentSlideID, id, ""
}

// Stop ends the running session, if any, and waits for it to finish.
func (s *DictationService) Stop(ctx context.Context) {
	s.mu.Lock()
	sess := s.session
	s.session = nil
	s.mu.Unlock()
	if sess == nil {
		return
	}
	sess.cancel()
	<-sess.done
	s.logger.Debug("dictation stopped", zap.Int64("element", int64(sess.elementID)))
	s.emitStatus(ctx)
}

// Toggle starts a session when idle and stops it when active. It reports
// whether dictation is active afterwards.
func (s *DictationService) Toggle(ctx context.Context) (bool, error) {
	if s.Status().Active {
		s.Stop(ctx)
		return false, nil
	}
	if _, err := s.Start(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// Push hands a recognition result to the running session.
func (s *DictationService) Push(ctx context.Context, chunk TranscriptChunk) error {
	s.mu.Lock()
	sess := s.session
	s.mu.Unlock()
	if sess == nil {
		return ErrDictationInactive
	}
	select {
	case sess.chunks <- chunk:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ReportUnsupported is called by the frontend when the webview has no
// speech recognition. Dictation stays disabled for the rest of the run.
func (s *DictationService) ReportUnsupported(ctx context.Context) error {
	s.Stop(ctx)
	s.mu.Lock()
	s.unsupported = true
	s.mu.Unlock()
	s.logger.Warn("speech recognition unavailable, dictation disabled")
	s.emitter.Emit(ctx, EventDictationUnsupported, map[string]string{
		"message": ErrDictationUnsupported.Error(),
	})
	s.emitStatus(ctx)
	return ErrDictationUnsupported
}

func (s *DictationService) run(ctx context.Context, sess *dictationSession, store *deck.Store, base string) {
	defer close(sess.done)

	committed := base
	apply := func(chunk TranscriptChunk) {
		text := joinTranscript(committed, chunk.Text)
		if chunk.Final {
			committed = text
		}
		// Targeted so switching slides mid-session keeps writing here.
		store.PatchSlideElement(sess.slideID, sess.elementID, domain.ElementPatch{Content: &text})
	}

	for {
		select {
		case <-ctx.Done():
			// Chunks accepted before the stop still land.
			for {
				select {
				case chunk := <-sess.chunks:
					apply(chunk)
				default:
					return
				}
			}
		case chunk := <-sess.chunks:
			apply(chunk)
		}
	}
}

func joinTranscript(parts ...string) string {
	var out []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}
