// Package deck holds the in-memory state of the deck being edited.
//
// Store is the only place slides and elements are mutated. Every mutation
// builds a new slide collection, sharing untouched slides and elements
// with the previous one, so a State returned by Snapshot never changes
// after it is handed out. Callers must treat snapshots as read-only.
package deck

import (
	"sync"
	"time"

	"slides/internal/domain"
)

// DefaultHistoryLimit bounds the undo and redo stacks.
const DefaultHistoryLimit = 40

// State is an immutable view of the deck plus the editor selection.
type State struct {
	Slides            []domain.Slide   `json:"slides"`
	CurrentSlideID    int              `json:"currentSlideId"`
	SelectedElementID domain.ElementID `json:"selectedElementId"`
}

// CurrentSlide returns the slide that CurrentSlideID points at.
func (s State) CurrentSlide() (domain.Slide, bool) {
	i := s.slideIndex(s.CurrentSlideID)
	if i < 0 {
		return domain.Slide{}, false
	}
	return s.Slides[i], true
}

// Slide returns the slide with the given id.
func (s State) Slide(id int) (domain.Slide, bool) {
	i := s.slideIndex(id)
	if i < 0 {
		return domain.Slide{}, false
	}
	return s.Slides[i], true
}

func (s State) slideIndex(id int) int {
	for i, sl := range s.Slides {
		if sl.ID == id {
			return i
		}
	}
	return -1
}

// Listener is called after every change with the new snapshot.
type Listener func(State)

type Option func(*Store)

// WithClock replaces the time source used to derive element ids.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithHistoryLimit(n int) Option {
	return func(s *Store) { s.limit = n }
}

type Store struct {
	mu        sync.Mutex
	state     State
	now       func() time.Time
	lastID    domain.ElementID
	undo      [][]domain.Slide
	redo      [][]domain.Slide
	limit     int
	version   uint64
	listeners map[int]Listener
	nextSub   int
}

// New creates a store over the given slides. An empty deck is seeded with
// a single empty slide so the deck is never without one.
func New(slides []domain.Slide, opts ...Option) *Store {
	s := &Store{
		now:       time.Now,
		limit:     DefaultHistoryLimit,
		listeners: map[int]Listener{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.state = State{Slides: seed(slides)}
	s.state.CurrentSlideID = s.state.Slides[0].ID
	for _, sl := range s.state.Slides {
		for _, el := range sl.Elements {
			if el.ID > s.lastID {
				s.lastID = el.ID
			}
		}
	}
	return s
}

func seed(slides []domain.Slide) []domain.Slide {
	if len(slides) == 0 {
		return []domain.Slide{{ID: 1, Elements: []domain.Element{}}}
	}
	out := make([]domain.Slide, len(slides))
	copy(out, slides)
	return out
}

// Snapshot returns the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Version increases on every content change. Selection changes do not
// count, which makes it usable as a dirty marker for saving.
func (s *Store) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

func (s *Store) CanUndo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.undo) > 0
}

func (s *Store) CanRedo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.redo) > 0
}

// Subscribe registers l and returns a function that removes it.
func (s *Store) Subscribe(l Listener) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.listeners[id] = l
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// ── Slides ─────────────────────────────────────────────────

// AddSlide appends an empty slide numbered one past the highest id and
// makes it current.
func (s *Store) AddSlide() int {
	var added int
	s.update(true, func(st State) (State, bool) {
		maxID := 0
		for _, sl := range st.Slides {
			if sl.ID > maxID {
				maxID = sl.ID
			}
		}
		added = maxID + 1
		slides := make([]domain.Slide, len(st.Slides), len(st.Slides)+1)
		copy(slides, st.Slides)
		st.Slides = append(slides, domain.Slide{ID: added, Elements: []domain.Element{}})
		st.CurrentSlideID = added
		st.SelectedElementID = domain.NoElement
		return st, true
	})
	return added
}

// DeleteSlide removes a slide unless it is the only one left. Deleting
// the current slide moves the cursor to the new first slide.
func (s *Store) DeleteSlide(id int) {
	s.update(true, func(st State) (State, bool) {
		if len(st.Slides) <= 1 {
			return st, false
		}
		i := st.slideIndex(id)
		if i < 0 {
			return st, false
		}
		slides := make([]domain.Slide, 0, len(st.Slides)-1)
		slides = append(slides, st.Slides[:i]...)
		slides = append(slides, st.Slides[i+1:]...)
		st.Slides = slides
		if st.CurrentSlideID == id {
			st.CurrentSlideID = slides[0].ID
			st.SelectedElementID = domain.NoElement
		}
		return st, true
	})
}

// UpdateSlideBackground merges patch into the background of any slide,
// current or not.
func (s *Store) UpdateSlideBackground(slideID int, patch domain.BackgroundPatch) {
	s.update(true, func(st State) (State, bool) {
		i := st.slideIndex(slideID)
		if i < 0 {
			return st, false
		}
		sl := st.Slides[i]
		sl.Background = patch.Apply(sl.Background)
		st.Slides = replaceSlide(st.Slides, i, sl)
		return st, true
	})
}

// ── Elements ───────────────────────────────────────────────

// AddElement appends a new element with default geometry to the current
// slide and selects it. It returns NoElement when nothing was added.
func (s *Store) AddElement(kind domain.ElementKind, content string) domain.ElementID {
	if !kind.Valid() {
		return domain.NoElement
	}
	added := domain.NoElement
	s.update(true, func(st State) (State, bool) {
		i := st.slideIndex(st.CurrentSlideID)
		if i < 0 {
			return st, false
		}
		el := domain.NewElement(s.nextElementID(), kind, content)
		sl := st.Slides[i]
		elements := make([]domain.Element, len(sl.Elements), len(sl.Elements)+1)
		copy(elements, sl.Elements)
		sl.Elements = append(elements, el)
		st.Slides = replaceSlide(st.Slides, i, sl)
		st.SelectedElementID = el.ID
		added = el.ID
		return st, true
	})
	return added
}

// UpdateElement merges patch into the matching element of the current
// slide. Elements on other slides are never touched.
func (s *Store) UpdateElement(id domain.ElementID, patch domain.ElementPatch) {
	s.update(true, func(st State) (State, bool) {
		return patchElement(st, st.CurrentSlideID, id, patch)
	})
}

// PatchSlideElement is UpdateElement addressed to an explicit slide. It is
// used by background tasks whose target may no longer be on screen.
func (s *Store) PatchSlideElement(slideID int, id domain.ElementID, patch domain.ElementPatch) {
	s.update(true, func(st State) (State, bool) {
		return patchElement(st, slideID, id, patch)
	})
}

// RemoveElement deletes the element from the current slide. Selection is
// cleared only when it pointed at the removed element.
func (s *Store) RemoveElement(id domain.ElementID) {
	s.update(true, func(st State) (State, bool) {
		i := st.slideIndex(st.CurrentSlideID)
		if i < 0 {
			return st, false
		}
		sl := st.Slides[i]
		j := elementIndex(sl.Elements, id)
		if j < 0 {
			return st, false
		}
		elements := make([]domain.Element, 0, len(sl.Elements)-1)
		elements = append(elements, sl.Elements[:j]...)
		sl.Elements = append(elements, sl.Elements[j+1:]...)
		st.Slides = replaceSlide(st.Slides, i, sl)
		if st.SelectedElementID == id {
			st.SelectedElementID = domain.NoElement
		}
		return st, true
	})
}

// ── Selection ──────────────────────────────────────────────

func (s *Store) SetCurrentSlideID(id int) {
	s.update(false, func(st State) (State, bool) {
		if st.CurrentSlideID == id {
			return st, false
		}
		st.CurrentSlideID = id
		return st, true
	})
}

func (s *Store) SetSelectedElementID(id domain.ElementID) {
	s.update(false, func(st State) (State, bool) {
		if st.SelectedElementID == id {
			return st, false
		}
		st.SelectedElementID = id
		return st, true
	})
}

// ── History ────────────────────────────────────────────────

// Replace swaps in a whole slide collection, e.g. a restored revision.
// The previous slides stay reachable through Undo.
func (s *Store) Replace(slides []domain.Slide) {
	s.update(true, func(st State) (State, bool) {
		st.Slides = seed(slides)
		s.bumpLastID(st.Slides)
		return repairSelection(st), true
	})
}

func (s *Store) Undo() bool {
	return s.travel(&s.undo, &s.redo)
}

func (s *Store) Redo() bool {
	return s.travel(&s.redo, &s.undo)
}

func (s *Store) travel(from, to *[][]domain.Slide) bool {
	s.mu.Lock()
	if len(*from) == 0 {
		s.mu.Unlock()
		return false
	}
	last := len(*from) - 1
	slides := (*from)[last]
	*from = (*from)[:last]
	*to = pushBounded(*to, s.state.Slides, s.limit)

	st := s.state
	st.Slides = slides
	s.state = repairSelection(st)
	s.version++
	next, listeners := s.state, s.listenerList()
	s.mu.Unlock()

	for _, l := range listeners {
		l(next)
	}
	return true
}

// ── internals ──────────────────────────────────────────────

// update runs fn under the lock. When fn reports a change the new state is
// published; content changes are also recorded for undo.
func (s *Store) update(content bool, fn func(State) (State, bool)) {
	s.mu.Lock()
	prev := s.state
	next, changed := fn(prev)
	if !changed {
		s.mu.Unlock()
		return
	}
	if content {
		s.undo = pushBounded(s.undo, prev.Slides, s.limit)
		s.redo = nil
		s.version++
	}
	s.state = next
	listeners := s.listenerList()
	s.mu.Unlock()

	for _, l := range listeners {
		l(next)
	}
}

func (s *Store) listenerList() []Listener {
	out := make([]Listener, 0, len(s.listeners))
	for i := 0; i < s.nextSub; i++ {
		if l, ok := s.listeners[i]; ok {
			out = append(out, l)
		}
	}
	return out
}

// nextElementID derives an id from the clock, bumping past the last one
// handed out so two elements created in the same millisecond stay unique.
// Must be called with s.mu held.
func (s *Store) nextElementID() domain.ElementID {
	id := domain.ElementID(s.now().UnixMilli())
	if id <= s.lastID {
		id = s.lastID + 1
	}
	s.lastID = id
	return id
}

func (s *Store) bumpLastID(slides []domain.Slide) {
	for _, sl := range slides {
		for _, el := range sl.Elements {
			if el.ID > s.lastID {
				s.lastID = el.ID
			}
		}
	}
}

func patchElement(st State, slideID int, id domain.ElementID, patch domain.ElementPatch) (State, bool) {
	i := st.slideIndex(slideID)
	if i < 0 {
		return st, false
	}
	sl := st.Slides[i]
	j := elementIndex(sl.Elements, id)
	if j < 0 {
		return st, false
	}
	elements := make([]domain.Element, len(sl.Elements))
	copy(elements, sl.Elements)
	elements[j] = patch.Apply(elements[j])
	sl.Elements = elements
	st.Slides = replaceSlide(st.Slides, i, sl)
	return st, true
}

// repairSelection points the cursor back at an existing slide and drops a
// selection that no longer lives on it.
func repairSelection(st State) State {
	cur, ok := st.CurrentSlide()
	if !ok {
		st.CurrentSlideID = st.Slides[0].ID
		cur = st.Slides[0]
	}
	if _, ok := cur.Element(st.SelectedElementID); !ok {
		st.SelectedElementID = domain.NoElement
	}
	return st
}

func replaceSlide(slides []domain.Slide, i int, sl domain.Slide) []domain.Slide {
	out := make([]domain.Slide, len(slides))
	copy(out, slides)
	out[i] = sl
	return out
}

func elementIndex(elements []domain.Element, id domain.ElementID) int {
	for i, el := range elements {
		if el.ID == id {
			return i
		}
	}
	return -1
}

func pushBounded(stack [][]domain.Slide, slides []domain.Slide, limit int) [][]domain.Slide {
	stack = append(stack, slides)
	if limit > 0 && len(stack) > limit {
		stack = stack[len(stack)-limit:]
	}
	return stack
}
