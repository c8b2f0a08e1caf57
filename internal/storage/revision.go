package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"slides/internal/domain"
)

// MaxRevisions caps the saved snapshots kept per deck.
const MaxRevisions = 40

// RevisionStore keeps named snapshots of a deck's slides.
type RevisionStore struct {
	db *DB
}

func NewRevisionStore(db *DB) *RevisionStore {
	return &RevisionStore{db: db}
}

// Create snapshots slides under label and prunes the oldest revisions past
// MaxRevisions.
func (s *RevisionStore) Create(deckID, label string, slides []domain.Slide) (*domain.Revision, error) {
	snapshot, err := json.Marshal(slides)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}

	rev := &domain.Revision{
		ID:        uuid.New().String(),
		DeckID:    deckID,
		Label:     label,
		CreatedAt: time.Now().UTC(),
	}
	_, err = s.db.exec(
		`INSERT INTO revisions (id, deck_id, label, snapshot_json, created_at) VALUES (?, ?, ?, ?, ?)`,
		rev.ID, rev.DeckID, rev.Label, string(snapshot), rev.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert revision: %w", err)
	}

	if err := s.prune(deckID, MaxRevisions); err != nil {
		return nil, fmt.Errorf("prune revisions: %w", err)
	}
	return rev, nil
}

// List returns a deck's revisions, newest first.
func (s *RevisionStore) List(deckID string) ([]domain.Revision, error) {
	rows, err := s.db.query(
		`SELECT id, deck_id, label, created_at FROM revisions
		 WHERE deck_id = ? ORDER BY created_at DESC`, deckID,
	)
	if err != nil {
		return nil, fmt.Errorf("list revisions: %w", err)
	}
	defer rows.Close()

	revs := []domain.Revision{}
	for rows.Next() {
		var r domain.Revision
		if err := rows.Scan(&r.ID, &r.DeckID, &r.Label, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan revision: %w", err)
		}
		revs = append(revs, r)
	}
	return revs, rows.Err()
}

// Load returns the revision and the slides it captured.
func (s *RevisionStore) Load(id string) (*domain.Revision, []domain.Slide, error) {
	var (
		r        domain.Revision
		snapshot string
	)
	err := s.db.queryRow(
		`SELECT id, deck_id, label, snapshot_json, created_at FROM revisions WHERE id = ?`, id,
	).Scan(&r.ID, &r.DeckID, &r.Label, &snapshot, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, fmt.Errorf("revision %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("get revision: %w", err)
	}

	var slides []domain.Slide
	if err := json.Unmarshal([]byte(snapshot), &slides); err != nil {
		return nil, nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &r, slides, nil
}

// prune deletes the oldest revisions when a deck has more than max.
func (s *RevisionStore) prune(deckID string, max int) error {
	var count int
	if err := s.db.queryRow(`SELECT COUNT(*) FROM revisions WHERE deck_id = ?`, deckID).Scan(&count); err != nil {
		return err
	}
	if count <= max {
		return nil
	}

	// Collect ids first; a single sqlite connection can't write with a cursor open.
	rows, err := s.db.query(
		`SELECT id FROM revisions WHERE deck_id = ? ORDER BY created_at ASC LIMIT ?`,
		deckID, count-max,
	)
	if err != nil {
		return err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		ids = append(ids, id)
	}
	rows.Close()

	for _, id := range ids {
		if _, err := s.db.exec(`DELETE FROM revisions WHERE id = ?`, id); err != nil {
			return err
		}
	}
	return nil
}
