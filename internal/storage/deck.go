package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"slides/internal/domain"
)

// DeckStore implements domain.DeckRepository on top of a SQL DB.
type DeckStore struct {
	db *DB
}

func NewDeckStore(db *DB) *DeckStore {
	return &DeckStore{db: db}
}

var _ domain.DeckRepository = (*DeckStore)(nil)

const deckColumns = `d.id, d.name, d.created_at, d.updated_at,
	(SELECT COUNT(*) FROM slides s WHERE s.deck_id = d.id)`

func (s *DeckStore) CreateDeck(d *domain.Deck) error {
	now := time.Now().UTC()
	d.CreatedAt = now
	d.UpdatedAt = now
	_, err := s.db.exec(
		`INSERT INTO decks (id, name, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		d.ID, d.Name, d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert deck: %w", err)
	}
	return nil
}

func (s *DeckStore) GetDeck(id string) (*domain.Deck, error) {
	d := &domain.Deck{}
	err := s.db.queryRow(
		`SELECT `+deckColumns+` FROM decks d WHERE d.id = ?`, id,
	).Scan(&d.ID, &d.Name, &d.CreatedAt, &d.UpdatedAt, &d.SlideCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get deck %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get deck: %w", err)
	}
	return d, nil
}

func (s *DeckStore) ListDecks() ([]domain.Deck, error) {
	rows, err := s.db.query(`SELECT ` + deckColumns + ` FROM decks d ORDER BY d.updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list decks: %w", err)
	}
	defer rows.Close()

	decks := []domain.Deck{}
	for rows.Next() {
		var d domain.Deck
		if err := rows.Scan(&d.ID, &d.Name, &d.CreatedAt, &d.UpdatedAt, &d.SlideCount); err != nil {
			return nil, err
		}
		decks = append(decks, d)
	}
	return decks, rows.Err()
}

func (s *DeckStore) UpdateDeck(d *domain.Deck) error {
	d.UpdatedAt = time.Now().UTC()
	_, err := s.db.exec(
		`UPDATE decks SET name = ?, updated_at = ? WHERE id = ?`,
		d.Name, d.UpdatedAt, d.ID,
	)
	return err
}

func (s *DeckStore) DeleteDeck(id string) error {
	tx, err := s.db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, q := range []string{
		`DELETE FROM elements WHERE deck_id = ?`,
		`DELETE FROM slides WHERE deck_id = ?`,
		`DELETE FROM revisions WHERE deck_id = ?`,
		`DELETE FROM export_jobs WHERE deck_id = ?`,
		`DELETE FROM decks WHERE id = ?`,
	} {
		if _, err := tx.Exec(s.db.dialect.Rebind(q), id); err != nil {
			return fmt.Errorf("delete deck: %w", err)
		}
	}
	return tx.Commit()
}

// ── Slides ─────────────────────────────────────────────────

// LoadSlides returns the deck's slides in presentation order, each with its
// elements in z-order.
func (s *DeckStore) LoadSlides(deckID string) ([]domain.Slide, error) {
	rows, err := s.db.query(
		`SELECT slide_id, background_color, background_image FROM slides
		 WHERE deck_id = ? ORDER BY sort_order ASC`, deckID,
	)
	if err != nil {
		return nil, fmt.Errorf("load slides: %w", err)
	}

	slides := []domain.Slide{}
	index := map[int]int{}
	for rows.Next() {
		var (
			sl           domain.Slide
			color, image sql.NullString
		)
		if err := rows.Scan(&sl.ID, &color, &image); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan slide: %w", err)
		}
		if color.Valid || image.Valid {
			sl.Background = &domain.Background{Color: color.String, Image: image.String}
		}
		sl.Elements = []domain.Element{}
		index[sl.ID] = len(slides)
		slides = append(slides, sl)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	elRows, err := s.db.query(
		`SELECT slide_id, element_id, kind, x, y, width, height, content, style_json, source
		 FROM elements WHERE deck_id = ? ORDER BY slide_id ASC, sort_order ASC`, deckID,
	)
	if err != nil {
		return nil, fmt.Errorf("load elements: %w", err)
	}
	defer elRows.Close()

	for elRows.Next() {
		var (
			slideID   int
			el        domain.Element
			kind      string
			styleJSON string
		)
		if err := elRows.Scan(&slideID, &el.ID, &kind, &el.X, &el.Y, &el.Width, &el.Height, &el.Content, &styleJSON, &el.Source); err != nil {
			return nil, fmt.Errorf("scan element: %w", err)
		}
		if el.Kind, err = domain.ParseElementKind(kind); err != nil {
			return nil, fmt.Errorf("element %d: %w", el.ID, err)
		}
		el.Style = domain.DefaultStyle()
		if err := json.Unmarshal([]byte(styleJSON), &el.Style); err != nil {
			return nil, fmt.Errorf("element %d style: %w", el.ID, err)
		}
		i, ok := index[slideID]
		if !ok {
			continue // orphaned row from an interrupted write
		}
		slides[i].Elements = append(slides[i].Elements, el)
	}
	return slides, elRows.Err()
}

// ReplaceSlides atomically replaces every slide and element of a deck.
func (s *DeckStore) ReplaceSlides(deckID string, slides []domain.Slide) error {
	tx, err := s.db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	rebind := s.db.dialect.Rebind
	if _, err := tx.Exec(rebind(`DELETE FROM elements WHERE deck_id = ?`), deckID); err != nil {
		return fmt.Errorf("delete elements: %w", err)
	}
	if _, err := tx.Exec(rebind(`DELETE FROM slides WHERE deck_id = ?`), deckID); err != nil {
		return fmt.Errorf("delete slides: %w", err)
	}

	insertSlide := rebind(`INSERT INTO slides (deck_id, slide_id, sort_order, background_color, background_image)
		VALUES (?, ?, ?, ?, ?)`)
	insertElement := rebind(`INSERT INTO elements (deck_id, slide_id, element_id, sort_order, kind, x, y, width, height, content, style_json, source)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	for i, sl := range slides {
		var color, image sql.NullString
		if sl.Background != nil {
			color = sql.NullString{String: sl.Background.Color, Valid: true}
			image = sql.NullString{String: sl.Background.Image, Valid: true}
		}
		if _, err := tx.Exec(insertSlide, deckID, sl.ID, i, color, image); err != nil {
			return fmt.Errorf("insert slide %d: %w", sl.ID, err)
		}
		for j, el := range sl.Elements {
			style, err := json.Marshal(el.Style)
			if err != nil {
				return fmt.Errorf("marshal style: %w", err)
			}
			_, err = tx.Exec(insertElement,
				deckID, sl.ID, int64(el.ID), j, string(el.Kind),
				el.X, el.Y, el.Width, el.Height, el.Content, string(style), el.Source,
			)
			if err != nil {
				return fmt.Errorf("insert element %d: %w", el.ID, err)
			}
		}
	}

	if _, err := tx.Exec(rebind(`UPDATE decks SET updated_at = ? WHERE id = ?`), time.Now().UTC(), deckID); err != nil {
		return fmt.Errorf("touch deck: %w", err)
	}
	return tx.Commit()
}
