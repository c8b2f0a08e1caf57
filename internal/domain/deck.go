package domain

import "time"

type Deck struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	SlideCount int       `json:"slideCount"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// DeckState is the full editable view of a deck handed to the frontend.
type DeckState struct {
	Deck              Deck      `json:"deck"`
	Slides            []Slide   `json:"slides"`
	CurrentSlideID    int       `json:"currentSlideId"`
	SelectedElementID ElementID `json:"selectedElementId"`
	CanUndo           bool      `json:"canUndo"`
	CanRedo           bool      `json:"canRedo"`
}

type DeckRepository interface {
	CreateDeck(d *Deck) error
	GetDeck(id string) (*Deck, error)
	ListDecks() ([]Deck, error)
	UpdateDeck(d *Deck) error
	DeleteDeck(id string) error

	LoadSlides(deckID string) ([]Slide, error)
	ReplaceSlides(deckID string, slides []Slide) error
}

type Revision struct {
	ID        string    `json:"id"`
	DeckID    string    `json:"deckId"`
	Label     string    `json:"label"`
	CreatedAt time.Time `json:"createdAt"`
}
