package domain

import "fmt"

type ElementKind string

const (
	KindText  ElementKind = "text"
	KindImage ElementKind = "image"
)

// Valid reports whether k is one of the known element kinds.
func (k ElementKind) Valid() bool {
	switch k {
	case KindText, KindImage:
		return true
	}
	return false
}

func ParseElementKind(s string) (ElementKind, error) {
	k := ElementKind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown element kind: %q", s)
	}
	return k, nil
}

// ElementID is derived from a millisecond timestamp. Zero means "no element".
type ElementID int64

const NoElement ElementID = 0

type Style struct {
	FontSize        float64 `json:"fontSize"`
	Color           string  `json:"color"`
	BackgroundColor string  `json:"backgroundColor"`
	FontWeight      string  `json:"fontWeight"`
	FontStyle       string  `json:"fontStyle"`
}

func DefaultStyle() Style {
	return Style{
		FontSize:        24,
		Color:           "#000000",
		BackgroundColor: "transparent",
		FontWeight:      "normal",
		FontStyle:       "normal",
	}
}

func (s Style) Bold() bool   { return s.FontWeight == "bold" }
func (s Style) Italic() bool { return s.FontStyle == "italic" }

type Element struct {
	ID      ElementID   `json:"id"`
	Kind    ElementKind `json:"type"`
	X       float64     `json:"x"`
	Y       float64     `json:"y"`
	Width   float64     `json:"width"`
	Height  float64     `json:"height"`
	Content string      `json:"content"` // plain text, or an image data URL / URL
	Style   Style       `json:"style"`
	Source  string      `json:"source,omitempty"` // linked image file on disk
}

const PlaceholderText = "Double click to edit"

// NewElement builds an element of the given kind with the default geometry
// and style. An empty content falls back to the kind's placeholder.
func NewElement(id ElementID, kind ElementKind, content string) Element {
	el := Element{
		ID:      id,
		Kind:    kind,
		X:       100,
		Y:       100,
		Content: content,
		Style:   DefaultStyle(),
	}
	switch kind {
	case KindText:
		el.Width, el.Height = 300, 50
		if content == "" {
			el.Content = PlaceholderText
		}
	case KindImage:
		el.Width, el.Height = 200, 200
	}
	return el
}

// StylePatch carries the style fields an update touches; nil means keep.
type StylePatch struct {
	FontSize        *float64 `json:"fontSize,omitempty"`
	Color           *string  `json:"color,omitempty"`
	BackgroundColor *string  `json:"backgroundColor,omitempty"`
	FontWeight      *string  `json:"fontWeight,omitempty"`
	FontStyle       *string  `json:"fontStyle,omitempty"`
}

type ElementPatch struct {
	X       *float64    `json:"x,omitempty"`
	Y       *float64    `json:"y,omitempty"`
	Width   *float64    `json:"width,omitempty"`
	Height  *float64    `json:"height,omitempty"`
	Content *string     `json:"content,omitempty"`
	Style   *StylePatch `json:"style,omitempty"`
	Source  *string     `json:"source,omitempty"`
}

// Apply returns a copy of el with the patch merged in.
func (p ElementPatch) Apply(el Element) Element {
	if p.X != nil {
		el.X = *p.X
	}
	if p.Y != nil {
		el.Y = *p.Y
	}
	if p.Width != nil {
		el.Width = *p.Width
	}
	if p.Height != nil {
		el.Height = *p.Height
	}
	if p.Content != nil {
		el.Content = *p.Content
	}
	if p.Source != nil {
		el.Source = *p.Source
	}
	if p.Style != nil {
		el.Style = p.Style.Apply(el.Style)
	}
	return el
}

func (p StylePatch) Apply(s Style) Style {
	if p.FontSize != nil {
		s.FontSize = *p.FontSize
	}
	if p.Color != nil {
		s.Color = *p.Color
	}
	if p.BackgroundColor != nil {
		s.BackgroundColor = *p.BackgroundColor
	}
	if p.FontWeight != nil {
		s.FontWeight = *p.FontWeight
	}
	if p.FontStyle != nil {
		s.FontStyle = *p.FontStyle
	}
	return s
}

// Ptr is a small helper for building patches.
func Ptr[T any](v T) *T { return &v }
