package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slides/internal/domain"
)

// ─────────────────────────────────────────────────────────────
// Element defaults and patches
// ─────────────────────────────────────────────────────────────

func TestNewElement_TextDefaults(t *testing.T) {
	el := domain.NewElement(1, domain.KindText, "")

	assert.Equal(t, 100.0, el.X)
	assert.Equal(t, 100.0, el.Y)
	assert.Equal(t, 300.0, el.Width)
	assert.Equal(t, 50.0, el.Height)
	assert.Equal(t, domain.PlaceholderText, el.Content)
	assert.Equal(t, domain.DefaultStyle(), el.Style)
}

func TestNewElement_ImageDefaults(t *testing.T) {
	el := domain.NewElement(2, domain.KindImage, "")

	assert.Equal(t, 200.0, el.Width)
	assert.Equal(t, 200.0, el.Height)
	assert.Empty(t, el.Content)
}

func TestParseElementKind(t *testing.T) {
	k, err := domain.ParseElementKind("image")
	require.NoError(t, err)
	assert.Equal(t, domain.KindImage, k)

	_, err = domain.ParseElementKind("video")
	assert.Error(t, err)
}

func TestElementPatch_MergesOnlySetFields(t *testing.T) {
	el := domain.NewElement(3, domain.KindText, "Hello")

	got := domain.ElementPatch{
		X:     domain.Ptr(5.0),
		Style: &domain.StylePatch{FontWeight: domain.Ptr("bold")},
	}.Apply(el)

	assert.Equal(t, 5.0, got.X)
	assert.Equal(t, el.Y, got.Y)
	assert.Equal(t, "Hello", got.Content)
	assert.True(t, got.Style.Bold())
	assert.Equal(t, el.Style.FontSize, got.Style.FontSize)
	assert.Equal(t, el.Style.Color, got.Style.Color)
}

// ─────────────────────────────────────────────────────────────
// Background merge
// ─────────────────────────────────────────────────────────────

func TestBackgroundPatch_ColorClearsImage(t *testing.T) {
	bg := &domain.Background{Image: "data:image/png;base64,AAA"}
	got := domain.BackgroundPatch{Color: domain.Ptr("#ff0000")}.Apply(bg)

	assert.Equal(t, "#ff0000", got.Color)
	assert.Empty(t, got.Image)
	assert.Equal(t, "data:image/png;base64,AAA", bg.Image, "input must not be mutated")
}

func TestBackgroundPatch_ImageClearsColor(t *testing.T) {
	got := domain.BackgroundPatch{Image: domain.Ptr("data:x")}.Apply(&domain.Background{Color: "#fff"})

	assert.Equal(t, "data:x", got.Image)
	assert.Empty(t, got.Color)
}

func TestBackgroundPatch_BothKept(t *testing.T) {
	got := domain.BackgroundPatch{Color: domain.Ptr("#fff"), Image: domain.Ptr("data:x")}.Apply(nil)

	assert.Equal(t, "#fff", got.Color)
	assert.Equal(t, "data:x", got.Image)
}

// ─────────────────────────────────────────────────────────────
// Reading order
// ─────────────────────────────────────────────────────────────

func TestReadingOrder_SameRowSortsByX(t *testing.T) {
	a := domain.Element{ID: 1, X: 50, Y: 10}
	b := domain.Element{ID: 2, X: 10, Y: 25}

	got := domain.ReadingOrder([]domain.Element{a, b})

	require.Len(t, got, 2)
	assert.Equal(t, domain.ElementID(2), got[0].ID)
	assert.Equal(t, domain.ElementID(1), got[1].ID)
}

func TestReadingOrder_DifferentRowsSortByY(t *testing.T) {
	a := domain.Element{ID: 1, X: 10, Y: 40}
	b := domain.Element{ID: 2, X: 500, Y: 10}

	got := domain.ReadingOrder([]domain.Element{a, b})

	assert.Equal(t, domain.ElementID(2), got[0].ID)
	assert.Equal(t, domain.ElementID(1), got[1].ID)
}

func TestReadingOrder_StableOnTies(t *testing.T) {
	in := []domain.Element{
		{ID: 1, X: 10, Y: 10},
		{ID: 2, X: 10, Y: 12},
		{ID: 3, X: 10, Y: 14},
	}

	got := domain.ReadingOrder(in)

	for i, el := range got {
		assert.Equal(t, in[i].ID, el.ID)
	}
}

func TestReadingOrder_DoesNotModifyInput(t *testing.T) {
	in := []domain.Element{{ID: 1, Y: 100}, {ID: 2, Y: 0}}
	domain.ReadingOrder(in)
	assert.Equal(t, domain.ElementID(1), in[0].ID)
}

func TestReadingOrder_ChainedRowsIgnoreInputOrder(t *testing.T) {
	a := domain.Element{ID: 1, X: 100, Y: 0}
	b := domain.Element{ID: 2, X: 50, Y: 15}
	c := domain.Element{ID: 3, X: 0, Y: 30}

	// b is within reach of both a and c, but c is too far below a to
	// share its row.
	want := []domain.ElementID{2, 1, 3}
	inputs := map[string][]domain.Element{
		"abc": {a, b, c},
		"acb": {a, c, b},
		"bac": {b, a, c},
		"bca": {b, c, a},
		"cab": {c, a, b},
		"cba": {c, b, a},
	}
	for name, in := range inputs {
		t.Run(name, func(t *testing.T) {
			got := domain.ReadingOrder(in)
			ids := make([]domain.ElementID, len(got))
			for i, el := range got {
				ids[i] = el.ID
			}
			assert.Equal(t, want, ids)
		})
	}
}
