package domain

type Background struct {
	Color string `json:"color,omitempty"`
	Image string `json:"image,omitempty"` // data URL
}

type Slide struct {
	ID         int         `json:"id"`
	Elements   []Element   `json:"elements"`
	Background *Background `json:"background,omitempty"`
}

// Element returns the element with the given id and whether it was found.
func (s Slide) Element(id ElementID) (Element, bool) {
	for _, el := range s.Elements {
		if el.ID == id {
			return el, true
		}
	}
	return Element{}, false
}

type BackgroundPatch struct {
	Color *string `json:"color,omitempty"`
	Image *string `json:"image,omitempty"`
}

// Apply merges the patch into bg (which may be nil) and returns the result.
// Color and image are kept mutually exclusive: a patch that only sets a
// non-empty color drops the image, and the reverse. A patch naming both
// keeps both.
func (p BackgroundPatch) Apply(bg *Background) *Background {
	next := Background{}
	if bg != nil {
		next = *bg
	}
	switch {
	case p.Color != nil && p.Image != nil:
		next.Color, next.Image = *p.Color, *p.Image
	case p.Color != nil:
		next.Color = *p.Color
		if next.Color != "" {
			next.Image = ""
		}
	case p.Image != nil:
		next.Image = *p.Image
		if next.Image != "" {
			next.Color = ""
		}
	}
	return &next
}
