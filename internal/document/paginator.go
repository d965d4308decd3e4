package document

import (
	"fmt"
	"strings"

	"ticket-service/internal/models"
)

// Orientation of the output pages
type Orientation string

const (
	Portrait  Orientation = "portrait"
	Landscape Orientation = "landscape"
)

// PageSize is a page in millimetres
type PageSize struct {
	Width  float64
	Height float64
}

var (
	A4Portrait  = PageSize{Width: 210, Height: 297}
	A4Landscape = PageSize{Width: 297, Height: 210}
)

// ParseOrientation accepts "portrait" or "landscape" in any case; empty means portrait
func ParseOrientation(s string) (Orientation, error) {
	switch Orientation(strings.ToLower(strings.TrimSpace(s))) {
	case "", Portrait:
		return Portrait, nil
	case Landscape:
		return Landscape, nil
	}
	return "", models.Invalid("orientation", "unknown orientation %q", s)
}

// PageSizeFor returns the A4 page for an orientation
func PageSizeFor(o Orientation) PageSize {
	if o == Landscape {
		return A4Landscape
	}
	return A4Portrait
}

// BoundaryPolicy decides whether another page is started when the remaining height hits zero
type BoundaryPolicy int

const (
	// BoundaryExact stops once the remaining height is within Epsilon of zero,
	// so an image exactly n pages tall produces n pages
	BoundaryExact BoundaryPolicy = iota
	// BoundaryLegacy keeps paging while remaining >= 0, which emits a trailing
	// blank page when the image is an exact multiple of the page height
	BoundaryLegacy
)

// Epsilon is the tolerance in millimetres used by BoundaryExact
const Epsilon = 1e-6

// MaxPages bounds the output of a single document
const MaxPages = 500

// Placement positions the full image on one page. OffsetY is the distance in
// millimetres from the page top to the image top and is zero or negative.
type Placement struct {
	Page    int     `json:"page"`
	OffsetY float64 `json:"offsetY"`
}

// Layout is the result of paginating one snapshot
type Layout struct {
	Page        PageSize    `json:"-"`
	ImageWidth  float64     `json:"imageWidth"`
	ImageHeight float64     `json:"imageHeight"`
	Placements  []Placement `json:"placements"`
}

// PageCount returns the number of pages in the layout
func (l Layout) PageCount() int {
	return len(l.Placements)
}

// Paginator slices a tall rendered image into fixed-size pages by drawing the
// whole image on every page, shifted up by one page height each time
type Paginator struct {
	page   PageSize
	policy BoundaryPolicy
}

// NewPaginator creates a paginator for page
func NewPaginator(page PageSize, policy BoundaryPolicy) (*Paginator, error) {
	if page.Width <= 0 || page.Height <= 0 {
		return nil, models.Invalid("page", "page size %gx%g must be positive", page.Width, page.Height)
	}
	return &Paginator{page: page, policy: policy}, nil
}

// Page returns the configured page size
func (p *Paginator) Page() PageSize {
	return p.page
}

// Paginate lays out a source image of srcWidth x srcHeight (any unit) scaled to the page width
func (p *Paginator) Paginate(srcWidth, srcHeight float64) (Layout, error) {
	if srcWidth <= 0 || srcHeight <= 0 {
		return Layout{}, models.Invalid("snapshot", "snapshot size %gx%g must be positive", srcWidth, srcHeight)
	}

	rendered := srcHeight * p.page.Width / srcWidth
	layout := Layout{
		Page:        p.page,
		ImageWidth:  p.page.Width,
		ImageHeight: rendered,
		Placements:  []Placement{{Page: 1, OffsetY: 0}},
	}

	remaining := rendered - p.page.Height
	for p.more(remaining) {
		if len(layout.Placements) >= MaxPages {
			return Layout{}, fmt.Errorf("snapshot needs more than %d pages: %w", MaxPages, models.ErrValidation)
		}
		layout.Placements = append(layout.Placements, Placement{
			Page:    len(layout.Placements) + 1,
			OffsetY: remaining - rendered,
		})
		remaining -= p.page.Height
	}
	return layout, nil
}

func (p *Paginator) more(remaining float64) bool {
	if p.policy == BoundaryLegacy {
		return remaining >= 0
	}
	return remaining > Epsilon
}
