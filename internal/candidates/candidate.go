package candidates

import (
	"fmt"

	"github.com/joseph-ayodele/pdf-tagger/internal/layout"
)

// Kind classifies a candidate.
type Kind int

const (
	TextBlock Kind = iota
	PageImage
	RegionImage
)

func (k Kind) String() string {
	switch k {
	case TextBlock:
		return "text-block"
	case PageImage:
		return "page-image"
	case RegionImage:
		return "region-image"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// IsImage reports whether the candidate is rendered rather than sent as text.
func (k Kind) IsImage() bool { return k == PageImage || k == RegionImage }

// Candidate is a piece of a document proposed for one model request.
type Candidate struct {
	Kind Kind
	Page int
	ID   string

	// BBox is the region on the page; the whole page for page images.
	BBox layout.BBox

	// PxW and PxH are the native pixel size before any scaling.
	PxW int
	PxH int

	// Area is the fraction of the page covered, in [0,1].
	Area float64

	// Value is 1 for a full page, the covered fraction for a region.
	Value float64

	WordsOnPage int

	// Order is the encounter order within the document.
	Order int

	// Text holds the page text for text blocks.
	Text string

	// Fallback marks a page image emitted because icon dropping left a
	// nearly textless page without any image.
	Fallback bool
}

// LongEdge returns the longer pixel edge.
func (c Candidate) LongEdge() int {
	if c.PxW > c.PxH {
		return c.PxW
	}
	return c.PxH
}

// Split separates text blocks from image candidates, keeping order.
func Split(cands []Candidate) (texts, images []Candidate) {
	for _, c := range cands {
		if c.Kind.IsImage() {
			images = append(images, c)
		} else {
			texts = append(texts, c)
		}
	}
	return texts, images
}
