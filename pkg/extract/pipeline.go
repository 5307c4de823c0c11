package extract

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"imoscraper/pkg/models"
)

// Strategy extracts listings from a parsed page using one embedded data
// source. Extract returns the page's records plus pagination metadata when
// the source carries it (nil otherwise).
type Strategy interface {
	Name() string
	Extract(doc *goquery.Document, page int) ([]models.Listing, *models.PageMetadata)
}

// Pipeline runs extraction strategies in order until one yields records.
// Partial output from two strategies is never mixed on a single page.
type Pipeline struct {
	strategies []Strategy
	log        *logrus.Logger
}

// NewPipeline builds the standard two-strategy pipeline: the structured
// __NEXT_DATA__ payload first, the JSON-LD block as fallback.
func NewPipeline(listingURLPrefix string, log *logrus.Logger) *Pipeline {
	return &Pipeline{
		strategies: []Strategy{
			&NextDataStrategy{ListingURLPrefix: listingURLPrefix},
			&JSONLDStrategy{},
		},
		log: log,
	}
}

// ExtractPage parses a fetched body and returns the page's listings plus
// whatever pagination metadata the embedded payload carried. Zero listings
// with nil metadata is a meaningful result, not a failure: recoverable
// per-item problems are already absorbed inside the strategies, so an
// empty page is indistinguishable from genuine end-of-results.
func (p *Pipeline) ExtractPage(body []byte, page int) ([]models.Listing, *models.PageMetadata) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		p.log.Warnf("Page %d: HTML parse failed: %v", page, err)
		return nil, nil
	}

	// Metadata comes from whichever strategy saw it first (in practice the
	// primary payload), even when the records come from the fallback.
	var meta *models.PageMetadata
	for _, s := range p.strategies {
		records, m := s.Extract(doc, page)
		if meta == nil {
			meta = m
		}
		if len(records) > 0 {
			p.log.WithFields(logrus.Fields{"strategy": s.Name(), "page": page, "count": len(records)}).
				Debug("Extraction strategy yielded records")
			return records, meta
		}
	}
	return nil, meta
}

// looseNumber tolerates JSON numbers and numeric strings. Anything else
// fails the conversion, which callers treat as "field absent": a shape
// mismatch skips one field or one item, never a page.
type looseNumber string

func (n *looseNumber) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*n = ""
		return nil
	}
	*n = looseNumber(strings.Trim(s, `"`))
	return nil
}

func (n looseNumber) Float() (float64, bool) {
	if n == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(string(n), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func (n looseNumber) Int() (int, bool) {
	v, ok := n.Float()
	if !ok {
		return 0, false
	}
	return int(v), true
}
