package extract

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"imoscraper/pkg/models"
)

const nextDataSelector = "script#__NEXT_DATA__"

// NextDataStrategy extracts listings from the embedded __NEXT_DATA__
// payload. It runs first: when present, the payload also carries the
// pagination metadata the termination rules depend on.
type NextDataStrategy struct {
	ListingURLPrefix string // canonical ad URL prefix the item slug is appended to
}

// nextDataBlob mirrors only the slice of the payload this crawler needs.
type nextDataBlob struct {
	Props struct {
		PageProps struct {
			Data json.RawMessage `json:"data"`
		} `json:"pageProps"`
	} `json:"props"`
}

// searchBlock is the search payload. Items stay raw so a malformed item
// can be skipped without aborting the rest.
type searchBlock struct {
	TotalHits  looseNumber `json:"totalHits"`
	Pagination struct {
		CurrentPage looseNumber `json:"currentPage"`
	} `json:"pagination"`
	Items   []json.RawMessage `json:"items"`
	Results []json.RawMessage `json:"results"`
}

type nameField struct {
	Name string `json:"name"`
}

type nextDataItem struct {
	Title      string `json:"title"`
	Slug       string `json:"slug"`
	IsPromoted bool   `json:"isPromoted"`
	TotalPrice *struct {
		Value looseNumber `json:"value"`
	} `json:"totalPrice"`
	Location struct {
		City     nameField `json:"city"`
		District nameField `json:"district"`
	} `json:"location"`
	AreaInSquareMeters looseNumber `json:"areaInSquareMeters"`
	NumberOfRooms      looseNumber `json:"numberOfRooms"`
}

func (s *NextDataStrategy) Name() string { return "next_data" }

func (s *NextDataStrategy) Extract(doc *goquery.Document, page int) ([]models.Listing, *models.PageMetadata) {
	block := decodeSearchBlock(doc)
	if block == nil {
		return nil, nil
	}
	meta := block.metadata()

	var listings []models.Listing
	for _, raw := range block.items() {
		if l, ok := s.mapItem(raw, page, meta.TotalHits); ok {
			listings = append(listings, l)
		}
	}
	return listings, meta
}

// decodeSearchBlock locates and parses the search payload. The payload
// lives under props.pageProps.data.searchAds on current page builds and
// directly under props.pageProps.data on older ones.
func decodeSearchBlock(doc *goquery.Document) *searchBlock {
	raw := strings.TrimSpace(doc.Find(nextDataSelector).First().Text())
	if raw == "" {
		return nil
	}

	var blob nextDataBlob
	if err := json.Unmarshal([]byte(raw), &blob); err != nil {
		return nil
	}
	if len(blob.Props.PageProps.Data) == 0 {
		return nil
	}

	var wrapper struct {
		SearchAds *searchBlock `json:"searchAds"`
	}
	if err := json.Unmarshal(blob.Props.PageProps.Data, &wrapper); err == nil && wrapper.SearchAds != nil {
		return wrapper.SearchAds
	}

	var block searchBlock
	if err := json.Unmarshal(blob.Props.PageProps.Data, &block); err != nil {
		return nil
	}
	return &block
}

func (b *searchBlock) metadata() *models.PageMetadata {
	hits, _ := b.TotalHits.Int()
	page, ok := b.Pagination.CurrentPage.Int()
	if !ok {
		page = 1
	}
	return &models.PageMetadata{TotalHits: hits, CurrentPage: page}
}

func (b *searchBlock) items() []json.RawMessage {
	if len(b.Items) > 0 {
		return b.Items
	}
	return b.Results
}

// mapItem builds one Listing from one raw item. Any shape mismatch skips
// the item rather than aborting the page: partial extraction beats none.
func (s *NextDataStrategy) mapItem(raw json.RawMessage, page, totalHits int) (models.Listing, bool) {
	var item nextDataItem
	if err := json.Unmarshal(raw, &item); err != nil {
		return models.Listing{}, false
	}
	if item.Slug == "" {
		return models.Listing{}, false
	}
	// Promoted fillers pad out-of-range pages that report zero hits.
	if item.IsPromoted && page > 1 && totalHits == 0 {
		return models.Listing{}, false
	}

	l := models.Listing{
		Title:       item.Title,
		RawLocation: item.Location.City.Name + ", " + item.Location.District.Name,
		URL:         s.ListingURLPrefix + item.Slug,
	}
	if l.Title == "" {
		l.Title = "N/A"
	}
	if item.TotalPrice != nil {
		if v, ok := item.TotalPrice.Value.Int(); ok {
			l.Price = v
		}
	}
	if v, ok := item.AreaInSquareMeters.Float(); ok && v != 0 {
		l.AreaM2 = &v
	}
	if v, ok := item.NumberOfRooms.Int(); ok && v != 0 {
		rooms := v
		l.Rooms = &rooms
	}
	return l, true
}
