package extract

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"imoscraper/pkg/models"
)

const jsonLDSelector = `script[type="application/ld+json"]`

// JSONLDStrategy extracts listings from the page's linked-data block. It
// only runs when the primary payload yielded nothing and never carries
// pagination metadata, which pushes termination to its conservative rules.
type JSONLDStrategy struct{}

type ldOffer struct {
	Name        string      `json:"name"`
	Price       looseNumber `json:"price"`
	URL         string      `json:"url"`
	ItemOffered struct {
		Address struct {
			AddressLocality string `json:"addressLocality"`
			AddressRegion   string `json:"addressRegion"`
		} `json:"address"`
		FloorSize *struct {
			Value looseNumber `json:"value"`
		} `json:"floorSize"`
		NumberOfRooms looseNumber `json:"numberOfRooms"`
	} `json:"itemOffered"`
}

func (s *JSONLDStrategy) Name() string { return "json_ld" }

func (s *JSONLDStrategy) Extract(doc *goquery.Document, page int) ([]models.Listing, *models.PageMetadata) {
	raw := strings.TrimSpace(doc.Find(jsonLDSelector).First().Text())
	if raw == "" {
		return nil, nil
	}

	var listings []models.Listing
	for _, o := range collectOffers([]byte(raw)) {
		if l, ok := mapOffer(o); ok {
			listings = append(listings, l)
		}
	}
	return listings, nil
}

// collectOffers accepts either a @graph node wrapping a collection of
// offers or a flat offer shape at the document root.
func collectOffers(raw []byte) []json.RawMessage {
	var top struct {
		Graph  []json.RawMessage `json:"@graph"`
		Offers json.RawMessage   `json:"offers"`
	}
	if err := json.Unmarshal(raw, &top); err != nil {
		return nil
	}

	type offersNode struct {
		Offers []json.RawMessage `json:"offers"`
	}

	for _, g := range top.Graph {
		var node struct {
			Offers json.RawMessage `json:"offers"`
		}
		if err := json.Unmarshal(g, &node); err != nil || len(node.Offers) == 0 {
			continue
		}
		var nested offersNode
		if err := json.Unmarshal(node.Offers, &nested); err == nil && len(nested.Offers) > 0 {
			return nested.Offers
		}
	}

	if len(top.Offers) > 0 {
		var nested offersNode
		if err := json.Unmarshal(top.Offers, &nested); err == nil && len(nested.Offers) > 0 {
			return nested.Offers
		}
		// Flat single-offer shape.
		return []json.RawMessage{top.Offers}
	}
	return nil
}

// mapOffer builds one Listing from one offer; malformed offers are
// skipped, not fatal.
func mapOffer(raw json.RawMessage) (models.Listing, bool) {
	var o ldOffer
	if err := json.Unmarshal(raw, &o); err != nil {
		return models.Listing{}, false
	}
	if o.URL == "" {
		return models.Listing{}, false
	}

	addr := o.ItemOffered.Address
	l := models.Listing{
		Title:       o.Name,
		RawLocation: strings.Trim(addr.AddressLocality+", "+addr.AddressRegion, ", "),
		URL:         o.URL,
	}
	if l.Title == "" {
		l.Title = "N/A"
	}
	if v, ok := o.Price.Int(); ok {
		l.Price = v
	}
	if o.ItemOffered.FloorSize != nil {
		if v, ok := o.ItemOffered.FloorSize.Value.Float(); ok && v != 0 {
			l.AreaM2 = &v
		}
	}
	if v, ok := o.ItemOffered.NumberOfRooms.Int(); ok && v != 0 {
		rooms := v
		l.Rooms = &rooms
	}
	return l, true
}
