package models

// CrawlTask is one unit of work: a parish-scoped seed URL plus the
// geographic attribution resolved from it. Tasks are built once at startup
// from the seed list and never mutated; their order in the list defines
// resumption order.
type CrawlTask struct {
	District     string
	Municipality string
	Parish       string
	SeedURL      string // base search URL without pagination parameters
}

// Listing is one extracted ad, normalized to the shape the sink stores.
// URL is the natural identifier: two listings with the same URL are the
// same real-world ad and collapse to one row on upsert.
type Listing struct {
	Title       string
	Price       int // whole currency units, 0 if unknown
	RawLocation string
	AreaM2      *float64 // nil when the page carried no usable area
	Rooms       *int     // nil when the page carried no usable room count
	URL         string
}

// PageMetadata is the pagination metadata embedded in a page's structured
// payload. A nil *PageMetadata means the payload was absent, which pushes
// extraction to the fallback strategy and termination to its conservative
// rules.
type PageMetadata struct {
	TotalHits   int
	CurrentPage int // the page the server says it rendered, not the one asked for
}
