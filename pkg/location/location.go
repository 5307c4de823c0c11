package location

import (
	"net/url"
	"strings"
	"unicode"
)

// categoryMarker is the path segment that anchors the geographic slugs.
// Seed URLs look like .../resultados/comprar/apartamento/<district>/<municipality>/<parish>.
const categoryMarker = "apartamento"

// AllParishes is the parish value for municipality-wide seed URLs that
// carry only two slugs after the marker.
const AllParishes = "Todos"

// Location is the three-level geographic attribution of a crawl task.
type Location struct {
	District     string
	Municipality string
	Parish       string
}

// Unknown is the degraded attribution for URLs that cannot be resolved.
// A task with unknown location is still crawled.
var Unknown = Location{District: "Unknown", Municipality: "Unknown", Parish: "Unknown"}

// Resolve derives (district, municipality, parish) from the path segments
// following the category marker. It is a pure function: any failure, from a
// missing marker to a bad percent-escape, degrades to Unknown rather than
// erroring.
func Resolve(rawURL string) Location {
	base := rawURL
	if i := strings.IndexByte(base, '?'); i >= 0 {
		base = base[:i]
	}

	var segments []string
	for _, s := range strings.Split(base, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}

	marker := -1
	for i, s := range segments {
		if s == categoryMarker {
			marker = i
			break
		}
	}
	if marker < 0 {
		return Unknown
	}

	rest := segments[marker+1:]
	if len(rest) < 2 {
		return Unknown
	}

	district, ok1 := cleanSlug(rest[0])
	municipality, ok2 := cleanSlug(rest[1])
	if !ok1 || !ok2 {
		return Unknown
	}

	if len(rest) == 2 {
		return Location{District: district, Municipality: municipality, Parish: AllParishes}
	}

	parish, ok := cleanSlug(rest[2])
	if !ok {
		return Unknown
	}
	return Location{District: district, Municipality: municipality, Parish: parish}
}

// cleanSlug turns "agualva-e-mira-sintra" into "Agualva E Mira Sintra":
// percent-decode, hyphens to spaces, title case.
func cleanSlug(s string) (string, bool) {
	decoded, err := url.PathUnescape(s)
	if err != nil {
		return "", false
	}
	return titleCase(strings.ReplaceAll(decoded, "-", " ")), true
}

// titleCase uppercases the first rune of each space-separated word and
// lowercases the rest.
func titleCase(s string) string {
	words := strings.Split(s, " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		for j := 1; j < len(r); j++ {
			r[j] = unicode.ToLower(r[j])
		}
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
