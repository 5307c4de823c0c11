package crawl

import "imoscraper/pkg/models"

// Reason explains why a task's pagination was judged complete.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonNotFound
	ReasonPageEchoMismatch
	ReasonZeroHits
	ReasonLowYield
	ReasonEmptyPage
)

func (r Reason) String() string {
	switch r {
	case ReasonNotFound:
		return "http_404"
	case ReasonPageEchoMismatch:
		return "page_echo_mismatch"
	case ReasonZeroHits:
		return "zero_total_hits"
	case ReasonLowYield:
		return "low_yield"
	case ReasonEmptyPage:
		return "empty_page"
	default:
		return "none"
	}
}

// Verdict is the termination decision for one fetched page.
type Verdict struct {
	Ended  bool
	Reason Reason
}

// Evaluate decides whether the current task's pagination has ended.
//
// Rules, in order:
//  1. A 404 means the site was asked for a page past the end.
//  2. Past page 1, metadata that echoes a different page number than the
//     one requested, or reports zero total hits, means the server silently
//     substituted a fallback page (sites redirect out-of-range requests
//     back to page 1 or to a recommendations page instead of erroring).
//  3. Past page 1, a yield below lowYield with absent or zero-hit metadata
//     is the same recommendations page wearing a thinner disguise.
//  4. A page with no extractable records at all is the end, and is the
//     only rule allowed to end a task on page 1: a parish may legitimately
//     have few matches there.
func Evaluate(page int, notFound bool, recordCount int, meta *models.PageMetadata, lowYield int) Verdict {
	if notFound {
		return Verdict{Ended: true, Reason: ReasonNotFound}
	}

	if meta != nil && page > 1 {
		if meta.CurrentPage != page {
			return Verdict{Ended: true, Reason: ReasonPageEchoMismatch}
		}
		if meta.TotalHits == 0 {
			return Verdict{Ended: true, Reason: ReasonZeroHits}
		}
	}

	if page > 1 && recordCount < lowYield && (meta == nil || meta.TotalHits == 0) {
		return Verdict{Ended: true, Reason: ReasonLowYield}
	}

	if recordCount == 0 {
		return Verdict{Ended: true, Reason: ReasonEmptyPage}
	}

	return Verdict{}
}
