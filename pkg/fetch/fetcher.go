package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"imoscraper/pkg/config"
	"imoscraper/pkg/utils"
)

// PageResult is the classified outcome of fetching one listings page.
type PageResult struct {
	Body     []byte
	NotFound bool // HTTP 404: the site's way of saying "past the last page"
}

// Fetcher issues paginated listing requests with a fixed request signature
// and an indefinite fixed-delay retry policy for transient failures. Each
// page's retry loop is independent; no retry state is shared across pages.
type Fetcher struct {
	client *http.Client
	cfg    *config.CrawlConfig
	log    *logrus.Logger
}

// NewFetcher creates a new Fetcher instance.
func NewFetcher(client *http.Client, cfg *config.CrawlConfig, log *logrus.Logger) *Fetcher {
	return &Fetcher{
		client: client,
		cfg:    cfg,
		log:    log,
	}
}

// BuildPageURL appends the fixed page-size parameter and the 1-based page
// number to base, using '&' if base already carries a query string.
func BuildPageURL(base string, pageSize, page int) string {
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%slimit=%d&page=%d", base, sep, pageSize, page)
}

// FetchPage fetches one page of a task's pagination and blocks until it has
// a definitive answer: a 2xx body, a 404 end-of-pagination signal, or
// context cancellation. Every transient failure (non-2xx status other than
// 404, timeout, connection error, torn body) sleeps out the fixed retry
// delay and re-issues the same request; there is no attempt ceiling and no
// backoff growth. Giving up on a page loses data, waiting does not.
func (f *Fetcher) FetchPage(ctx context.Context, baseURL string, page int) (*PageResult, error) {
	pageURL := BuildPageURL(baseURL, f.cfg.PageSize, page)
	reqLog := f.log.WithFields(logrus.Fields{"url": pageURL, "page": page})

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			reqLog.WithFields(logrus.Fields{"attempt": attempt, "delay": f.cfg.RetryDelay}).
				Warn("Waiting before retrying the same page")
			select {
			case <-time.After(f.cfg.RetryDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		res, err := f.fetchOnce(ctx, pageURL)
		if err == nil {
			return res, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			if ctx.Err() != nil {
				// Shutdown, not a server-side timeout.
				return nil, ctx.Err()
			}
			// Per-request timeout from the HTTP client: transient, retry.
		}
		reqLog.WithFields(logrus.Fields{
			"attempt":        attempt,
			"error_category": utils.CategorizeError(err),
		}).Errorf("Fetch failed: %v", err)
	}
}

// fetchOnce performs a single request attempt and classifies the response.
func (f *Fetcher) fetchOnce(ctx context.Context, pageURL string) (*PageResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrRequestCreation, err)
	}
	// Invariant request signature for the whole run.
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept-Language", f.cfg.AcceptLanguage)
	req.Header.Set("Referer", f.cfg.Referer)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		// End of pagination, not an error.
		return &PageResult{NotFound: true}, nil

	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", utils.ErrResponseBodyRead, err)
		}
		return &PageResult{Body: body}, nil

	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d %s", utils.ErrServerHTTPError, resp.StatusCode, resp.Status)

	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("%w: status %d %s", utils.ErrClientHTTPError, resp.StatusCode, resp.Status)

	default:
		return nil, fmt.Errorf("%w: status %d %s", utils.ErrOtherHTTPError, resp.StatusCode, resp.Status)
	}
}
