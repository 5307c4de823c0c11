package fetch

import (
	"context"
	"net/http"
	"net/url"

	"github.com/sirupsen/logrus"
	"github.com/temoto/robotstxt"
)

// CheckRobots fetches the target host's robots.txt and logs whether the
// seed path is allowed for our user agent. The check is advisory: every
// configured seed is crawled either way, this only gives the operator an
// early warning in the run log.
func CheckRobots(ctx context.Context, client *http.Client, seedURL, userAgent string, log *logrus.Logger) {
	u, err := url.Parse(seedURL)
	if err != nil || u.Host == "" {
		return
	}
	robotsURL := u.Scheme + "://" + u.Host + "/robots.txt"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		log.Debugf("robots.txt fetch failed: %v", err)
		return
	}
	defer resp.Body.Close()

	robots, err := robotstxt.FromResponse(resp)
	if err != nil {
		log.Debugf("robots.txt parse failed: %v", err)
		return
	}

	group := robots.FindGroup(userAgent)
	if group != nil && !group.Test(u.Path) {
		log.Warnf("robots.txt on %s disallows %s for our user agent", u.Host, u.Path)
	} else {
		log.Debugf("robots.txt on %s allows %s", u.Host, u.Path)
	}
}
