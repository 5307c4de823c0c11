package tasks

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"imoscraper/pkg/location"
	"imoscraper/pkg/models"
)

// Load reads the seed list (one absolute search URL per line) and builds
// the ordered task list. The order of the returned slice is the order of
// the file and must stay stable across runs: the progress checkpoint
// indexes into it.
//
// A missing file and blank lines both degrade to fewer (or zero) tasks
// rather than an error, so an empty deployment exits cleanly.
func Load(path string, log *logrus.Logger) ([]models.CrawlTask, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warnf("Seed list %s not found, nothing to crawl", path)
			return nil, nil
		}
		return nil, fmt.Errorf("opening seed list %s: %w", path, err)
	}
	defer f.Close()

	var list []models.CrawlTask
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		seedURL := strings.TrimSpace(scanner.Text())
		if seedURL == "" {
			continue
		}
		loc := location.Resolve(seedURL)
		list = append(list, models.CrawlTask{
			District:     loc.District,
			Municipality: loc.Municipality,
			Parish:       loc.Parish,
			SeedURL:      seedURL,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading seed list %s: %w", path, err)
	}

	log.Infof("Loaded %d parish tasks from %s", len(list), path)
	return list, nil
}
