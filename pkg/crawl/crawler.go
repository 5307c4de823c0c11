package crawl

import (
	"context"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"imoscraper/pkg/checkpoint"
	"imoscraper/pkg/config"
	"imoscraper/pkg/extract"
	"imoscraper/pkg/fetch"
	"imoscraper/pkg/models"
	"imoscraper/pkg/storage"
	"imoscraper/pkg/utils"
)

// Crawler drives the sequential task loop: fetch, extract, decide, store,
// checkpoint. One instance per process run. Everything here is a single
// logical thread of control; checkpoint correctness depends on one linear
// progress cursor, so there is deliberately no parallel fetching.
type Crawler struct {
	log      *logrus.Entry
	cfg      *config.AppConfig
	tasks    []models.CrawlTask
	fetcher  *fetch.Fetcher
	pipeline *extract.Pipeline
	ckpt     *checkpoint.Manager
	newSink  storage.Factory
	rng      *rand.Rand

	sink storage.ListingSink // opened lazily, recycled on cooldown, closed at shutdown

	// Session counters. Local on purpose: only the checkpoint is durable.
	pagesSession    int
	listingsSession int
	lastCooldown    int
}

// New creates a Crawler. The sink factory is invoked lazily on the first
// page that has records to store, and again after every cooldown recycle.
func New(
	cfg *config.AppConfig,
	taskList []models.CrawlTask,
	fetcher *fetch.Fetcher,
	pipeline *extract.Pipeline,
	ckpt *checkpoint.Manager,
	newSink storage.Factory,
	baseLog *logrus.Logger,
) *Crawler {
	return &Crawler{
		log:      baseLog.WithField("run_id", uuid.NewString()),
		cfg:      cfg,
		tasks:    taskList,
		fetcher:  fetcher,
		pipeline: pipeline,
		ckpt:     ckpt,
		newSink:  newSink,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Run executes the crawl from the saved checkpoint to the end of the task
// list, or until ctx is cancelled. On return the checkpoint on disk always
// names the next unprocessed page, so a restarted process re-fetches
// exactly where this one stopped.
func (c *Crawler) Run(ctx context.Context) error {
	defer c.closeSink()

	st := c.ckpt.Load()
	if st.TaskIndex >= len(c.tasks) {
		c.log.Info("Checkpoint is past the end of the task list, nothing to do")
		return nil
	}

	c.log.WithFields(logrus.Fields{
		"line": st.LineNumber, "page": st.PageNum, "tasks": len(c.tasks),
	}).Info("Resuming crawl")
	if st.URL != "" {
		c.log.Infof("Last URL: %s", st.URL)
	}

	for i := st.TaskIndex; i < len(c.tasks); i++ {
		task := c.tasks[i]
		line := i + 1

		page := 1
		if i == st.TaskIndex {
			page = st.PageNum
		}

		taskLog := c.log.WithFields(logrus.Fields{
			"line":         line,
			"district":     task.District,
			"municipality": task.Municipality,
			"parish":       task.Parish,
		})
		taskLog.Infof("[%d/%d] %s > %s > %s", line, len(c.tasks), task.District, task.Municipality, task.Parish)

		for {
			if err := c.maybeCooldown(ctx); err != nil {
				return err
			}
			if err := c.interPageDelay(ctx); err != nil {
				return err
			}

			verdict, count, err := c.processPage(ctx, task, i, page)
			if err != nil {
				if ctx.Err() != nil {
					taskLog.Info("Crawl interrupted; checkpoint already covers the last processed page")
					return err
				}
				// Anything unexpected inside page processing is waited out
				// like a network failure: the page is retried, never skipped.
				taskLog.Errorf("Page %d processing failed: %v (waiting %v before retrying)",
					page, err, c.cfg.Crawl.RetryDelay)
				if serr := sleepCtx(ctx, c.cfg.Crawl.RetryDelay); serr != nil {
					return serr
				}
				continue
			}

			if verdict.Ended {
				taskLog.WithField("reason", verdict.Reason.String()).
					Infof("Page %d: pagination ended", page)
				break
			}

			taskLog.Infof("Page %d: +%d listings (session total %d)", page, count, c.listingsSession)
			page++
		}

		// Subdivision complete: advance the durable cursor to the next task.
		next := checkpoint.State{TaskIndex: i + 1, PageNum: 1, LineNumber: line + 1}
		if i+1 < len(c.tasks) {
			next.URL = c.tasks[i+1].SeedURL
		}
		if err := c.ckpt.Save(next); err != nil {
			c.log.Warnf("Could not save checkpoint: %v", err)
		}
	}

	c.log.WithFields(logrus.Fields{
		"pages": c.pagesSession, "listings": c.listingsSession,
	}).Info("All tasks complete")
	return nil
}

// processPage fetches one page, extracts its records, hands them to the
// sink, and advances the checkpoint. Records from this page reach the sink
// strictly before the next page is fetched.
func (c *Crawler) processPage(ctx context.Context, task models.CrawlTask, taskIdx, page int) (Verdict, int, error) {
	res, err := c.fetcher.FetchPage(ctx, task.SeedURL, page)
	if err != nil {
		return Verdict{}, 0, err
	}

	var listings []models.Listing
	var meta *models.PageMetadata
	if !res.NotFound {
		listings, meta = c.pipeline.ExtractPage(res.Body, page)
	}

	verdict := Evaluate(page, res.NotFound, len(listings), meta, c.cfg.Crawl.LowYieldThreshold)
	if verdict.Ended {
		return verdict, 0, nil
	}

	// A sink failure is logged and absorbed, and the checkpoint still
	// advances: forward progress over per-page durability. A page lost to
	// a sink outage is recovered by upsert idempotence on the next full
	// pass, not by stalling the crawl.
	if err := c.upsert(ctx, listings, task); err != nil {
		c.log.WithField("error_category", utils.CategorizeError(err)).
			Errorf("Sink write failed for page %d of line %d: %v", page, taskIdx+1, err)
	}

	if err := c.ckpt.Save(checkpoint.State{
		TaskIndex:  taskIdx,
		PageNum:    page + 1,
		URL:        task.SeedURL,
		LineNumber: taskIdx + 1,
	}); err != nil {
		c.log.Warnf("Could not save checkpoint: %v", err)
	}

	c.pagesSession++
	c.listingsSession += len(listings)
	return verdict, len(listings), nil
}

// upsert hands one page's records to the sink, opening it on first use.
func (c *Crawler) upsert(ctx context.Context, listings []models.Listing, task models.CrawlTask) error {
	if c.sink == nil {
		s, err := c.newSink(ctx)
		if err != nil {
			return err
		}
		c.sink = s
	}
	return c.sink.UpsertBatch(ctx, listings, task)
}

// maybeCooldown performs the periodic long cooldown and recycles the sink
// connection, which can go stale across hours of crawling.
func (c *Crawler) maybeCooldown(ctx context.Context) error {
	cc := c.cfg.Crawl
	if cc.CooldownInterval <= 0 || c.pagesSession == 0 {
		return nil
	}
	if c.pagesSession%cc.CooldownInterval != 0 || c.pagesSession == c.lastCooldown {
		return nil
	}
	c.lastCooldown = c.pagesSession

	c.log.Infof("Cooldown after %d pages: sleeping %v and recycling the sink connection",
		c.pagesSession, cc.CooldownDuration)
	c.closeSink()
	return sleepCtx(ctx, cc.CooldownDuration)
}

// interPageDelay sleeps a bounded uniform random interval so requests do
// not land on a fixed cadence.
func (c *Crawler) interPageDelay(ctx context.Context) error {
	cc := c.cfg.Crawl
	delay := cc.MinDelay
	if span := cc.MaxDelay - cc.MinDelay; span > 0 {
		delay += time.Duration(c.rng.Int63n(int64(span)))
	}
	return sleepCtx(ctx, delay)
}

func (c *Crawler) closeSink() {
	if c.sink != nil {
		c.sink.Close()
		c.sink = nil
	}
}

// sleepCtx waits for d or until ctx is cancelled, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
