package collect

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"

	"github.com/TobiSchelling/skycrawler/internal/enrich"
	"github.com/TobiSchelling/skycrawler/internal/events"
	"github.com/TobiSchelling/skycrawler/internal/extract"
	"github.com/TobiSchelling/skycrawler/internal/fetch"
	"github.com/TobiSchelling/skycrawler/internal/request"
)

// Options configures one collection run for a single category.
type Options struct {
	// Type is the category to collect, e.g. events.Satellite(25544).
	Type events.EventType
	// Pages is the number of list pages to walk; at least 1.
	Pages int
	// Root is the base output directory. Artifacts go to Root/Category.
	Root string
	// Counter is the starting page index.
	Counter int
	// Token resumes pagination from a previously returned token.
	Token string
	// Database seeds the accumulated collection.
	Database []events.Record
	// Fresh clears the category directory before the first page.
	Fresh bool
}

// Result holds the results of a collection run.
type Result struct {
	Category string
	Records  []events.Record
	Pages    int
	// Token is the latest pagination token, usable to resume.
	Token          string
	Enriched       int
	DetailFailures int
	ImagesSaved    int
}

// PageError reports a list page that could not be fetched or parsed.
// Records accumulated before the failure are still returned.
type PageError struct {
	Category string
	Page     int
	Err      error
}

func (e *PageError) Error() string {
	return fmt.Sprintf("%s page %d: %v", e.Category, e.Page, e.Err)
}

func (e *PageError) Unwrap() error { return e.Err }

// Collector walks the list pages of a category and enriches every row.
type Collector struct {
	fetcher enrich.Fetcher
	store   fetch.Store
	profile request.Profile
	logger  *slog.Logger
}

// NewCollector creates a new collector.
func NewCollector(f enrich.Fetcher, store fetch.Store, profile request.Profile, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{
		fetcher: f,
		store:   store,
		profile: profile,
		logger:  logger.With("component", "collect"),
	}
}

// Collect fetches pages Counter..Pages-1 strictly in order. The first
// page is a GET; later pages POST the pagination token from the page
// before. A failed page stops the walk: the records accumulated so far
// are returned together with a *PageError.
func (c *Collector) Collect(ctx context.Context, opts Options) (*Result, error) {
	et := opts.Type
	dir := filepath.Join(opts.Root, et.Category)
	log := c.logger.With("category", et.Category)

	if opts.Fresh {
		if err := c.store.Clear(dir); err != nil {
			log.Warn("clear output directory", "dir", dir, "error", err)
		}
	}
	if err := c.store.EnsureDir(dir); err != nil {
		log.Error("create output directory", "dir", dir, "error", err)
	}

	builder := request.NewBuilder(c.profile, et.Page, et.Query)
	enricher := enrich.New(c.fetcher, c.store, builder, et, dir, c.logger)

	r := &Result{
		Category: et.Category,
		Records:  slices.Clone(opts.Database),
		Token:    opts.Token,
	}

	for n := opts.Counter; n < opts.Pages; n++ {
		if err := ctx.Err(); err != nil {
			return r, &PageError{Category: et.Category, Page: n, Err: err}
		}

		summaries, next, err := c.listPage(ctx, builder, et, n, r.Token)
		if err != nil {
			log.Error("list page failed", "page", n, "error", err)
			return r, &PageError{Category: et.Category, Page: n, Err: err}
		}
		log.Info("list page", "page", n, "rows", len(summaries))

		page := enricher.EnrichPage(ctx, summaries)
		for _, rec := range page {
			switch {
			case rec.Enriched:
				r.Enriched++
			case rec.DetailError != "":
				r.DetailFailures++
			}
			if rec.ImageSaved {
				r.ImagesSaved++
			}
		}

		r.Records = append(r.Records, page...)
		if next != "" {
			r.Token = next
		}
		r.Pages++
	}

	log.Info("collection complete",
		"pages", r.Pages,
		"records", len(r.Records),
		"enriched", r.Enriched,
		"detail_failures", r.DetailFailures,
		"images", r.ImagesSaved)
	return r, nil
}

func (c *Collector) listPage(ctx context.Context, b *request.Builder, et events.EventType, n int, token string) ([]events.Record, string, error) {
	req, err := b.List(n == 0, token)
	if err != nil {
		return nil, "", err
	}
	res, err := c.fetcher.Do(ctx, req)
	if err != nil {
		return nil, "", err
	}
	doc, err := extract.Parse(res.Body)
	if err != nil {
		return nil, "", err
	}
	return extract.Summaries(doc, et, b.BaseURL()), extract.PaginationToken(doc), nil
}
