package enrich

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/TobiSchelling/skycrawler/internal/events"
	"github.com/TobiSchelling/skycrawler/internal/extract"
	"github.com/TobiSchelling/skycrawler/internal/fetch"
	"github.com/TobiSchelling/skycrawler/internal/request"
)

// Fetcher is the transport the enricher needs.
type Fetcher interface {
	Do(ctx context.Context, req request.Request) (*fetch.Response, error)
	Stream(ctx context.Context, req request.Request, open fetch.Opener) error
}

// Enricher fetches detail pages for summary records of one category and
// caches their detail markup and chart images under dir.
type Enricher struct {
	fetcher Fetcher
	store   fetch.Store
	builder *request.Builder
	et      events.EventType
	dir     string
	logger  *slog.Logger

	images sync.WaitGroup
	mu     sync.Mutex
	errs   []error
}

// New creates an enricher writing artifacts into dir.
func New(f Fetcher, store fetch.Store, b *request.Builder, et events.EventType, dir string, logger *slog.Logger) *Enricher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Enricher{
		fetcher: f,
		store:   store,
		builder: b,
		et:      et,
		dir:     dir,
		logger:  logger.With("component", "enrich", "category", et.Category),
	}
}

// NewID returns a fresh record identifier: the hex md5 of a random token.
func NewID() string {
	sum := md5.Sum([]byte(uuid.NewString()))
	return hex.EncodeToString(sum[:])
}

// Enrich fetches rec's detail page and merges it into rec. A failed fetch
// leaves the summary fields untouched and sets DetailError. When the page
// exposes a chart image, its download is started in the background and
// sets ImageSaved once written; call Wait before reading ImageSaved.
func (e *Enricher) Enrich(ctx context.Context, rec *events.Record) {
	req, err := e.builder.Detail(rec.DetailURL)
	if err != nil {
		e.fail(rec, err)
		return
	}
	res, err := e.fetcher.Do(ctx, req)
	if err != nil {
		e.fail(rec, err)
		return
	}
	doc, err := extract.Parse(res.Body)
	if err != nil {
		e.fail(rec, err)
		return
	}
	d, err := extract.DetailPage(doc, e.et)
	if err != nil {
		e.fail(rec, fmt.Errorf("%s: %w", rec.DetailURL, err))
		return
	}

	if rec.Fields == nil {
		rec.Fields = make(map[string]string, len(d.Fields))
	}
	for k, v := range d.Fields {
		rec.Fields[k] = v
	}
	rec.Events = d.Events
	rec.ID = NewID()
	rec.Enriched = true
	rec.DetailError = ""

	if err := e.store.Append(filepath.Join(e.dir, rec.ID+".html"), []byte(d.TableHTML)); err != nil {
		e.logger.Warn("cache detail table", "id", rec.ID, "error", err)
	}

	if d.ImageSrc != "" {
		rec.ImageURL = e.builder.Resolve(d.ImageSrc)
		e.download(ctx, rec)
	}
}

func (e *Enricher) fail(rec *events.Record, err error) {
	rec.DetailError = err.Error()
	e.logger.Warn("detail fetch failed", "url", rec.DetailURL, "error", err)
}

func (e *Enricher) download(ctx context.Context, rec *events.Record) {
	req, err := e.builder.Image(rec.ImageURL)
	if err != nil {
		e.imageFailed(rec, err)
		return
	}
	path := filepath.Join(e.dir, rec.ID+".png")

	e.images.Add(1)
	go func() {
		defer e.images.Done()
		if err := e.saveImage(ctx, req, path); err != nil {
			e.imageFailed(rec, err)
			return
		}
		rec.ImageSaved = true
	}()
}

func (e *Enricher) saveImage(ctx context.Context, req request.Request, path string) error {
	return e.fetcher.Stream(ctx, req, func() (io.WriteCloser, error) {
		return e.store.Create(path)
	})
}

func (e *Enricher) imageFailed(rec *events.Record, err error) {
	e.logger.Warn("image download failed", "id", rec.ID, "url", rec.ImageURL, "error", err)
	e.mu.Lock()
	e.errs = append(e.errs, fmt.Errorf("image %s: %w", rec.ID, err))
	e.mu.Unlock()
}

// Wait blocks until every started image download has finished and returns
// their joined failures, if any. The failure set is reset afterwards.
func (e *Enricher) Wait() error {
	e.images.Wait()
	e.mu.Lock()
	defer e.mu.Unlock()
	err := errors.Join(e.errs...)
	e.errs = nil
	return err
}

// EnrichPage enriches all summaries of one list page in parallel and
// returns them in their original order once every detail fetch and image
// download has settled. It never drops a record.
func (e *Enricher) EnrichPage(ctx context.Context, summaries []events.Record) []events.Record {
	out := make([]events.Record, len(summaries))
	for i, rec := range summaries {
		rec.Fields = maps.Clone(rec.Fields)
		out[i] = rec
	}

	var wg sync.WaitGroup
	for i := range out {
		wg.Add(1)
		go func(rec *events.Record) {
			defer wg.Done()
			e.Enrich(ctx, rec)
		}(&out[i])
	}
	wg.Wait()

	if err := e.Wait(); err != nil {
		e.logger.Info("page images incomplete", "error", err)
	}
	return out
}
