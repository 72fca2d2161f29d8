package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/TobiSchelling/skycrawler/internal/collect"
	"github.com/TobiSchelling/skycrawler/internal/compose"
	"github.com/TobiSchelling/skycrawler/internal/config"
	"github.com/TobiSchelling/skycrawler/internal/database"
	"github.com/TobiSchelling/skycrawler/internal/enrich"
	"github.com/TobiSchelling/skycrawler/internal/events"
	"github.com/TobiSchelling/skycrawler/internal/fetch"
	"github.com/TobiSchelling/skycrawler/internal/publish"
	"github.com/TobiSchelling/skycrawler/internal/rank"
)

// StepResult holds the result of a single pipeline step.
type StepResult struct {
	Name    string
	Summary string
	Err     error
}

// Category is the outcome of one event category within a run.
type Category struct {
	Type events.EventType
	// Start is the first list page walked in this run.
	Start   int
	Collect *collect.Result
	Ranked  []events.Ranked
	Err     error
}

// Result holds the results of a full pipeline run.
type Result struct {
	RunID      int64
	Status     string
	Steps      []StepResult
	Categories []Category
}

// Options tunes a single run.
type Options struct {
	// Pages overrides the configured page count when positive.
	Pages int
	// ResumeFrom continues the pagination of an earlier run instead of
	// starting at the first page. Pages then counts the pages walked on
	// top of those the earlier run already covered.
	ResumeFrom int64
}

// Pipeline orchestrates collect, rank, persist, publish and compose.
type Pipeline struct {
	cfg     *config.Config
	db      *database.DB
	fetcher enrich.Fetcher
	store   fetch.Store
	logger  *slog.Logger
	now     func() time.Time
}

// New creates a new pipeline.
func New(cfg *config.Config, db *database.DB, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		cfg:     cfg,
		db:      db,
		fetcher: fetch.NewClient(cfg.Fetch.Timeout),
		store:   fetch.FileStore{},
		logger:  logger,
		now:     time.Now,
	}
}

// Run executes the full pipeline and records it as a run.
func (p *Pipeline) Run(ctx context.Context, opts Options) *Result {
	r := &Result{Status: database.StatusFailed}

	runID, err := p.db.CreateRun()
	if err != nil {
		r.Steps = append(r.Steps, StepResult{Name: "Start", Err: err})
		return r
	}
	r.RunID = runID
	log := p.logger.With("run", runID)

	// Step 1: Collect
	log.Info("step 1/5: collecting")
	cats, step := p.collect(ctx, opts)
	r.Categories = cats
	r.Steps = append(r.Steps, step)
	if step.Err != nil {
		p.finish(r, step.Err.Error())
		return r
	}

	// Step 2: Rank
	log.Info("step 2/5: ranking")
	r.Steps = append(r.Steps, p.rank(r.Categories))

	// Step 3: Persist
	log.Info("step 3/5: persisting")
	step = p.persist(runID, r.Categories)
	r.Steps = append(r.Steps, step)
	if step.Err != nil {
		p.finish(r, step.Err.Error())
		return r
	}

	// Step 4: Publish
	log.Info("step 4/5: publishing")
	r.Steps = append(r.Steps, p.publish(r.Categories))

	// Step 5: Compose
	log.Info("step 5/5: composing report")
	r.Steps = append(r.Steps, p.compose(runID))

	r.Status = database.StatusSuccess
	for _, c := range r.Categories {
		if c.Err != nil {
			r.Status = database.StatusPartial
		}
	}
	p.finish(r, "")
	log.Info("run finished", "status", r.Status)
	return r
}

// DryRun shows what would be done without fetching anything.
func (p *Pipeline) DryRun(opts Options) *Result {
	r := &Result{}
	pages := p.pages(opts)

	types := p.cfg.EventTypes()
	for _, et := range types {
		r.Steps = append(r.Steps, StepResult{
			Name:    "Collect",
			Summary: fmt.Sprintf("[dry-run] %s: %d list page(s) from %s", et.Category, pages, p.cfg.Site.BaseURL),
		})
	}
	r.Steps = append(r.Steps,
		StepResult{Name: "Rank", Summary: fmt.Sprintf("[dry-run] would rank %d categories", len(types))},
		StepResult{Name: "Persist", Summary: fmt.Sprintf("[dry-run] would store a run in %s", p.cfg.DatabasePath())},
		StepResult{Name: "Publish", Summary: fmt.Sprintf("[dry-run] would write feeds to %s", p.cfg.PublishDir())},
	)

	latest, _ := p.db.GetLatestRun()
	if latest != nil {
		r.Steps = append(r.Steps, StepResult{
			Name:    "Compose",
			Summary: fmt.Sprintf("[dry-run] latest report is from run %d", latest.ID),
		})
	} else {
		r.Steps = append(r.Steps, StepResult{Name: "Compose", Summary: "[dry-run] would compose the first report"})
	}
	return r
}

// Collect gathers every configured category without ranking or storing it.
func (p *Pipeline) Collect(ctx context.Context, opts Options) ([]Category, error) {
	cats, step := p.collect(ctx, opts)
	return cats, step.Err
}

func (p *Pipeline) collect(ctx context.Context, opts Options) ([]Category, StepResult) {
	types := p.cfg.EventTypes()
	if len(types) == 0 {
		return nil, StepResult{Name: "Collect", Err: errors.New("no targets configured")}
	}

	resume, err := p.resumeState(opts.ResumeFrom)
	if err != nil {
		return nil, StepResult{Name: "Collect", Err: err}
	}

	collector := collect.NewCollector(p.fetcher, p.store, p.cfg.Profile(), p.logger)
	cats := make([]Category, 0, len(types))
	var records, failed int
	for _, et := range types {
		o := collect.Options{
			Type:  et,
			Pages: p.pages(opts),
			Root:  p.cfg.ArtifactDir(),
			Fresh: p.cfg.Output.Fresh && opts.ResumeFrom == 0,
		}
		if st, ok := resume[et.Category]; ok {
			o.Counter = st.token.Pages
			o.Pages += st.token.Pages
			o.Token = st.token.Token
			o.Database = st.records
		}

		res, err := collector.Collect(ctx, o)
		if err != nil {
			failed++
		}
		records += len(res.Records)
		cats = append(cats, Category{Type: et, Start: o.Counter, Collect: res, Err: err})
	}

	step := StepResult{
		Name:    "Collect",
		Summary: fmt.Sprintf("Collected %d events in %d categories (%d stopped early)", records, len(cats), failed),
	}
	if failed == len(cats) && records == 0 {
		step.Err = fmt.Errorf("every category failed: %w", cats[0].Err)
	}
	return cats, step
}

type resumeState struct {
	token   database.PageToken
	records []events.Record
}

func (p *Pipeline) resumeState(runID int64) (map[string]resumeState, error) {
	if runID == 0 {
		return nil, nil
	}
	run, err := p.db.GetRun(runID)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, fmt.Errorf("run %d not found", runID)
	}

	tokens, err := p.db.GetPageTokens(runID)
	if err != nil {
		return nil, fmt.Errorf("loading page tokens: %w", err)
	}
	out := make(map[string]resumeState, len(tokens))
	for _, t := range tokens {
		ranked, err := p.db.GetRankedForRun(runID, t.Category)
		if err != nil {
			return nil, err
		}
		records := make([]events.Record, len(ranked))
		for i, r := range ranked {
			records[i] = r.Record
		}
		out[t.Category] = resumeState{token: t, records: records}
	}
	return out, nil
}

func (p *Pipeline) rank(cats []Category) StepResult {
	var scored int
	for i := range cats {
		c := &cats[i]
		c.Ranked = rank.Rank(c.Collect.Records, c.Type.Kind, rank.For(c.Type.Kind))
		for _, r := range c.Ranked {
			if r.Score > 0 {
				scored++
			}
		}
	}
	return StepResult{
		Name:    "Rank",
		Summary: fmt.Sprintf("Ranked %d categories, %d events with a positive score", len(cats), scored),
	}
}

func (p *Pipeline) persist(runID int64, cats []Category) StepResult {
	var stored int
	for _, c := range cats {
		if err := p.db.InsertRanked(runID, c.Type.Category, c.Ranked); err != nil {
			return StepResult{Name: "Persist", Err: fmt.Errorf("storing %s: %w", c.Type.Category, err)}
		}
		if err := p.db.SavePageToken(runID, c.Type.Category, c.Collect.Token, c.Start+c.Collect.Pages); err != nil {
			return StepResult{Name: "Persist", Err: err}
		}
		stored += len(c.Ranked)
	}
	return StepResult{Name: "Persist", Summary: fmt.Sprintf("Stored %d events", stored)}
}

func (p *Pipeline) publish(cats []Category) StepResult {
	now := p.now()
	var written int
	var errs []error
	for _, c := range cats {
		if _, err := publish.Write(p.cfg.PublishDir(), c.Type.Category, c.Ranked, now); err != nil {
			p.logger.Error("publish failed", "category", c.Type.Category, "error", err)
			errs = append(errs, err)
			continue
		}
		written++
	}
	return StepResult{
		Name:    "Publish",
		Summary: fmt.Sprintf("Wrote %d feeds to %s", written, p.cfg.PublishDir()),
		Err:     errors.Join(errs...),
	}
}

func (p *Pipeline) compose(runID int64) StepResult {
	report, err := compose.NewComposer(p.db, compose.DefaultTop, p.logger).ComposeReport(runID)
	if err != nil {
		return StepResult{Name: "Compose", Err: err}
	}
	return StepResult{
		Name:    "Compose",
		Summary: fmt.Sprintf("Report composed (%d bytes)", len(report.BodyMarkdown)),
	}
}

func (p *Pipeline) finish(r *Result, summary string) {
	var pages, records int
	for _, c := range r.Categories {
		if c.Collect != nil {
			pages += c.Collect.Pages
			records += len(c.Collect.Records)
		}
	}
	if err := p.db.FinishRun(r.RunID, r.Status, pages, records, summary); err != nil {
		p.logger.Error("finishing run", "run", r.RunID, "error", err)
	}
}

func (p *Pipeline) pages(opts Options) int {
	if opts.Pages > 0 {
		return opts.Pages
	}
	return p.cfg.Pages
}
