package compose

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/TobiSchelling/skycrawler/internal/database"
	"github.com/TobiSchelling/skycrawler/internal/events"
)

// DefaultTop is how many events per category a report lists.
const DefaultTop = 10

// Composer writes the markdown report of a run from its ranked events.
type Composer struct {
	db     *database.DB
	top    int
	logger *slog.Logger
}

// NewComposer creates a new report composer listing top events per category.
func NewComposer(db *database.DB, top int, logger *slog.Logger) *Composer {
	if top <= 0 {
		top = DefaultTop
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Composer{db: db, top: top, logger: logger.With("component", "compose")}
}

// ComposeReport composes and stores the report for a run.
func (c *Composer) ComposeReport(runID int64) (*database.Report, error) {
	categories, err := c.db.GetCategories(runID)
	if err != nil {
		return nil, err
	}

	if len(categories) == 0 {
		c.logger.Info("no events for run", "run", runID)
		if err := c.db.InsertReport(runID, "No visibility events were collected in this run."); err != nil {
			return nil, err
		}
		return c.db.GetReport(runID)
	}

	var highlights, sections []string
	for _, cat := range categories {
		ranked, err := c.db.GetRankedForRun(runID, cat)
		if err != nil {
			return nil, err
		}
		if len(ranked) > 0 && ranked[0].Score > 0 {
			highlights = append(highlights, "- "+Highlight(ranked[0]))
		}
		sections = append(sections, Section(cat, ranked, c.top))
	}

	if len(highlights) == 0 {
		highlights = []string{"- Nothing worth going outside for."}
	}
	body := "## Best bets\n\n" + strings.Join(highlights, "\n") +
		"\n\n---\n\n" + strings.Join(sections, "\n\n---\n\n")

	if err := c.db.InsertReport(runID, body); err != nil {
		return nil, err
	}
	c.logger.Info("report composed", "run", runID, "categories", len(categories))
	return c.db.GetReport(runID)
}

// Title returns a human-readable name for a category.
func Title(category string) string {
	if category == events.Flares().Category {
		return "Iridium flares"
	}
	if id, ok := strings.CutPrefix(category, "satellite"); ok {
		if id == "25544" {
			return "ISS passes"
		}
		return "Satellite " + id + " passes"
	}
	return category
}

// When returns the date and time of a record's most visible moment.
func When(r events.Ranked) string {
	clock := r.Field("time")
	if clock == "" {
		if e, ok := r.Event("highestPoint"); ok {
			clock = e.Time
		} else {
			clock = r.Field("highestTime")
		}
	}
	return strings.TrimSpace(r.Field("date") + " " + clock)
}

// Peak returns the altitude of a record's most visible moment.
func Peak(r events.Ranked) string {
	if v := r.Field("altitude"); v != "" {
		return v
	}
	if e, ok := r.Event("highestPoint"); ok {
		return e.Altitude
	}
	return r.Field("highestAltitude")
}

// Highlight is a one-line summary of the best event of a category.
func Highlight(r events.Ranked) string {
	return fmt.Sprintf("**%s**: %s, magnitude %s, peak %s (score %d)",
		Title(r.Category), When(r), orDash(r.Field("brightness")), orDash(Peak(r)), r.Score)
}

// Section renders the top events of a category as a markdown table.
func Section(category string, ranked []events.Ranked, top int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n", Title(category))
	if len(ranked) == 0 {
		b.WriteString("No events listed.")
		return b.String()
	}

	b.WriteString("| # | When | Magnitude | Peak | Score | Details |\n")
	b.WriteString("|---|------|-----------|------|-------|---------|\n")
	for i, r := range ranked {
		if i == top {
			break
		}
		fmt.Fprintf(&b, "| %d | %s | %s | %s | %d | %s |\n",
			i+1, orDash(When(r)), orDash(r.Field("brightness")), orDash(Peak(r)), r.Score, detailLink(r))
	}

	var failed int
	for _, r := range ranked {
		if r.DetailError != "" {
			failed++
		}
	}
	if failed > 0 {
		fmt.Fprintf(&b, "\n_%d of %d events have summary data only._\n", failed, len(ranked))
	}
	return strings.TrimRight(b.String(), "\n")
}

func detailLink(r events.Ranked) string {
	if r.DetailURL == "" {
		return "-"
	}
	return fmt.Sprintf("[page](%s)", r.DetailURL)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return strings.ReplaceAll(s, "|", "/")
}
