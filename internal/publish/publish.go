package publish

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/TobiSchelling/skycrawler/internal/events"
)

// Feed is the published document for one category.
type Feed struct {
	Category    string    `json:"category"`
	GeneratedAt time.Time `json:"generatedAt"`
	Events      []Event   `json:"events"`
}

// Event is a ranked record as published. Unparseable score inputs are null.
type Event struct {
	events.Record
	Rank      int        `json:"rank"`
	ScoreData []*float64 `json:"scoreData"`
	Exist     float64    `json:"exist"`
	Score     int        `json:"score"`
}

// NewFeed builds the published document for category, numbering events
// in their ranking order.
func NewFeed(category string, ranked []events.Ranked, generated time.Time) Feed {
	return Feed{Category: category, GeneratedAt: generated.UTC(), Events: toEvents(ranked)}
}

// Path returns where the feed of category is written under root.
func Path(root, category string) string {
	return filepath.Join(root, category+".json")
}

// Write replaces root/{category}.json with the ranked records. The file is
// written to a temporary name first so readers never see a partial feed.
func Write(root, category string, ranked []events.Ranked, now time.Time) (string, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", fmt.Errorf("creating publish directory: %w", err)
	}

	data, err := json.MarshalIndent(NewFeed(category, ranked, now), "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding %s: %w", category, err)
	}

	path := Path(root, category)
	tmp, err := os.CreateTemp(root, "."+category+"-*.json")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("publishing %s: %w", category, err)
	}
	return path, nil
}

// Read loads a previously published feed.
func Read(root, category string) (*Feed, error) {
	data, err := os.ReadFile(Path(root, category))
	if err != nil {
		return nil, err
	}
	var f Feed
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", category, err)
	}
	return &f, nil
}

func toEvents(in []events.Ranked) []Event {
	out := make([]Event, len(in))
	for i, r := range in {
		data := make([]*float64, len(r.ScoreData))
		for j, v := range r.ScoreData {
			if !math.IsNaN(v) {
				data[j] = &v
			}
		}
		out[i] = Event{Record: r.Record, Rank: i + 1, ScoreData: data, Exist: r.Exist, Score: r.Score}
	}
	return out
}
