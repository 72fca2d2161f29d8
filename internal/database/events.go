package database

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/TobiSchelling/skycrawler/internal/events"
)

// InsertRanked stores the ranked records of one category for a run,
// keeping their ranking order.
func (db *DB) InsertRanked(runID int64, category string, ranked []events.Ranked) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO events (run_id, category, position, record_id, detail_url, fields,
		pass_events, image_url, image_saved, enriched, detail_error, score_data, exist, score)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, r := range ranked {
		fields, err := json.Marshal(r.Fields)
		if err != nil {
			return fmt.Errorf("encoding fields of %s: %w", r.ID, err)
		}
		var passEvents []byte
		if len(r.Events) > 0 {
			if passEvents, err = json.Marshal(r.Events); err != nil {
				return fmt.Errorf("encoding events of %s: %w", r.ID, err)
			}
		}
		scoreData, err := json.Marshal(encodeScoreData(r.ScoreData))
		if err != nil {
			return fmt.Errorf("encoding score data of %s: %w", r.ID, err)
		}

		if _, err := stmt.Exec(runID, category, i, nullable(r.ID), r.DetailURL, string(fields),
			nullable(string(passEvents)), nullable(r.ImageURL), r.ImageSaved, r.Enriched,
			nullable(r.DetailError), string(scoreData), r.Exist, r.Score); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetRankedForRun returns the stored records of a category in ranking order.
func (db *DB) GetRankedForRun(runID int64, category string) ([]events.Ranked, error) {
	rows, err := db.conn.Query(
		`SELECT record_id, detail_url, fields, pass_events, image_url, image_saved, enriched,
		detail_error, score_data, exist, score
		FROM events WHERE run_id = ? AND category = ? ORDER BY position`,
		runID, category,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []events.Ranked
	for rows.Next() {
		var (
			r                                     events.Ranked
			id, passEvents, imageURL, detailError *string
			fields, scoreData                     string
		)
		if err := rows.Scan(&id, &r.DetailURL, &fields, &passEvents, &imageURL, &r.ImageSaved,
			&r.Enriched, &detailError, &scoreData, &r.Exist, &r.Score); err != nil {
			return nil, err
		}
		r.Category = category
		r.ID = deref(id)
		r.ImageURL = deref(imageURL)
		r.DetailError = deref(detailError)

		if err := json.Unmarshal([]byte(fields), &r.Fields); err != nil {
			return nil, fmt.Errorf("decoding fields: %w", err)
		}
		if passEvents != nil {
			if err := json.Unmarshal([]byte(*passEvents), &r.Events); err != nil {
				return nil, fmt.Errorf("decoding events: %w", err)
			}
		}
		var data []*float64
		if err := json.Unmarshal([]byte(scoreData), &data); err != nil {
			return nil, fmt.Errorf("decoding score data: %w", err)
		}
		r.ScoreData = decodeScoreData(data)
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetCategories returns the categories stored for a run.
func (db *DB) GetCategories(runID int64) ([]string, error) {
	rows, err := db.conn.Query(
		"SELECT DISTINCT category FROM events WHERE run_id = ? ORDER BY category", runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cats []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

// JSON has no NaN; unparseable inputs are stored as null.
func encodeScoreData(data []float64) []*float64 {
	out := make([]*float64, len(data))
	for i, v := range data {
		if !math.IsNaN(v) {
			out[i] = &v
		}
	}
	return out
}

func decodeScoreData(data []*float64) []float64 {
	out := make([]float64, len(data))
	for i, v := range data {
		if v == nil {
			out[i] = math.NaN()
		} else {
			out[i] = *v
		}
	}
	return out
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
