package compose

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/TobiSchelling/skycrawler/internal/database"
	"github.com/TobiSchelling/skycrawler/internal/events"
)

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func pass(score int, date, clock, mag, peak string) events.Ranked {
	rec := events.Satellite(25544).NewRecord()
	rec.Fields["date"] = date
	rec.Fields["brightness"] = mag
	rec.DetailURL = "https://www.heavens-above.com/passdetails.aspx?satid=25544&type=A"
	rec.Events = []events.PassEvent{{Name: "highestPoint", Time: clock, Altitude: peak}}
	return events.Ranked{Record: rec, Score: score}
}

func TestComposeReport(t *testing.T) {
	db := openTestDB(t)
	runID, _ := db.CreateRun()

	flare := events.Flares().NewRecord()
	flare.Fields["date"] = "20 Oct"
	flare.Fields["time"] = "19:42:11"
	flare.Fields["brightness"] = "-6.5"
	flare.Fields["altitude"] = "33°"
	db.InsertRanked(runID, "IridiumFlares", []events.Ranked{{Record: flare, Score: 78}})

	failed := pass(0, "22 Oct", "", "", "")
	failed.Events = nil
	failed.DetailError = "503"
	db.InsertRanked(runID, "satellite25544", []events.Ranked{
		pass(95, "20 Oct", "20:04:22", "-3.4", "61°"),
		pass(68, "21 Oct", "18:10:00", "-2.0", "50°"),
		failed,
	})

	report, err := NewComposer(db, 2, nil).ComposeReport(runID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report == nil {
		t.Fatal("expected report")
	}

	body := report.BodyMarkdown
	for _, want := range []string{
		"## Best bets",
		"**ISS passes**: 20 Oct 20:04:22, magnitude -3.4, peak 61° (score 95)",
		"**Iridium flares**: 20 Oct 19:42:11",
		"## ISS passes",
		"| 2 | 21 Oct 18:10:00 | -2.0 | 50° | 68 |",
		"_1 of 3 events have summary data only._",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected report to contain %q\n%s", want, body)
		}
	}
	if strings.Contains(body, "22 Oct") {
		t.Error("expected report to stop at top 2")
	}

	stored, _ := db.GetReport(runID)
	if stored == nil || stored.BodyMarkdown != body {
		t.Error("expected report to be stored")
	}
}

func TestComposeEmptyRun(t *testing.T) {
	db := openTestDB(t)
	runID, _ := db.CreateRun()

	report, err := NewComposer(db, 0, nil).ComposeReport(runID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report == nil || !strings.Contains(report.BodyMarkdown, "No visibility events") {
		t.Errorf("unexpected empty report %+v", report)
	}
}

func TestTitle(t *testing.T) {
	cases := map[string]string{
		"IridiumFlares":  "Iridium flares",
		"satellite25544": "ISS passes",
		"satellite20580": "Satellite 20580 passes",
		"other":          "other",
	}
	for in, want := range cases {
		if got := Title(in); got != want {
			t.Errorf("Title(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSectionEmpty(t *testing.T) {
	got := Section("IridiumFlares", nil, 5)
	if !strings.Contains(got, "No events listed.") {
		t.Errorf("unexpected section %q", got)
	}
}
