package events

import "fmt"

// Record is one visibility event. It starts as a summary row from a list
// page and is extended in place by the detail enricher.
type Record struct {
	ID          string            `json:"id,omitempty"`
	Category    string            `json:"category"`
	DetailURL   string            `json:"url"`
	Fields      map[string]string `json:"fields"`
	Events      []PassEvent       `json:"events,omitempty"`
	ImageURL    string            `json:"image,omitempty"`
	ImageSaved  bool              `json:"imageSaved"`
	Enriched    bool              `json:"enriched"`
	DetailError string            `json:"detailError,omitempty"`
}

// PassEvent is one row of a satellite pass detail table.
type PassEvent struct {
	Name        string `json:"name"`
	Time        string `json:"time"`
	Altitude    string `json:"altitude"`
	Azimuth     string `json:"azimuth"`
	Distance    string `json:"distance"`
	Brightness  string `json:"brightness"`
	SunAltitude string `json:"sunAltitude"`
}

// Ranked is a record with its scoring inputs and final score.
type Ranked struct {
	Record
	ScoreData []float64 `json:"scoreData"`
	Exist     float64   `json:"exist"`
	Score     int       `json:"score"`
}

// Field returns the named field, or "" if absent.
func (r *Record) Field(name string) string {
	if r.Fields == nil {
		return ""
	}
	return r.Fields[name]
}

// Event returns the pass event with the given name.
func (r *Record) Event(name string) (PassEvent, bool) {
	for _, e := range r.Events {
		if e.Name == name {
			return e, true
		}
	}
	return PassEvent{}, false
}

// DetailRow maps a detail-table row onto a named field.
type DetailRow struct {
	Field string
	Row   int
}

// EventRow maps a detail-table row onto a named pass event.
type EventRow struct {
	Name string
	Row  int
}

// Kind distinguishes how score inputs are derived.
type Kind int

const (
	KindSatellite Kind = iota
	KindFlare
)

// EventType describes the list/detail layout of one category on the site.
type EventType struct {
	Kind              Kind
	Category          string
	Page              string
	Query             map[string]string
	Fields            []string
	SummaryCells      int
	LinkCellField     string
	DetailRows        []DetailRow
	EventRows         []EventRow
	FallbackDetailURL string
	ImageSelector     string
}

// Satellite pass event names, in detail-table order.
var PassEventNames = []string{
	"rise",
	"reachAltitude10deg",
	"highestPoint",
	"dropBelowAltitude10deg",
	"set",
	"exitShadow",
	"enterShadow",
}

// FlareFields lists every field a flare record carries.
var FlareFields = []string{
	"brightness",
	"altitude",
	"azimuth",
	"satellite",
	"distanceToFlareCentre",
	"brightnessAtFlareCentre",
	"date",
	"time",
	"distanceToSatellite",
	"angleOffFlareCentreLine",
	"flareProducingAntenna",
	"sunAltitude",
	"angularSeparationFromSun",
}

// SatelliteFields lists the summary fields of a satellite pass.
var SatelliteFields = []string{
	"brightness",
	"startTime",
	"startAltitude",
	"startAzimuth",
	"highestTime",
	"highestAltitude",
	"highestAzimuth",
	"endTime",
	"endAltitude",
	"endAzimuth",
	"passType",
	"date",
}

// Satellite returns the pass-summary layout for the given NORAD id.
func Satellite(target int) EventType {
	return EventType{
		Kind:     KindSatellite,
		Category: fmt.Sprintf("satellite%d", target),
		Page:     "PassSummary.aspx",
		Query:    map[string]string{"satid": fmt.Sprint(target)},
		Fields:   SatelliteFields,
		// the pass date is the text of the link cell
		SummaryCells:      11,
		LinkCellField:     "date",
		EventRows:         satelliteEventRows(),
		FallbackDetailURL: "PassSummary.aspx",
		ImageSelector:     "#ctl00_cph1_imgViewFinder",
	}
}

func satelliteEventRows() []EventRow {
	rows := make([]EventRow, len(PassEventNames))
	for i, name := range PassEventNames {
		rows[i] = EventRow{Name: name, Row: i}
	}
	return rows
}

// Flares returns the Iridium flare layout.
func Flares() EventType {
	return EventType{
		Kind:         KindFlare,
		Category:     "IridiumFlares",
		Page:         "IridiumFlares.aspx",
		Fields:       FlareFields,
		SummaryCells: 6,
		DetailRows: []DetailRow{
			{Field: "date", Row: 0},
			{Field: "time", Row: 1},
			{Field: "distanceToSatellite", Row: 6},
			{Field: "angleOffFlareCentreLine", Row: 7},
			{Field: "flareProducingAntenna", Row: 9},
			{Field: "sunAltitude", Row: 10},
			{Field: "angularSeparationFromSun", Row: 11},
		},
		FallbackDetailURL: "IridiumFlares.aspx",
		ImageSelector:     "#ctl00_cph1_imgSkyChart",
	}
}

// NewRecord returns a summary record with every field of t present.
func (t EventType) NewRecord() Record {
	fields := make(map[string]string, len(t.Fields))
	for _, f := range t.Fields {
		fields[f] = ""
	}
	return Record{Category: t.Category, Fields: fields}
}
