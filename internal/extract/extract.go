package extract

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/TobiSchelling/skycrawler/internal/events"
)

const (
	tableSelector = "table.standardTable"
	nextButton    = "btnNext"
)

// Parse turns a page body into a queryable document.
func Parse(body []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return doc, nil
}

// Summaries extracts one record per row of the list page's result table,
// in row order. base is the site origin used to absolutise detail links.
// A missing table yields no records.
func Summaries(doc *goquery.Document, et events.EventType, base string) []events.Record {
	tbody := doc.Find("form").Find(tableSelector).First().Find("tbody")

	var records []events.Record
	tbody.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.Find("td")
		rec := et.NewRecord()

		for j := 0; j < et.SummaryCells && j < len(et.Fields); j++ {
			rec.Fields[et.Fields[j]] = cellText(cells.Eq(j + 1))
		}
		if et.LinkCellField != "" {
			rec.Fields[et.LinkCellField] = cellText(cells.Eq(0))
		}

		rec.DetailURL = detailURL(cells.Eq(0), et, base)
		records = append(records, rec)
	})
	return records
}

func detailURL(cell *goquery.Selection, et events.EventType, base string) string {
	base = strings.TrimSuffix(base, "/") + "/"
	href, ok := cell.Find("a").First().Attr("href")
	href = strings.TrimSpace(href)
	if !ok || href == "" {
		return base + et.FallbackDetailURL
	}
	href = strings.Replace(href, "type=V", "type=A", 1)
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	return base + strings.TrimPrefix(href, "/")
}

// PaginationToken serialises the state the site expects back when asking
// for the next list page: every hidden form input plus the "next" button.
// It returns "" when the page carries no such state.
func PaginationToken(doc *goquery.Document) string {
	form := doc.Find("form").First()
	values := url.Values{}

	form.Find("input[type=hidden]").Each(func(_ int, in *goquery.Selection) {
		name, ok := in.Attr("name")
		if !ok || name == "" {
			return
		}
		values.Add(name, in.AttrOr("value", ""))
	})
	form.Find("input[type=submit]").Each(func(_ int, in *goquery.Selection) {
		name := in.AttrOr("name", "")
		if strings.Contains(name, nextButton) {
			values.Add(name, in.AttrOr("value", ""))
		}
	})

	if len(values) == 0 {
		return ""
	}
	return values.Encode()
}

// Detail holds what a detail page contributes to a record.
type Detail struct {
	Fields    map[string]string
	Events    []events.PassEvent
	ImageSrc  string
	TableHTML string
}

// ErrNoDetailTable is returned for a detail page without a result table.
var ErrNoDetailTable = errors.New("no detail table")

// DetailPage applies the event type's positional row mapping to a detail
// page.
func DetailPage(doc *goquery.Document, et events.EventType) (Detail, error) {
	table := doc.Find("form").Find(tableSelector).First()
	if table.Length() == 0 {
		return Detail{}, ErrNoDetailTable
	}
	rows := table.Find("tbody tr")

	d := Detail{Fields: make(map[string]string, len(et.DetailRows))}
	for _, m := range et.DetailRows {
		d.Fields[m.Field] = cellText(rows.Eq(m.Row).Find("td").Eq(1))
	}

	for _, m := range et.EventRows {
		row := rows.Eq(m.Row)
		if row.Length() == 0 {
			continue
		}
		cells := row.Find("td")
		d.Events = append(d.Events, events.PassEvent{
			Name:        m.Name,
			Time:        cellText(cells.Eq(1)),
			Altitude:    cellText(cells.Eq(2)),
			Azimuth:     cellText(cells.Eq(3)),
			Distance:    cellText(cells.Eq(4)),
			Brightness:  cellText(cells.Eq(5)),
			SunAltitude: cellText(cells.Eq(6)),
		})
	}

	if et.ImageSelector != "" {
		d.ImageSrc = strings.TrimSpace(doc.Find(et.ImageSelector).First().AttrOr("src", ""))
	}

	markup, err := table.Html()
	if err != nil {
		return Detail{}, fmt.Errorf("render detail table: %w", err)
	}
	d.TableHTML = markup
	return d, nil
}

func cellText(s *goquery.Selection) string {
	return strings.TrimSpace(s.Text())
}
