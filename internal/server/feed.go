package server

import (
	"encoding/xml"
	"fmt"
	"time"

	"github.com/TobiSchelling/skycrawler/internal/compose"
	"github.com/TobiSchelling/skycrawler/internal/database"
	"github.com/TobiSchelling/skycrawler/internal/events"
)

type rss struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title       string    `xml:"title"`
	Link        string    `xml:"link"`
	Description string    `xml:"description"`
	PubDate     string    `xml:"pubDate,omitempty"`
	Items       []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string  `xml:"title"`
	Link        string  `xml:"link"`
	Description string  `xml:"description"`
	Category    string  `xml:"category"`
	GUID        rssGUID `xml:"guid"`
	PubDate     string  `xml:"pubDate,omitempty"`
}

type rssGUID struct {
	Value       string `xml:",chardata"`
	IsPermaLink bool   `xml:"isPermaLink,attr"`
}

// buildFeed renders the best events of a run as RSS 2.0.
func buildFeed(publicURL string, run *database.Run, best []events.Ranked) ([]byte, error) {
	ch := rssChannel{
		Title:       "skycrawler: best upcoming sky events",
		Link:        publicURL + "/",
		Description: "Top ranked satellite passes and flares from the latest run",
	}

	var pub string
	if run != nil {
		if t, err := time.Parse(database.TimestampLayout, run.StartedAt); err == nil {
			pub = t.Format(time.RFC1123Z)
		}
		ch.PubDate = pub
	}

	for i, ev := range best {
		link := publicURL + "/"
		if run != nil {
			link = fmt.Sprintf("%s/run/%d/%s", publicURL, run.ID, ev.Category)
		}
		guid := ev.ID
		if guid == "" {
			guid = fmt.Sprintf("%s-%d", ev.Category, i)
		}
		if run != nil {
			guid = fmt.Sprintf("run%d-%s", run.ID, guid)
		}

		ch.Items = append(ch.Items, rssItem{
			Title:       fmt.Sprintf("%s: %s", compose.Title(ev.Category), compose.When(ev)),
			Link:        link,
			Description: compose.Highlight(ev),
			Category:    ev.Category,
			GUID:        rssGUID{Value: guid},
			PubDate:     pub,
		})
	}

	out, err := xml.MarshalIndent(rss{Version: "2.0", Channel: ch}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding feed: %w", err)
	}
	return append([]byte(xml.Header), out...), nil
}
