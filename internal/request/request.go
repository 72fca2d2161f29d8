package request

import (
	"errors"
	"fmt"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strings"
)

// ErrInvalidRequestSpec is returned when a request has no target URL.
var ErrInvalidRequestSpec = errors.New("invalid request spec: empty target url")

// Observer is the location every list request is computed for.
type Observer struct {
	Latitude  float64
	Longitude float64
	Place     string
	Altitude  int
	Timezone  string
}

// Profile is the fixed header and cookie profile sent with every request.
type Profile struct {
	BaseURL        string
	UserAgent      string
	AcceptLanguage string
	SessionID      string
	Preferences    string
	Observer       Observer
}

// Request is a transport-agnostic description of one HTTP exchange.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   string
}

// Builder constructs list, detail and image requests for one page of the site.
type Builder struct {
	profile Profile
	page    string
	query   map[string]string
}

// NewBuilder returns a builder for page (e.g. "PassSummary.aspx") with
// extra per-category query parameters such as satid.
func NewBuilder(profile Profile, page string, query map[string]string) *Builder {
	profile.BaseURL = strings.TrimSuffix(profile.BaseURL, "/") + "/"
	return &Builder{profile: profile, page: page, query: query}
}

// BaseURL returns the site origin with a trailing slash.
func (b *Builder) BaseURL() string {
	return b.profile.BaseURL
}

// List builds the request for a list page. The first page is a GET with the
// observer location in the query; later pages POST the pagination token.
func (b *Builder) List(firstPage bool, token string) (Request, error) {
	if b.page == "" || b.profile.BaseURL == "/" {
		return Request{}, ErrInvalidRequestSpec
	}

	target := b.profile.BaseURL + b.page + "?" + b.locationQuery()
	if firstPage {
		h := b.baseHeader()
		h.Set("Upgrade-Insecure-Requests", "1")
		return Request{Method: http.MethodGet, URL: target, Header: h}, nil
	}

	h := b.baseHeader()
	h.Set("Cache-Control", "max-age=0")
	h.Set("Origin", strings.TrimSuffix(b.profile.BaseURL, "/"))
	h.Set("Upgrade-Insecure-Requests", "1")
	h.Set("Content-Type", "application/x-www-form-urlencoded")
	return Request{Method: http.MethodPost, URL: target, Header: h, Body: token}, nil
}

// Detail builds the GET for an event detail page.
func (b *Builder) Detail(target string) (Request, error) {
	if target == "" {
		return Request{}, ErrInvalidRequestSpec
	}
	h := b.baseHeader()
	h.Set("Cache-Control", "max-age=0")
	h.Set("Upgrade-Insecure-Requests", "1")
	return Request{Method: http.MethodGet, URL: target, Header: h}, nil
}

// Image builds the GET for a chart image.
func (b *Builder) Image(target string) (Request, error) {
	if target == "" {
		return Request{}, ErrInvalidRequestSpec
	}
	h := b.baseHeader()
	h.Set("Upgrade-Insecure-Requests", "1")
	return Request{Method: http.MethodGet, URL: target, Header: h}, nil
}

// Resolve turns a site-relative reference into an absolute URL.
func (b *Builder) Resolve(ref string) string {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	return b.profile.BaseURL + strings.TrimPrefix(ref, "/")
}

func (b *Builder) locationQuery() string {
	o := b.profile.Observer
	parts := make([]string, 0, len(b.query)+5)
	for _, k := range slices.Sorted(maps.Keys(b.query)) {
		parts = append(parts, url.QueryEscape(k)+"="+url.QueryEscape(b.query[k]))
	}
	parts = append(parts,
		fmt.Sprintf("lat=%g", o.Latitude),
		fmt.Sprintf("lng=%g", o.Longitude),
		"loc="+url.QueryEscape(o.Place),
		fmt.Sprintf("alt=%d", o.Altitude),
		"tz="+url.QueryEscape(o.Timezone),
	)
	return strings.Join(parts, "&")
}

func (b *Builder) baseHeader() http.Header {
	h := http.Header{}
	h.Set("Connection", "keep-alive")
	h.Set("User-Agent", b.profile.UserAgent)
	h.Set("DNT", "1")
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,image/apng,*/*;q=0.8")
	h.Set("Accept-Language", b.profile.AcceptLanguage)
	h.Set("Cookie", b.cookie())
	return h
}

func (b *Builder) cookie() string {
	o := b.profile.Observer
	userInfo := fmt.Sprintf("lat=%g&lng=%g&alt=%d&tz=%s&loc=%s",
		o.Latitude, o.Longitude, o.Altitude, o.Timezone,
		strings.ToLower(url.QueryEscape(o.Place)))

	parts := []string{}
	if b.profile.SessionID != "" {
		parts = append(parts, "ASP.NET_SessionId="+b.profile.SessionID)
	}
	if b.profile.Preferences != "" {
		parts = append(parts, "preferences="+b.profile.Preferences)
	}
	parts = append(parts, "userInfo="+userInfo)
	return strings.Join(parts, "; ")
}
