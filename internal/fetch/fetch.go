package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/TobiSchelling/skycrawler/internal/request"
)

// Response is the status and body of a completed exchange.
type Response struct {
	Status int
	Body   []byte
}

// StatusError reports a non-2xx response.
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %d %s", e.URL, e.Status, http.StatusText(e.Status))
}

// Client executes built requests against the site.
type Client struct {
	http *resty.Client
}

// NewClient creates a client whose every fetch is bounded by timeout.
func NewClient(timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	c := resty.New().
		SetTimeout(timeout).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(10))
	return &Client{http: c}
}

// Do performs req and returns the response. A non-2xx status is returned
// as a *StatusError together with the response.
func (c *Client) Do(ctx context.Context, req request.Request) (*Response, error) {
	r := c.prepare(ctx, req)

	res, err := r.Execute(req.Method, req.URL)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL, err)
	}

	out := &Response{Status: res.StatusCode(), Body: res.Body()}
	if !res.IsSuccess() {
		return out, &StatusError{URL: req.URL, Status: res.StatusCode()}
	}
	return out, nil
}

// Opener creates the destination of a streamed body.
type Opener func() (io.WriteCloser, error)

// Stream performs req and copies the response body into the writer
// returned by open, without buffering it in memory. open is only called
// once the response status is 2xx, so a failed fetch creates nothing.
func (c *Client) Stream(ctx context.Context, req request.Request, open Opener) (err error) {
	r := c.prepare(ctx, req).SetDoNotParseResponse(true)

	res, err := r.Execute(req.Method, req.URL)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL, err)
	}
	body := res.RawBody()
	if body == nil {
		return fmt.Errorf("%s %s: empty response", req.Method, req.URL)
	}
	defer body.Close()

	if !res.IsSuccess() {
		return &StatusError{URL: req.URL, Status: res.StatusCode()}
	}

	w, err := open()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := w.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if _, err := io.Copy(w, body); err != nil {
		return fmt.Errorf("copy %s: %w", req.URL, err)
	}
	return nil
}

func (c *Client) prepare(ctx context.Context, req request.Request) *resty.Request {
	r := c.http.R().SetContext(ctx)
	for k, vals := range req.Header {
		for _, v := range vals {
			r.Header.Add(k, v)
		}
	}
	if req.Body != "" {
		r.SetBody(req.Body)
	}
	return r
}
