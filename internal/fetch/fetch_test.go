package fetch

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TobiSchelling/skycrawler/internal/request"
)

func TestDoSendsHeadersAndBody(t *testing.T) {
	var gotMethod, gotBody, gotCookie, gotType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotCookie = r.Header.Get("Cookie")
		gotType = r.Header.Get("Content-Type")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		_, _ = w.Write([]byte("<html>ok</html>"))
	}))
	defer srv.Close()

	h := http.Header{}
	h.Set("Cookie", "userInfo=lat=1")
	h.Set("Content-Type", "application/x-www-form-urlencoded")

	c := NewClient(5 * time.Second)
	res, err := c.Do(context.Background(), request.Request{
		Method: http.MethodPost,
		URL:    srv.URL + "/IridiumFlares.aspx",
		Header: h,
		Body:   "opt=T1",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, "<html>ok</html>", string(res.Body))
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "opt=T1", gotBody)
	assert.Equal(t, "userInfo=lat=1", gotCookie)
	assert.Equal(t, "application/x-www-form-urlencoded", gotType)
}

func TestDoReportsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(5 * time.Second)
	res, err := c.Do(context.Background(), request.Request{Method: http.MethodGet, URL: srv.URL})
	require.Error(t, err)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusServiceUnavailable, se.Status)
	require.NotNil(t, res)
	assert.Equal(t, http.StatusServiceUnavailable, res.Status)
}

func TestDoTimesOut(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	c := NewClient(50 * time.Millisecond)
	_, err := c.Do(context.Background(), request.Request{Method: http.MethodGet, URL: srv.URL})
	assert.Error(t, err)
}

func TestStreamCopiesBody(t *testing.T) {
	payload := bytes.Repeat([]byte{0x89, 'P', 'N', 'G'}, 1024)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	var buf bytes.Buffer
	c := NewClient(5 * time.Second)
	err := c.Stream(context.Background(), request.Request{Method: http.MethodGet, URL: srv.URL}, bufferOpener(&buf, nil))
	require.NoError(t, err)
	assert.Equal(t, payload, buf.Bytes())
}

func TestStreamRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	var opened bool
	c := NewClient(5 * time.Second)
	err := c.Stream(context.Background(), request.Request{Method: http.MethodGet, URL: srv.URL}, bufferOpener(&bytes.Buffer{}, &opened))
	require.Error(t, err)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.Status)
	assert.False(t, opened, "destination opened for a failed fetch")
}

func TestStreamReportsOpenError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("png"))
	}))
	defer srv.Close()

	c := NewClient(5 * time.Second)
	err := c.Stream(context.Background(), request.Request{Method: http.MethodGet, URL: srv.URL}, func() (io.WriteCloser, error) {
		return nil, errors.New("disk full")
	})
	assert.ErrorContains(t, err, "disk full")
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func bufferOpener(buf *bytes.Buffer, opened *bool) Opener {
	return func() (io.WriteCloser, error) {
		if opened != nil {
			*opened = true
		}
		return nopCloser{buf}, nil
	}
}

func TestFileStoreAppends(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "IridiumFlares")
	var s FileStore

	require.NoError(t, s.EnsureDir(dir))
	require.NoError(t, s.EnsureDir(dir))

	path := filepath.Join(dir, "abc.html")
	require.NoError(t, s.Append(path, []byte("<tr>")))
	require.NoError(t, s.Append(path, []byte("</tr>")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "<tr></tr>", string(data))

	w, err := s.Create(filepath.Join(dir, "abc.png"))
	require.NoError(t, err)
	_, err = w.Write([]byte("png"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	require.NoError(t, s.Clear(dir))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	assert.NoError(t, s.Clear(filepath.Join(dir, "missing")))
}
