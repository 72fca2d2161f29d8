package request

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testProfile() Profile {
	return Profile{
		BaseURL:        "https://www.heavens-above.com",
		UserAgent:      "Mozilla/5.0 (test)",
		AcceptLanguage: "en;q=0.8",
		SessionID:      "4swouj1mkd2nburls12t5ryx",
		Preferences:    "showDaytimeFlares=True",
		Observer: Observer{
			Latitude:  39.9042,
			Longitude: 116.4074,
			Place:     "北京市",
			Altitude:  52,
			Timezone:  "ChST",
		},
	}
}

func TestListFirstPageIsGet(t *testing.T) {
	b := NewBuilder(testProfile(), "PassSummary.aspx", map[string]string{"satid": "25544"})

	req, err := b.List(true, "")
	require.NoError(t, err)
	assert.Equal(t, http.MethodGet, req.Method)
	assert.Contains(t, req.URL, "https://www.heavens-above.com/PassSummary.aspx?")
	assert.Contains(t, req.URL, "satid=25544")
	assert.Contains(t, req.URL, "lat=39.9042")
	assert.Contains(t, req.URL, "lng=116.4074")
	assert.Contains(t, req.URL, "loc=%E5%8C%97%E4%BA%AC%E5%B8%82")
	assert.Contains(t, req.URL, "alt=52")
	assert.Contains(t, req.URL, "tz=ChST")
	assert.Equal(t, "1", req.Header.Get("Upgrade-Insecure-Requests"))
	assert.Empty(t, req.Header.Get("Content-Type"))
	assert.Empty(t, req.Body)

	_, err = url.Parse(req.URL)
	assert.NoError(t, err)
}

func TestListLaterPagesPostToken(t *testing.T) {
	b := NewBuilder(testProfile(), "IridiumFlares.aspx", nil)

	req, err := b.List(false, "opt=T1")
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "opt=T1", req.Body)
	assert.Equal(t, "application/x-www-form-urlencoded", req.Header.Get("Content-Type"))
	assert.Equal(t, "https://www.heavens-above.com", req.Header.Get("Origin"))
	assert.Equal(t, "max-age=0", req.Header.Get("Cache-Control"))
	assert.Equal(t, "1", req.Header.Get("Upgrade-Insecure-Requests"))
}

func TestHeaderProfileIsShared(t *testing.T) {
	b := NewBuilder(testProfile(), "IridiumFlares.aspx", nil)

	get, err := b.List(true, "")
	require.NoError(t, err)
	post, err := b.List(false, "x=1")
	require.NoError(t, err)
	img, err := b.Image("https://www.heavens-above.com/image.png")
	require.NoError(t, err)

	for _, key := range []string{"User-Agent", "Accept", "Accept-Language", "Cookie", "DNT"} {
		assert.Equal(t, get.Header.Get(key), post.Header.Get(key), key)
		assert.Equal(t, get.Header.Get(key), img.Header.Get(key), key)
	}

	cookie := get.Header.Get("Cookie")
	assert.Contains(t, cookie, "ASP.NET_SessionId=4swouj1mkd2nburls12t5ryx")
	assert.Contains(t, cookie, "preferences=showDaytimeFlares=True")
	assert.Contains(t, cookie, "userInfo=lat=39.9042&lng=116.4074&alt=52&tz=ChST&loc=%e5%8c%97%e4%ba%ac%e5%b8%82")
}

func TestDetailAndImage(t *testing.T) {
	b := NewBuilder(testProfile(), "IridiumFlares.aspx", nil)

	detail, err := b.Detail("https://www.heavens-above.com/flaredetails.aspx?fid=1&type=A")
	require.NoError(t, err)
	assert.Equal(t, http.MethodGet, detail.Method)
	assert.Equal(t, "max-age=0", detail.Header.Get("Cache-Control"))

	img, err := b.Image("https://www.heavens-above.com/image.png")
	require.NoError(t, err)
	assert.Equal(t, "https://www.heavens-above.com/image.png", img.URL)
	assert.Empty(t, img.Header.Get("Cache-Control"))
}

func TestEmptyTargetIsInvalid(t *testing.T) {
	b := NewBuilder(testProfile(), "", nil)

	_, err := b.List(true, "")
	assert.ErrorIs(t, err, ErrInvalidRequestSpec)
	_, err = b.Detail("")
	assert.ErrorIs(t, err, ErrInvalidRequestSpec)
	_, err = b.Image("")
	assert.ErrorIs(t, err, ErrInvalidRequestSpec)

	noBase := NewBuilder(Profile{}, "PassSummary.aspx", nil)
	_, err = noBase.List(true, "")
	assert.ErrorIs(t, err, ErrInvalidRequestSpec)
}

func TestResolve(t *testing.T) {
	b := NewBuilder(testProfile(), "IridiumFlares.aspx", nil)
	assert.Equal(t, "https://www.heavens-above.com/chart.ashx?x=1", b.Resolve("chart.ashx?x=1"))
	assert.Equal(t, "https://www.heavens-above.com/chart.ashx", b.Resolve("/chart.ashx"))
	assert.Equal(t, "http://other/x.png", b.Resolve("http://other/x.png"))
}
