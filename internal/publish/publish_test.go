package publish

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TobiSchelling/skycrawler/internal/events"
)

func TestWriteAndRead(t *testing.T) {
	root := filepath.Join(t.TempDir(), "public", "data")
	now := time.Date(2026, 10, 19, 6, 0, 0, 0, time.UTC)

	rec := events.Satellite(25544).NewRecord()
	rec.ID = "abc"
	rec.Fields["brightness"] = "-3.4"
	ranked := []events.Ranked{
		{Record: rec, ScoreData: []float64{20, -3.4, -18, 61}, Exist: 630, Score: 95},
		{Record: events.Satellite(25544).NewRecord(), ScoreData: []float64{math.NaN(), math.NaN(), 0, 0}},
	}

	path, err := Write(root, "satellite25544", ranked, now)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "satellite25544.json"), path)

	feed, err := Read(root, "satellite25544")
	require.NoError(t, err)
	assert.Equal(t, "satellite25544", feed.Category)
	assert.True(t, feed.GeneratedAt.Equal(now))
	require.Len(t, feed.Events, 2)

	top := feed.Events[0]
	assert.Equal(t, 1, top.Rank)
	assert.Equal(t, "abc", top.ID)
	assert.Equal(t, 95, top.Score)
	assert.Equal(t, 630.0, top.Exist)
	require.NotNil(t, top.ScoreData[1])
	assert.Equal(t, -3.4, *top.ScoreData[1])

	assert.Equal(t, 2, feed.Events[1].Rank)
	assert.Nil(t, feed.Events[1].ScoreData[0])
	require.NotNil(t, feed.Events[1].ScoreData[2])
}

func TestWriteReplacesAndLeavesNoTempFiles(t *testing.T) {
	root := t.TempDir()
	now := time.Now()

	_, err := Write(root, "IridiumFlares", []events.Ranked{{Record: events.Flares().NewRecord()}}, now)
	require.NoError(t, err)
	_, err = Write(root, "IridiumFlares", nil, now)
	require.NoError(t, err)

	feed, err := Read(root, "IridiumFlares")
	require.NoError(t, err)
	assert.Empty(t, feed.Events)

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestReadMissing(t *testing.T) {
	_, err := Read(t.TempDir(), "nothing")
	assert.True(t, os.IsNotExist(err))
}
