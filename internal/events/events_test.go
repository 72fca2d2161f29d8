package events

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimestamp(t *testing.T) {
	assert.Equal(t, 45045.0, Timestamp("12:30:45"))
	assert.Equal(t, 3900.0, Timestamp("01:05:00"))
	assert.Equal(t, 0.0, Timestamp("00:00:00"))
	assert.Equal(t, 45000.0, Timestamp("12:30"))
	assert.True(t, math.IsNaN(Timestamp("")))
	assert.True(t, math.IsNaN(Timestamp("noon")))
}

func TestNumber(t *testing.T) {
	cases := map[string]float64{
		"-3.4":     -3.4,
		"52°":      52,
		"1,234 km": 1234,
		" 2.0 ":    2,
		"+1.5":     1.5,
	}
	for in, want := range cases {
		assert.InDelta(t, want, Number(in), 1e-9, in)
	}
	assert.True(t, math.IsNaN(Number("")))
	assert.True(t, math.IsNaN(Number("-")))
	assert.True(t, math.IsNaN(Number("n/a")))
}

func TestNewRecordHasEveryField(t *testing.T) {
	rec := Flares().NewRecord()
	require.Len(t, rec.Fields, len(FlareFields))
	for _, f := range FlareFields {
		v, ok := rec.Fields[f]
		assert.True(t, ok, f)
		assert.Equal(t, "", v)
	}
	assert.Equal(t, "IridiumFlares", rec.Category)
}

func TestSatelliteLayout(t *testing.T) {
	st := Satellite(25544)
	assert.Equal(t, "satellite25544", st.Category)
	assert.Equal(t, "25544", st.Query["satid"])
	require.LessOrEqual(t, st.SummaryCells, len(st.Fields))
	assert.Len(t, st.EventRows, len(PassEventNames))
}

func TestSatelliteScoreInputs(t *testing.T) {
	rec := Satellite(25544).NewRecord()
	rec.Fields["brightness"] = "-3.1"
	rec.Events = []PassEvent{
		{Name: "rise", Time: "23:58:30", Altitude: "0°"},
		{Name: "highestPoint", Time: "00:03:30", Altitude: "61°", Brightness: "-3.4", SunAltitude: "-18.2°"},
		{Name: "set", Time: "00:09:00", Altitude: "0°"},
	}

	data, exist := ScoreInputs(KindSatellite, &rec)
	require.Len(t, data, 4)
	assert.Equal(t, 0.0, data[0])
	assert.InDelta(t, -3.4, data[1], 1e-9)
	assert.InDelta(t, -18.2, data[2], 1e-9)
	assert.Equal(t, 61.0, data[3])
	// wraps past midnight
	assert.Equal(t, 630.0, exist)
}

func TestSatelliteScoreInputsFromSummaryOnly(t *testing.T) {
	rec := Satellite(25544).NewRecord()
	rec.Fields["brightness"] = "-2.0"
	rec.Fields["startTime"] = "20:01:00"
	rec.Fields["highestTime"] = "20:04:00"
	rec.Fields["highestAltitude"] = "45°"
	rec.Fields["endTime"] = "20:08:00"

	data, exist := ScoreInputs(KindSatellite, &rec)
	assert.Equal(t, 20.0, data[0])
	assert.Equal(t, -2.0, data[1])
	assert.True(t, math.IsNaN(data[2]))
	assert.Equal(t, 45.0, data[3])
	assert.Equal(t, 420.0, exist)
}

func TestFlareScoreInputs(t *testing.T) {
	rec := Flares().NewRecord()
	rec.Fields["time"] = "19:42:11"
	rec.Fields["brightness"] = "-6.5"
	rec.Fields["sunAltitude"] = "-9.8°"
	rec.Fields["altitude"] = "33°"

	data, exist := ScoreInputs(KindFlare, &rec)
	assert.Equal(t, []float64{19, -6.5, -9.8, 33}, data)
	assert.Equal(t, 0.0, exist)
}
