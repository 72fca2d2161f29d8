package events

import (
	"math"
	"strconv"
	"strings"
)

const secondsPerDay = 24 * 60 * 60

// Timestamp converts "hh:mm[:ss]" into seconds since midnight.
// Unparseable input yields NaN.
func Timestamp(clock string) float64 {
	parts := strings.Split(strings.TrimSpace(clock), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return math.NaN()
	}

	var total float64
	scale := []float64{3600, 60, 1}
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return math.NaN()
		}
		total += float64(n) * scale[i]
	}
	return total
}

// Hour returns the hour component of "hh:mm[:ss]", or NaN.
func Hour(clock string) float64 {
	ts := Timestamp(clock)
	if math.IsNaN(ts) {
		return ts
	}
	return math.Floor(ts / 3600)
}

// Number parses the leading numeric part of a cell such as "-3.4",
// "52°" or "1,234 km". Unparseable input yields NaN.
func Number(cell string) float64 {
	s := strings.TrimSpace(cell)
	s = strings.ReplaceAll(s, ",", "")

	end := 0
	for end < len(s) {
		c := s[end]
		if (c >= '0' && c <= '9') || c == '.' || ((c == '-' || c == '+') && end == 0) {
			end++
			continue
		}
		break
	}

	v, err := strconv.ParseFloat(s[:end], 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// ScoreInputs derives the ranking tuple and visibility window of a record.
//
// Satellite passes score on [hour of highest point, brightness,
// sun altitude at highest point, altitude at highest point] and use the
// rise-to-set duration in seconds as Exist. Flares score on
// [hour, brightness, sun altitude, altitude] with Exist 0.
func ScoreInputs(kind Kind, rec *Record) ([]float64, float64) {
	if kind == KindFlare {
		return []float64{
			Hour(rec.Field("time")),
			Number(rec.Field("brightness")),
			Number(rec.Field("sunAltitude")),
			Number(rec.Field("altitude")),
		}, 0
	}

	highest, ok := rec.Event("highestPoint")
	if !ok {
		highest = PassEvent{
			Time:       rec.Field("highestTime"),
			Altitude:   rec.Field("highestAltitude"),
			Brightness: rec.Field("brightness"),
		}
	}

	brightness := Number(highest.Brightness)
	if math.IsNaN(brightness) {
		brightness = Number(rec.Field("brightness"))
	}

	return []float64{
		Hour(highest.Time),
		brightness,
		Number(highest.SunAltitude),
		Number(highest.Altitude),
	}, passDuration(rec)
}

func passDuration(rec *Record) float64 {
	var first, last string
	if len(rec.Events) > 0 {
		first = rec.Events[0].Time
		last = rec.Events[len(rec.Events)-1].Time
		if e, ok := rec.Event("rise"); ok {
			first = e.Time
		}
		if e, ok := rec.Event("set"); ok {
			last = e.Time
		}
	} else {
		first = rec.Field("startTime")
		last = rec.Field("endTime")
	}

	start, end := Timestamp(first), Timestamp(last)
	if math.IsNaN(start) || math.IsNaN(end) {
		return 0
	}
	if end < start {
		end += secondsPerDay
	}
	return end - start
}
