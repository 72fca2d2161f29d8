package rank

import (
	"cmp"
	"math"
	"slices"

	"github.com/TobiSchelling/skycrawler/internal/events"
)

// Comparator orders two ranked records for one criterion.
type Comparator func(a, b *events.Ranked) int

// Band adds Bonus to records whose bonus attribute lies in [Low, High].
type Band struct {
	Low, High float64
	Bonus     float64
}

// Criteria configures a ranking: each comparator contributes
// 100*(1-position/n)*weight to a record's score.
type Criteria struct {
	Comparators []Comparator
	// Weights are matched to Comparators by index; a missing weight is 1.
	Weights []float64
	Bands   []Band
	// BonusIndex selects the ScoreData element the bands apply to.
	BonusIndex int
	// GuardIndex selects the ScoreData element that must be a number;
	// records where it is NaN score 0.
	GuardIndex int
	Normalizer float64
}

// Ascending orders by key, smallest first. NaN sorts last.
func Ascending(key func(*events.Ranked) float64) Comparator {
	return func(a, b *events.Ranked) int {
		return compareNaNLast(key(a), key(b), false)
	}
}

// Descending orders by key, largest first. NaN sorts last.
func Descending(key func(*events.Ranked) float64) Comparator {
	return func(a, b *events.Ranked) int {
		return compareNaNLast(key(a), key(b), true)
	}
}

func compareNaNLast(x, y float64, desc bool) int {
	xn, yn := math.IsNaN(x), math.IsNaN(y)
	switch {
	case xn && yn:
		return 0
	case xn:
		return 1
	case yn:
		return -1
	}
	if desc {
		return cmp.Compare(y, x)
	}
	return cmp.Compare(x, y)
}

// Data returns a key reading ScoreData[i]; out of range reads NaN.
func Data(i int) func(*events.Ranked) float64 {
	return func(r *events.Ranked) float64 {
		if i < 0 || i >= len(r.ScoreData) {
			return math.NaN()
		}
		return r.ScoreData[i]
	}
}

// Exist is the key reading the visibility window.
func Exist(r *events.Ranked) float64 { return r.Exist }

// Score indexes, shared by satellite passes and flares.
const (
	Hour = iota
	Brightness
	SunAltitude
	PeakAltitude
)

// HourBands favour events in the evening, then late night, then early morning.
var HourBands = []Band{
	{Low: 17, High: 19, Bonus: 850},
	{Low: 20, High: 23, Bonus: 950},
	{Low: 0, High: 3, Bonus: 400},
	{Low: 4, High: 6, Bonus: 300},
}

// SatelliteCriteria ranks passes by brightness, darkness of the sky,
// peak altitude and duration.
func SatelliteCriteria() Criteria {
	return Criteria{
		Comparators: []Comparator{
			Ascending(Data(Brightness)),
			Ascending(Data(SunAltitude)),
			Descending(Data(PeakAltitude)),
			Descending(Exist),
		},
		Weights:    []float64{9.5, 6, 6.5, 6.5},
		Bands:      HourBands,
		BonusIndex: Hour,
		GuardIndex: Brightness,
		Normalizer: 40,
	}
}

// FlareCriteria ranks flares by brightness, altitude and darkness of the sky.
func FlareCriteria() Criteria {
	return Criteria{
		Comparators: []Comparator{
			Ascending(Data(Brightness)),
			Descending(Data(PeakAltitude)),
			Ascending(Data(SunAltitude)),
		},
		Weights:    []float64{9.5, 6.5, 6},
		Bands:      HourBands,
		BonusIndex: Hour,
		GuardIndex: Brightness,
		Normalizer: 40,
	}
}

// For returns the default criteria for kind.
func For(kind events.Kind) Criteria {
	if kind == events.KindFlare {
		return FlareCriteria()
	}
	return SatelliteCriteria()
}

// Rank derives score inputs for each record and scores them.
func Rank(records []events.Record, kind events.Kind, c Criteria) []events.Ranked {
	in := make([]events.Ranked, len(records))
	for i := range records {
		data, exist := events.ScoreInputs(kind, &records[i])
		in[i] = events.Ranked{Record: records[i], ScoreData: data, Exist: exist}
	}
	return Score(in, c)
}

// Score computes Score for every record and returns a new slice sorted by
// descending score. Records with equal scores keep the order of the last
// criterion pass. The input is not modified.
func Score(in []events.Ranked, c Criteria) []events.Ranked {
	n := len(in)
	if n == 0 {
		return []events.Ranked{}
	}

	recs := make([]events.Ranked, n)
	for i, r := range in {
		r.ScoreData = slices.Clone(r.ScoreData)
		recs[i] = r
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	totals := make([]float64, n)

	for ci, compare := range c.Comparators {
		w := 1.0
		if ci < len(c.Weights) {
			w = c.Weights[ci]
		}
		slices.SortStableFunc(order, func(a, b int) int {
			return compare(&recs[a], &recs[b])
		})
		for pos, idx := range order {
			totals[idx] += Contribution(pos, n) * w
		}
	}

	bonusKey, guardKey := Data(c.BonusIndex), Data(c.GuardIndex)
	norm := c.Normalizer
	if norm == 0 {
		norm = 1
	}
	for i := range recs {
		total := totals[i] + bonus(bonusKey(&recs[i]), c.Bands)
		recs[i].Score = int(math.Floor(total / norm))
		if math.IsNaN(guardKey(&recs[i])) {
			recs[i].Score = 0
		}
	}

	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Compare(recs[b].Score, recs[a].Score)
	})

	out := make([]events.Ranked, n)
	for pos, idx := range order {
		out[pos] = recs[idx]
	}
	return out
}

// Contribution is the rank score of position pos among n records.
func Contribution(pos, n int) float64 {
	return 100 * (1 - float64(pos)/float64(n))
}

func bonus(v float64, bands []Band) float64 {
	if math.IsNaN(v) {
		return 0
	}
	for _, b := range bands {
		if v >= b.Low && v <= b.High {
			return b.Bonus
		}
	}
	return 0
}
