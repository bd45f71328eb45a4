package accum

import (
	"math"
	"time"
)

// Accumulator aggregates a stream of float samples into count, sum, min, max,
// first and last without keeping the samples.
// Not safe for concurrent use.
type Accumulator struct {
	cnt   int64
	sum   float64
	min   float64
	max   float64
	first float64
	last  float64
}

// New creates an empty accumulator. Every statistic except Count is NaN
// until the first Observe.
func New() *Accumulator {
	a := &Accumulator{}
	a.Reset()
	return a
}

// NewFromAccs merges accumulators, in order, into a new one. Per-session
// latency accumulators merge into a run-wide one this way.
func NewFromAccs(accs []*Accumulator) *Accumulator {
	a := New()
	for _, v := range accs {
		a.Merge(v)
	}
	return a
}

// Merge folds other into a as if other's samples were observed after a's.
func (a *Accumulator) Merge(other *Accumulator) {
	if other == nil || other.cnt == 0 {
		return
	}
	if a.cnt == 0 {
		*a = *other
		return
	}

	a.cnt += other.cnt
	a.sum += other.sum
	a.last = other.last
	if other.max > a.max {
		a.max = other.max
	}
	if other.min < a.min {
		a.min = other.min
	}
}

// Reset empties the accumulator.
func (a *Accumulator) Reset() {
	a.cnt = 0
	a.sum = math.NaN()
	a.min = math.NaN()
	a.max = math.NaN()
	a.first = math.NaN()
	a.last = math.NaN()
}

// Observe updates accumulator state with new data point.
func (a *Accumulator) Observe(v float64) {
	if a.cnt == 0 {
		a.first = v
		a.last = v
		a.min = v
		a.max = v
		a.sum = v
		a.cnt = 1
		return
	}

	a.last = v
	a.sum += v
	a.cnt++

	if v > a.max {
		a.max = v
	}

	if v < a.min {
		a.min = v
	}
}

// ObserveDuration records d in seconds.
func (a *Accumulator) ObserveDuration(d time.Duration) {
	a.Observe(d.Seconds())
}

func (a *Accumulator) First() float64 {
	return a.first
}

func (a *Accumulator) Last() float64 {
	return a.last
}

func (a *Accumulator) Min() float64 {
	return a.min
}

func (a *Accumulator) Max() float64 {
	return a.max
}

func (a *Accumulator) Count() int64 {
	return a.cnt
}

func (a *Accumulator) Sum() float64 {
	return a.sum
}

func (a *Accumulator) Avg() float64 {
	if a.cnt == 0 {
		return math.NaN()
	}

	return a.sum / float64(a.cnt)
}
