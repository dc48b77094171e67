// Package stats contains statistics calculations and reporting.
package stats

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/verte-zerg/taskcount/internal/model"
)

const (
	// NotApplicable marks a statistic with too few samples.
	NotApplicable = "na"
	// CannotDetermine is shown when a weighted mean or uptime has no answer.
	CannotDetermine = "cannot determine"
)

// ErrCannotDetermine is returned when weights do not admit a mean.
var ErrCannotDetermine = errors.New("cannot determine")

// Aggregate summarizes task times in seconds.
func Aggregate(values []float64) model.StatBlock {
	switch len(values) {
	case 0:
		return model.StatBlock{
			Total: SecondsToDuration(0, ModeStd),
			Mean:  SecondsToDuration(0, ModeStd),
			Stdev: NotApplicable,
			Min:   NotApplicable,
			Max:   NotApplicable,
		}
	case 1:
		v := values[0]
		s := SecondsToDuration(int(v), ModeStd)
		return model.StatBlock{
			Count:    1,
			Total:    s,
			Mean:     s,
			Stdev:    s,
			Min:      NotApplicable,
			Max:      NotApplicable,
			TotalSec: v,
			MeanSec:  v,
			StdevSec: v,
		}
	}

	minVal, maxVal := math.Inf(1), math.Inf(-1)
	var total float64
	for _, v := range values {
		total += v
		minVal = math.Min(minVal, v)
		maxVal = math.Max(maxVal, v)
	}
	mean := stat.Mean(values, nil)
	sd := stat.StdDev(values, nil)
	return model.StatBlock{
		Count:    len(values),
		Total:    SecondsToDuration(int(total), ModeStd),
		Mean:     SecondsToDuration(int(mean), ModeStd),
		Stdev:    SecondsToDuration(int(sd), ModeStd),
		Min:      SecondsToDuration(int(minVal), ModeStd),
		Max:      SecondsToDuration(int(maxVal), ModeStd),
		TotalSec: total,
		MeanSec:  mean,
		StdevSec: sd,
		MinSec:   minVal,
		MaxSec:   maxVal,
	}
}

// AggregateUnits is Aggregate over work unit times.
func AggregateUnits(units []model.WorkUnitTime) model.StatBlock {
	return Aggregate(UnitSeconds(units))
}

// UnitSeconds converts work unit times to plain seconds.
func UnitSeconds(units []model.WorkUnitTime) []float64 {
	out := make([]float64, len(units))
	for i, u := range units {
		out[i] = float64(u)
	}
	return out
}

// WeightedMean returns sum(value*weight)/sum(weight).
func WeightedMean(values []float64, weights []int) (float64, error) {
	if len(values) == 0 || len(values) != len(weights) {
		return 0, ErrCannotDetermine
	}
	w := make([]float64, len(weights))
	var sum float64
	for i, wt := range weights {
		w[i] = float64(wt)
		sum += w[i]
	}
	if sum == 0 {
		return 0, ErrCannotDetermine
	}
	return stat.Mean(values, w), nil
}

// WeightedMeanString formats WeightedMean or returns CannotDetermine.
func WeightedMeanString(values []float64, weights []int) string {
	mean, err := WeightedMean(values, weights)
	if err != nil {
		return CannotDetermine
	}
	return SecondsToDuration(int(mean), ModeStd)
}

// Stdev is the sample standard deviation, or 0 with fewer than two values.
func Stdev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	return stat.StdDev(values, nil)
}

// NonzeroRange returns the smallest and largest values above zero.
// ok is false when no value is above zero.
func NonzeroRange(values []float64) (lo, hi float64, ok bool) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range values {
		if v <= 0 {
			continue
		}
		ok = true
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if !ok {
		return 0, 0, false
	}
	return lo, hi, true
}

// IntRange returns the smallest and largest counts.
func IntRange(values []int) (lo, hi int) {
	for i, v := range values {
		if i == 0 || v < lo {
			lo = v
		}
		if i == 0 || v > hi {
			hi = v
		}
	}
	return lo, hi
}

// ZeroBlock is the all-zero block emitted for an empty summary window.
func ZeroBlock() model.StatBlock {
	zero := SecondsToDuration(0, ModeStd)
	return model.StatBlock{Total: zero, Mean: zero, Stdev: zero, Min: zero, Max: zero}
}
