package engine

import (
	"time"

	"github.com/verte-zerg/taskcount/internal/model"
	"github.com/verte-zerg/taskcount/internal/stats"
)

// aggregator rolls interval results up into summary windows.
type aggregator struct {
	factor int
	period model.Period
	start  time.Time
	means  []float64
	counts []int
	units  []model.WorkUnitTime
}

func newAggregator(cfg model.Config, start time.Time) *aggregator {
	return &aggregator{factor: cfg.SummaryFactor(), period: cfg.Summary, start: start}
}

// feed adds one interval and returns the window when cycle closes it.
func (a *aggregator) feed(cycle int, snap model.IntervalSnapshot) (model.SummaryWindow, bool) {
	a.means = append(a.means, snap.Stats.MeanSec)
	a.counts = append(a.counts, snap.Stats.Count)
	a.units = append(a.units, snap.NewUnits...)

	if a.factor <= 0 || (cycle+1)%a.factor != 0 {
		return model.SummaryWindow{}, false
	}

	win := model.SummaryWindow{
		Start:          a.start,
		End:            snap.At,
		Period:         a.period,
		Units:          a.units,
		IntervalMeans:  a.means,
		IntervalCounts: a.counts,
	}
	if len(a.units) == 0 {
		win.Stats = stats.ZeroBlock()
	} else {
		win.Stats = stats.AggregateUnits(a.units)
		if mean, err := stats.WeightedMean(a.means, a.counts); err == nil {
			win.Stats.MeanSec = mean
			win.Stats.Mean = stats.SecondsToDuration(int(mean), stats.ModeStd)
		}
	}

	a.start = snap.At
	a.means, a.counts, a.units = nil, nil, nil
	return win, true
}
