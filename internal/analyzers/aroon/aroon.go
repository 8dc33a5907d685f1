// Package aroon computes the Aroon trend indicator over a sliding window
// and flags bullish reversals where the up line crosses above the down
// line. A series shorter than the window yields an empty result, not an
// error; too little history is an expected state.
package aroon

import (
	"github.com/dwellscope/dwellscope/pkg/timeseries"
)

// Name identifies this analyzer in reports and metrics.
const Name = "aroon"

// Result holds the indicator lines for indexes Start..Start+len(Up)-1 of
// the source series. Crossovers lists absolute series indexes where the up
// line crossed above the down line.
type Result struct {
	Window     int       `json:"window"`
	Start      int       `json:"start"`
	Up         []float64 `json:"up,omitempty"`
	Down       []float64 `json:"down,omitempty"`
	Crossovers []int     `json:"crossovers,omitempty"`
}

// Compute evaluates Aroon up/down for every index with a full trailing
// window. With p the number of steps back from the window end to the
// extreme (ties going to the most recent occurrence), the line value is
// 100*(W-1-p)/W. A bullish reversal registers at i when Up(i) > Down(i)
// and Up(i-1) <= Down(i-1); the first defined index never registers one.
func Compute(series *timeseries.Series, window int) Result {
	n := series.Len()
	if window < 1 || n < window {
		return Result{Window: window}
	}

	res := Result{
		Window: window,
		Start:  window - 1,
		Up:     make([]float64, n-window+1),
		Down:   make([]float64, n-window+1),
	}

	// Monotonic deques of indexes; fronts track the window extremes.
	// Popping ties on push keeps the most recent occurrence in front.
	values := series.Values

	var maxQ, minQ []int

	for i, v := range values {
		if len(maxQ) > 0 && maxQ[0] <= i-window {
			maxQ = maxQ[1:]
		}

		if len(minQ) > 0 && minQ[0] <= i-window {
			minQ = minQ[1:]
		}

		for len(maxQ) > 0 && values[maxQ[len(maxQ)-1]] <= v {
			maxQ = maxQ[:len(maxQ)-1]
		}

		for len(minQ) > 0 && values[minQ[len(minQ)-1]] >= v {
			minQ = minQ[:len(minQ)-1]
		}

		maxQ = append(maxQ, i)
		minQ = append(minQ, i)

		if i < window-1 {
			continue
		}

		k := i - window + 1
		res.Up[k] = 100 * float64(window-1-(i-maxQ[0])) / float64(window)
		res.Down[k] = 100 * float64(window-1-(i-minQ[0])) / float64(window)

		if k > 0 && res.Up[k] > res.Down[k] && res.Up[k-1] <= res.Down[k-1] {
			res.Crossovers = append(res.Crossovers, i)
		}
	}

	return res
}
