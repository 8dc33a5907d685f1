// Package spectral finds the dominant residency cycle with a real-input
// FFT. The series is demeaned first so the DC bin carries no energy, and
// bin 0 is excluded from the search regardless. A constant series has no
// dominant frequency and fails explicitly rather than dressing up bin 1 as
// a period.
package spectral

import (
	"fmt"
	"math/cmplx"
	"time"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/dwellscope/dwellscope/pkg/alg/stats"
	"github.com/dwellscope/dwellscope/pkg/timeseries"
)

// Name identifies this analyzer in reports and metrics.
const Name = "spectral"

// Bin is one spectrum line. Frequencies are in cycles per hour.
type Bin struct {
	CyclesPerHour float64 `json:"cycles_per_hour"`
	Magnitude     float64 `json:"magnitude"`
}

// Result carries the dominant period plus the full spectrum, DC included,
// for downstream rendering.
type Result struct {
	PeriodHours   float64 `json:"period_hours"`
	CyclesPerHour float64 `json:"cycles_per_hour"`
	Spectrum      []Bin   `json:"spectrum,omitempty"`
}

// Analyze computes the magnitude spectrum of the demeaned series and
// returns the period of the strongest non-DC bin. Bin j of a length-N
// series maps to frequency j/(N*step).
func Analyze(series *timeseries.Series) (Result, error) {
	n := series.Len()
	if n < 2 {
		return Result{}, fmt.Errorf("%d samples leave no non-DC bin: %w", n, timeseries.ErrDegenerateSeries)
	}

	if _, sigma := stats.MeanStdDev(series.Values); sigma == 0 {
		return Result{}, fmt.Errorf("no dominant frequency: %w", timeseries.ErrDegenerateSeries)
	}

	samplesPerHour := float64(time.Hour) / float64(series.Step)
	fft := fourier.NewFFT(n)
	coeffs := fft.Coefficients(nil, stats.Demean(series.Values))

	spectrum := make([]Bin, len(coeffs))
	dominant := 0

	for j, c := range coeffs {
		spectrum[j] = Bin{
			CyclesPerHour: fft.Freq(j) * samplesPerHour,
			Magnitude:     cmplx.Abs(c),
		}

		if j > 0 && (dominant == 0 || spectrum[j].Magnitude > spectrum[dominant].Magnitude) {
			dominant = j
		}
	}

	freq := spectrum[dominant].CyclesPerHour

	return Result{
		PeriodHours:   1 / freq,
		CyclesPerHour: freq,
		Spectrum:      spectrum,
	}, nil
}
