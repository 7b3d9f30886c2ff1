package logtext

import (
	"bufio"
	"fmt"
	"io"
	"math"

	hdr "github.com/HdrHistogram/HdrHistogram-sub001"
)

// WritePercentileDistribution renders the classic ".hgrm" text table for h:
// one row per percentile tick, scaled by outputValueUnitRatio, plus a
// trailing summary of mean/std-deviation/max and total count. This is the
// "percentile-distribution text formatter" spec.md §1 calls out as an
// external collaborator over the core's GetValueAtPercentile.
func WritePercentileDistribution(w io.Writer, h *hdr.Histogram, outputValueUnitRatio float64, ticksPerHalfDistance int) error {
	if outputValueUnitRatio <= 0 {
		outputValueUnitRatio = 1
	}
	if ticksPerHalfDistance <= 0 {
		ticksPerHalfDistance = 5
	}

	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "%12s %14s %10s %14s\n\n", "Value", "Percentile", "TotalCount", "1/(1-Percentile)")

	total := h.GetTotalCount()
	if total > 0 {
		for _, p := range percentileTicks(ticksPerHalfDistance) {
			v := h.GetValueAtPercentile(p)
			cumCount := int64(math.Round(p / 100.0 * float64(total)))

			inverse := "inf"
			if p < 100 {
				inverse = fmt.Sprintf("%.2f", 1.0/(1.0-p/100.0))
			}

			fmt.Fprintf(bw, "%12.3f %2s%.12f %10d %14s\n",
				float64(v)/outputValueUnitRatio, "", p/100.0, cumCount, inverse)
		}
	}

	fmt.Fprintf(bw, "#[Mean    = %12.3f, StdDeviation   = %12.3f]\n",
		h.GetMean()/outputValueUnitRatio, h.GetStdDeviation()/outputValueUnitRatio)
	fmt.Fprintf(bw, "#[Max     = %12.3f, Total count    = %12d]\n",
		float64(h.GetMaxValue())/outputValueUnitRatio, total)

	return bw.Flush()
}

// percentileTicks generates the percentile sequence the original log
// processor uses: ticksPerHalfDistance steps through each successive half
// of the remaining distance to 100 (so for 5 ticks per half: 10, 20, 30,
// 40, 50, 55, 60, 65, 70, 75, 77.5, ...), stopping once the remaining
// distance to 100 is negligible and ending with 100.
func percentileTicks(ticksPerHalfDistance int) []float64 {
	var out []float64

	reached := 0.0
	halfDistance := 50.0
	for i := 0; i < 64 && 100.0-reached > 1e-9; i++ {
		increment := halfDistance / float64(ticksPerHalfDistance)
		for j := 0; j < ticksPerHalfDistance && 100.0-reached > 1e-9; j++ {
			reached += increment
			if reached > 100 {
				reached = 100
			}
			out = append(out, reached)
		}
		halfDistance /= 2
	}

	if len(out) == 0 || out[len(out)-1] != 100 {
		out = append(out, 100)
	}

	return out
}
