// Package analysis holds the price outlier detector and the sentiment
// scoring seam used when persisting news and social rows.
package analysis

import (
	"math"
	"sort"

	"crypto-collector/internal/domain"
)

// zScoreThreshold flags values more than this many population standard
// deviations from the mean.
const zScoreThreshold = 3.0

// IsPriceOutlier reports whether a live price is an outlier against the
// asset's daily history. The open and close columns are pooled, the live
// price appended, and the last element tested with both an IQR fence and a
// z-score test; either firing marks the price as an outlier. Empty history
// never flags.
func IsPriceOutlier(history []domain.PricePoint, livePrice float64) bool {
	if len(history) == 0 {
		return false
	}

	prices := make([]float64, 0, len(history)*2+1)
	for _, p := range history {
		prices = append(prices, p.Open, p.Close)
	}
	prices = append(prices, livePrice)

	return iqrOutlier(prices, livePrice) || zScoreOutlier(prices, livePrice)
}

// iqrOutlier applies the 1.5*IQR fence. A zero IQR (flat series) never
// flags.
func iqrOutlier(series []float64, value float64) bool {
	q1 := quantile(series, 0.25)
	q3 := quantile(series, 0.75)
	iqr := q3 - q1
	if iqr == 0 {
		return false
	}
	return value < q1-1.5*iqr || value > q3+1.5*iqr
}

// zScoreOutlier tests |z| > 3 with the population standard deviation. A zero
// deviation never flags.
func zScoreOutlier(series []float64, value float64) bool {
	mean := 0.0
	for _, v := range series {
		mean += v
	}
	mean /= float64(len(series))

	variance := 0.0
	for _, v := range series {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(series))

	std := math.Sqrt(variance)
	if std == 0 {
		return false
	}
	return math.Abs((value-mean)/std) > zScoreThreshold
}

// quantile computes the p-quantile with linear interpolation between closest
// ranks.
func quantile(series []float64, p float64) float64 {
	sorted := make([]float64, len(series))
	copy(sorted, series)
	sort.Float64s(sorted)

	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := p * float64(len(sorted)-1)
	lower := int(math.Floor(pos))
	upper := int(math.Ceil(pos))
	if lower == upper {
		return sorted[lower]
	}
	frac := pos - float64(lower)
	return sorted[lower]*(1-frac) + sorted[upper]*frac
}
