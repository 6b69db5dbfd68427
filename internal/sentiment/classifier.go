// Package sentiment turns polarity scores into categories and provides the
// scorers that produce them.
package sentiment

type Category string

const (
	Positive Category = "Positive"
	Neutral  Category = "Neutral"
	Negative Category = "Negative"
)

// Categories lists every category in display order.
var Categories = []Category{Positive, Neutral, Negative}

// Ingestion-time thresholds. Both bounds are inclusive.
const (
	PositiveThreshold = 0.05
	NegativeThreshold = -0.05
)

// Classify is the ingestion classifier used for run summaries and
// notifications.
func Classify(score float64) Category {
	switch {
	case score >= PositiveThreshold:
		return Positive
	case score <= NegativeThreshold:
		return Negative
	default:
		return Neutral
	}
}

const (
	DefaultAnalyticsPositive = 0.3
	DefaultAnalyticsNegative = -0.3
)

// AnalyticsClassifier bins stored scores for dashboard aggregation using
// right-closed intervals: (-inf, Negative] is Negative, (Negative, Positive]
// is Neutral and (Positive, inf) is Positive.
type AnalyticsClassifier struct {
	Positive float64
	Negative float64
}

func DefaultAnalyticsClassifier() AnalyticsClassifier {
	return AnalyticsClassifier{Positive: DefaultAnalyticsPositive, Negative: DefaultAnalyticsNegative}
}

// NewAnalyticsClassifier falls back to the defaults when the bounds are
// outside (-1, 1) or inverted.
func NewAnalyticsClassifier(positive, negative float64) AnalyticsClassifier {
	if positive <= -1 || positive >= 1 || negative <= -1 || negative >= 1 || negative > positive {
		return DefaultAnalyticsClassifier()
	}
	return AnalyticsClassifier{Positive: positive, Negative: negative}
}

func (c AnalyticsClassifier) Classify(score float64) Category {
	switch {
	case score <= c.Negative:
		return Negative
	case score > c.Positive:
		return Positive
	default:
		return Neutral
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
