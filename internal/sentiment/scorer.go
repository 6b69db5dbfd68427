package sentiment

import (
	"context"
	"maps"
	"strings"
	"sync"

	"github.com/jonreiter/govader"
)

// PolarityScorer returns a compound polarity score in [-1, 1] for a text.
type PolarityScorer interface {
	Compound(ctx context.Context, text string) (float64, error)
}

// VADER valences run from -4 to 4.
const maxValence = 4.0

// The bundled lexicon is parsed once; every scorer shares the analyzer
// unless it carries its own terms.
var sharedAnalyzer = sync.OnceValue(govader.NewSentimentIntensityAnalyzer)

// VaderScorer scores text with the VADER lexicon and rule set.
type VaderScorer struct {
	analyzer *govader.SentimentIntensityAnalyzer
}

func NewVaderScorer() *VaderScorer {
	return &VaderScorer{analyzer: sharedAnalyzer()}
}

// WithTerms returns a scorer whose lexicon adds or overrides terms. Keys are
// lower-cased and valences clamped to the VADER range; the receiver's
// lexicon is left untouched.
func (s *VaderScorer) WithTerms(terms map[string]float64) *VaderScorer {
	if len(terms) == 0 {
		return s
	}
	base := s.analyzer
	lexicon := make(map[string]float64, len(base.Lexicon)+len(terms))
	maps.Copy(lexicon, base.Lexicon)
	for term, valence := range terms {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" {
			continue
		}
		lexicon[term] = clamp(valence, -maxValence, maxValence)
	}
	return &VaderScorer{analyzer: &govader.SentimentIntensityAnalyzer{
		Lexicon:   lexicon,
		EmojiDict: base.EmojiDict,
		Constants: base.Constants,
	}}
}

func (s *VaderScorer) Compound(_ context.Context, text string) (float64, error) {
	return s.analyzer.PolarityScores(text).Compound, nil
}
