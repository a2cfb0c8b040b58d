package dedup

import (
	"math"
	"regexp"
	"strings"
)

// Similarity scores how alike two problem statements are, in [0, 1].
// The clustering contract is pluggable: the default is lexical cosine, but an
// embedding-backed implementation can be substituted without touching the
// clusterer.
type Similarity interface {
	Score(a, b string) float64
}

var wordPattern = regexp.MustCompile(`[a-z0-9]+`)

// LexicalCosine computes cosine similarity over term-frequency vectors of the
// statement text. Stateless and safe for concurrent use.
type LexicalCosine struct{}

// Score returns the cosine similarity of the two statements' word vectors.
func (LexicalCosine) Score(a, b string) float64 {
	va := termFreq(a)
	vb := termFreq(b)
	if len(va) == 0 || len(vb) == 0 {
		return 0
	}

	var dot, na, nb float64
	for term, fa := range va {
		na += fa * fa
		if fb, ok := vb[term]; ok {
			dot += fa * fb
		}
	}
	for _, fb := range vb {
		nb += fb * fb
	}
	if dot == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func termFreq(s string) map[string]float64 {
	freq := make(map[string]float64)
	for _, w := range wordPattern.FindAllString(strings.ToLower(s), -1) {
		freq[w]++
	}
	return freq
}
