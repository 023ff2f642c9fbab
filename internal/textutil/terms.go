package textutil

import (
	"math"
	"strings"
	"unicode"
)

const minTermLength = 3

// Tokenize lowercases text and splits it on anything that is not a letter or
// digit. Terms shorter than three characters are dropped.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) >= minTermLength {
			out = append(out, f)
		}
	}
	return out
}

// Terms is a weighted bag of words. The zero value is empty and matches
// nothing.
type Terms map[string]float64

// NewTerms counts the terms of text.
func NewTerms(text string) Terms {
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return nil
	}
	terms := make(Terms, len(tokens))
	for _, t := range tokens {
		terms[t]++
	}
	return terms
}

// Weighted scales each term by weights[term]. Terms without a weight keep
// their count; terms weighted to zero are dropped.
func (t Terms) Weighted(weights map[string]float64) Terms {
	if len(t) == 0 || len(weights) == 0 {
		return t
	}
	out := make(Terms, len(t))
	for term, count := range t {
		if w, ok := weights[term]; ok {
			count *= w
		}
		if count != 0 {
			out[term] = count
		}
	}
	return out
}

func (t Terms) norm() float64 {
	var sum float64
	for _, v := range t {
		sum += v * v
	}
	return math.Sqrt(sum)
}

// Similarity is the cosine of the angle between a and b, in [0, 1] for
// non-negative weights. Empty inputs score 0.
func Similarity(a, b Terms) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	if len(b) < len(a) {
		a, b = b, a
	}
	var dot float64
	for term, v := range a {
		dot += v * b[term]
	}
	if dot == 0 {
		return 0
	}
	return dot / (a.norm() * b.norm())
}

// DocumentFrequency counts, per term, how many documents contain it.
type DocumentFrequency struct {
	docs  int
	terms map[string]int
}

// Add records one document.
func (d *DocumentFrequency) Add(t Terms) {
	if len(t) == 0 {
		return
	}
	if d.terms == nil {
		d.terms = make(map[string]int)
	}
	d.docs++
	for term := range t {
		d.terms[term]++
	}
}

// Documents returns how many non-empty documents were added.
func (d *DocumentFrequency) Documents() int { return d.docs }

// IDF returns smoothed inverse document frequencies, ln((N+1)/(df+1)). Terms
// present in every document approach zero.
func (d *DocumentFrequency) IDF() map[string]float64 {
	if d.docs == 0 {
		return nil
	}
	n := float64(d.docs)
	idf := make(map[string]float64, len(d.terms))
	for term, df := range d.terms {
		idf[term] = math.Log((n + 1) / (float64(df) + 1))
	}
	return idf
}
