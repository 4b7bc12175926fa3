// Package scoring aggregates test outcomes into a weighted compliance
// score and tier. Requirement levels carry different weights: a failing
// MUST hurts ten times more than a failing MAY.
package scoring

import "strings"

// Level is a requirement-strength level drawn from the protocol
// specification.
type Level string

const (
	LevelMust   Level = "MUST"
	LevelShould Level = "SHOULD"
	LevelMay    Level = "MAY"
)

// Outcome classifies how a single test ended.
type Outcome string

const (
	OutcomePassed   Outcome = "passed"
	OutcomeFailed   Outcome = "failed"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeTimedOut Outcome = "timedOut"
	OutcomeErrored  Outcome = "errored"
)

// Counted reports whether the outcome participates in scoring. Skips are
// policy exclusions, not failures, and never move the score either way.
func (o Outcome) Counted() bool {
	return o != OutcomeSkipped && o != ""
}

// Level weights per the compliance formula.
var levelWeights = map[Level]float64{
	LevelMust:   10.0,
	LevelShould: 3.0,
	LevelMay:    1.0,
}

// Weight returns the scoring weight of the level, 0 for unknown levels.
func (l Level) Weight() float64 {
	return levelWeights[normalizeLevel(l)]
}

// Compliance tier names, highest first.
const (
	TierFully         = "Fully Compliant"
	TierSubstantially = "Substantially Compliant"
	TierPartially     = "Partially Compliant"
	TierMinimally     = "Minimally Compliant"
	TierNonCompliant  = "Non-Compliant"
)

// Input is one test outcome as the scorer sees it.
type Input struct {
	Level   Level
	Outcome Outcome
}

// LevelStats holds the totals for one requirement level.
type LevelStats struct {
	Total  int `json:"total"`
	Passed int `json:"passed"`
}

// Compliance is the weighted assessment of one run. Once computed it is
// read-only; writers serialize it as-is.
type Compliance struct {
	Version string `json:"version,omitzero"`

	Must   LevelStats `json:"must"`
	Should LevelStats `json:"should"`
	May    LevelStats `json:"may"`

	Score float64 `json:"score"`
	Tier  string  `json:"tier"`

	// Applicable is false when no counted test remained at any level, in
	// which case Score 0 means "nothing measured", not "everything failed".
	Applicable bool `json:"applicable"`
}

// Stats returns the counters for one level.
func (c *Compliance) Stats(l Level) LevelStats {
	switch normalizeLevel(l) {
	case LevelMust:
		return c.Must
	case LevelShould:
		return c.Should
	case LevelMay:
		return c.May
	}
	return LevelStats{}
}

// Levels lists the requirement levels in weight order, for tables and
// iteration.
func Levels() []Level {
	return []Level{LevelMust, LevelShould, LevelMay}
}

// Calculate computes the weighted compliance score over the given
// outcomes for one protocol version.
//
// Formula: score = Σ weight·passed / Σ weight·total × 100, where the
// sums run only over levels with at least one counted test. A level
// nobody exercised is excluded from numerator and denominator alike,
// so an all-MUST run is graded purely on its MUSTs. Skipped outcomes
// vanish entirely; failed, timed-out, and errored outcomes count
// toward the total but not toward passed.
func Calculate(inputs []Input, version string) Compliance {
	c := Compliance{Version: version}

	for _, in := range inputs {
		if !in.Outcome.Counted() {
			continue
		}
		var st *LevelStats
		switch normalizeLevel(in.Level) {
		case LevelMust:
			st = &c.Must
		case LevelShould:
			st = &c.Should
		case LevelMay:
			st = &c.May
		default:
			// Unknown level: nothing to weigh it by.
			continue
		}
		st.Total++
		if in.Outcome == OutcomePassed {
			st.Passed++
		}
	}

	var num, den float64
	for _, l := range Levels() {
		st := c.Stats(l)
		if st.Total == 0 {
			continue
		}
		w := levelWeights[l]
		num += w * float64(st.Passed)
		den += w * float64(st.Total)
	}

	if den == 0 {
		c.Score = 0
		c.Tier = TierNonCompliant
		c.Applicable = false
		return c
	}

	c.Score = num / den * 100
	c.Tier = TierFor(c.Score)
	c.Applicable = true
	return c
}

// TierFor maps a score to its compliance tier.
func TierFor(score float64) string {
	switch {
	case score >= 100:
		return TierFully
	case score >= 90:
		return TierSubstantially
	case score >= 75:
		return TierPartially
	case score >= 50:
		return TierMinimally
	default:
		return TierNonCompliant
	}
}

// normalizeLevel folds case so "must" and "MUST" weigh the same.
func normalizeLevel(l Level) Level {
	switch strings.ToUpper(string(l)) {
	case "MUST":
		return LevelMust
	case "SHOULD":
		return LevelShould
	case "MAY":
		return LevelMay
	}
	return l
}
