// Package cutoff reconciles per-round admission cutoffs into ranked offers.
package cutoff

import (
	"fmt"
	"strconv"
	"strings"
)

// Round is one allocation round. Earlier rounds carry a higher likelihood.
type Round int

const (
	RoundFirst Round = iota + 1
	RoundSecond
	RoundThird
)

// Rounds lists every round in scan order.
var Rounds = [...]Round{RoundFirst, RoundSecond, RoundThird}

func (r Round) Valid() bool {
	return r >= RoundFirst && r <= RoundThird
}

// Likelihood is an ordinal label, not a probability.
func (r Round) Likelihood() int {
	switch r {
	case RoundFirst:
		return 90
	case RoundSecond:
		return 60
	case RoundThird:
		return 30
	default:
		return 0
	}
}

func (r Round) String() string {
	switch r {
	case RoundFirst:
		return "first"
	case RoundSecond:
		return "second"
	case RoundThird:
		return "third"
	default:
		return fmt.Sprintf("round(%d)", int(r))
	}
}

// UnrankedSentinel marks a category that was not offered or filled in a round.
const UnrankedSentinel = "--"

// Cutoff is the worst rank admitted under one category in one round.
type Cutoff struct {
	Rank   int
	Ranked bool
}

// ParseCutoff reads a raw category cell. The sentinel, blanks and non-numeric
// values are unranked.
func ParseCutoff(raw string) Cutoff {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == UnrankedSentinel {
		return Cutoff{}
	}
	rank, err := strconv.Atoi(raw)
	if err != nil {
		return Cutoff{}
	}
	return Cutoff{Rank: rank, Ranked: true}
}

// Admits reports whether a candidate holding rank gets in. Lower is better.
func (c Cutoff) Admits(rank int) bool {
	return c.Ranked && rank <= c.Rank
}

// Raw renders the cutoff back into its cell form.
func (c Cutoff) Raw() string {
	if !c.Ranked {
		return UnrankedSentinel
	}
	return strconv.Itoa(c.Rank)
}

// CutoffRecord is one row of a round table for the requested category.
type CutoffRecord struct {
	Institution string
	Program     string
	Cutoff      Cutoff
}

var lineBreaks = strings.NewReplacer("\r", "", "\n", "")

// NormalizeName strips the carriage returns and line feeds source sheets embed in names.
func NormalizeName(name string) string {
	return lineBreaks.Replace(name)
}

// NewRecord builds a record from raw cells.
func NewRecord(institution, program, rawCutoff string) CutoffRecord {
	return CutoffRecord{
		Institution: NormalizeName(institution),
		Program:     NormalizeName(program),
		Cutoff:      ParseCutoff(rawCutoff),
	}
}

type pairKey struct {
	institution string
	program     string
}

func (r CutoffRecord) key() pairKey {
	return pairKey{institution: r.Institution, program: r.Program}
}

// RoundTables holds the scanned records of every round.
type RoundTables map[Round][]CutoffRecord

// Request is the unvalidated input of a page or export call.
type Request struct {
	Rank     int
	Category string
	Group    string
}

// Query is a validated Request.
type Query struct {
	Rank     int
	Category Category
	Group    string
	Programs ProgramSet
}

// ReconciledOffer is the single winning round of one institution and program.
type ReconciledOffer struct {
	Institution  string `json:"institution"`
	Program      string `json:"program"`
	CategoryRank int    `json:"categoryRank"`
	WinningRound Round  `json:"winningRound"`
	Likelihood   int    `json:"likelihood"`
}

// ResultPage is one page of offers ordered by ascending cutoff.
type ResultPage struct {
	Offers     []ReconciledOffer `json:"offers"`
	PageNumber int               `json:"pageNumber"`
	TotalPages int               `json:"totalPages"`
	PageSize   int               `json:"pageSize"`

	// OfferCount is the number of reconciled offers. MatchingCount is the
	// number of distinct institution, program and cutoff triples across all
	// rounds before reconciliation, and is what TotalPages is derived from.
	OfferCount    int `json:"offerCount"`
	MatchingCount int `json:"matchingCount"`

	Rank     int    `json:"rank"`
	Category string `json:"category"`
	Group    string `json:"group,omitempty"`
}
