// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"strings"
)

// DefaultRating is used for a manual rating that was never set.
const DefaultRating = 3

// Rating bounds for InputQuality and PaymentRating.
const (
	MinRating = 1
	MaxRating = 5
)

// ClientMetrics is the aggregated input for scoring one client.
type ClientMetrics struct {
	ClientID       string  // client row identifier
	Revenue        float64 // sum of completed task value
	FrictionEvents int64   // revisions / client feedback attributed to the client
	TotalTasks     int64   // completed tasks attributed to the client
	InputQuality   int     // manual rating 1..5, 0 when unset
	PaymentRating  int     // manual rating 1..5, 0 when unset
}

// WithDefaults returns a copy with unset ratings replaced by DefaultRating.
func (m ClientMetrics) WithDefaults() ClientMetrics {
	if m.InputQuality == 0 {
		m.InputQuality = DefaultRating
	}
	if m.PaymentRating == 0 {
		m.PaymentRating = DefaultRating
	}
	return m
}

// ScoreResult is what gets written back to the client row.
type ScoreResult struct {
	ClientID      string  `json:"client_id"`
	Score         float64 `json:"score"`
	FrictionIndex float64 `json:"friction_index"`
	Tier          Tier    `json:"tier"`
}

// Tier is the risk/value class stored on the client.
type Tier string

const (
	TierStandard Tier = "STANDARD"
	TierSilver   Tier = "SILVER"
	TierGold     Tier = "GOLD"
	TierDiamond  Tier = "DIAMOND"
	TierWarning  Tier = "WARNING"
)

// Tiers lists every tier in ascending order, WARNING last.
func Tiers() []Tier {
	return []Tier{TierStandard, TierSilver, TierGold, TierDiamond, TierWarning}
}

// Valid reports whether t is one of the five known tiers.
func (t Tier) Valid() bool {
	switch t {
	case TierStandard, TierSilver, TierGold, TierDiamond, TierWarning:
		return true
	}
	return false
}

func (t Tier) String() string { return string(t) }

// ParseTier accepts a tier name in any case.
func ParseTier(s string) (Tier, error) {
	t := Tier(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown tier %q", s)
	}
	return t, nil
}
