// Package scoring maps a client's aggregated metrics to a score, a friction
// index and a tier. Everything here is pure; there is no I/O.
package scoring

import (
	"fmt"
	"math"

	"github.com/phucmetlamroi/agency-manager/internal/domain/model"
)

// Formula constants.
const (
	minScore = 0
	maxScore = 100

	revenueFloor     = 1_000_000 // revenue at or below this scores zero value
	revenueLogOffset = 6         // log10(revenueFloor)
	revenueLogScale  = 40

	ratingScale  = 20
	penaltyScale = 100

	weightValue    = 0.5
	weightFriction = 0.2
	weightQuality  = 0.15
	weightPayment  = 0.15

	silverMinScore    = 40
	goldMinScore      = 60
	goldMinRevenue    = 20_000_000
	diamondMinScore   = 80
	diamondMinRevenue = 50_000_000

	warningFriction      = 0.5
	warningPaymentRating = 1
)

// Breakdown exposes the intermediate terms of a score.
type Breakdown struct {
	Friction        float64
	ValueScore      float64
	QualityScore    float64
	PaymentScore    float64
	FrictionPenalty float64
	FinalScore      float64
	Tier            model.Tier
}

// Scorer computes a ScoreResult from one client's metrics.
type Scorer interface {
	Score(m model.ClientMetrics) (model.ScoreResult, error)
}

// Engine is the default Scorer.
type Engine struct{}

// NewEngine returns the default scoring engine.
func NewEngine() *Engine { return &Engine{} }

// Score implements Scorer.
func (*Engine) Score(m model.ClientMetrics) (model.ScoreResult, error) {
	return Score(m)
}

// Score computes the result for m. Ratings left at zero take the default of 3.
// Malformed metrics fail with ErrComputation instead of being clamped.
func Score(m model.ClientMetrics) (model.ScoreResult, error) {
	b, err := Explain(m)
	if err != nil {
		return model.ScoreResult{}, err
	}
	return model.ScoreResult{
		ClientID:      m.ClientID,
		Score:         b.FinalScore,
		FrictionIndex: b.Friction,
		Tier:          b.Tier,
	}, nil
}

// Explain computes the full breakdown for m.
func Explain(m model.ClientMetrics) (Breakdown, error) {
	m = m.WithDefaults()
	if err := validate(m); err != nil {
		return Breakdown{}, err
	}

	var b Breakdown
	b.Friction = frictionRatio(m.FrictionEvents, m.TotalTasks)
	b.ValueScore = valueScore(m.Revenue)
	b.QualityScore = float64(m.InputQuality * ratingScale)
	b.PaymentScore = float64(m.PaymentRating * ratingScale)
	b.FrictionPenalty = b.Friction * penaltyScale

	b.FinalScore = clamp(
		b.ValueScore*weightValue-
			b.FrictionPenalty*weightFriction+
			b.QualityScore*weightQuality+
			b.PaymentScore*weightPayment,
		minScore, maxScore)

	b.Tier = classify(b.FinalScore, m.Revenue, b.Friction, m.PaymentRating)
	return b, nil
}

func validate(m model.ClientMetrics) error {
	switch {
	case math.IsNaN(m.Revenue) || math.IsInf(m.Revenue, 0):
		return fmt.Errorf("%w: client %s: revenue is not finite", ErrComputation, m.ClientID)
	case m.Revenue < 0:
		return fmt.Errorf("%w: client %s: negative revenue %.2f", ErrComputation, m.ClientID, m.Revenue)
	case m.FrictionEvents < 0:
		return fmt.Errorf("%w: client %s: negative friction events %d", ErrComputation, m.ClientID, m.FrictionEvents)
	case m.TotalTasks < 0:
		return fmt.Errorf("%w: client %s: negative task count %d", ErrComputation, m.ClientID, m.TotalTasks)
	case m.InputQuality < model.MinRating || m.InputQuality > model.MaxRating:
		return fmt.Errorf("%w: client %s: input quality %d outside [1,5]", ErrComputation, m.ClientID, m.InputQuality)
	case m.PaymentRating < model.MinRating || m.PaymentRating > model.MaxRating:
		return fmt.Errorf("%w: client %s: payment rating %d outside [1,5]", ErrComputation, m.ClientID, m.PaymentRating)
	}
	return nil
}

// frictionRatio is unclamped; it exceeds 1 when events outnumber tasks.
func frictionRatio(events, tasks int64) float64 {
	if tasks <= 0 {
		return 0
	}
	return float64(events) / float64(tasks)
}

func valueScore(revenue float64) float64 {
	if revenue <= revenueFloor {
		return 0
	}
	return clamp((math.Log10(revenue)-revenueLogOffset)*revenueLogScale, minScore, maxScore)
}

// classify applies the tier ladder; WARNING is checked last and always wins.
func classify(score, revenue, friction float64, paymentRating int) model.Tier {
	tier := model.TierStandard
	if score >= silverMinScore {
		tier = model.TierSilver
	}
	if score >= goldMinScore && revenue > goldMinRevenue {
		tier = model.TierGold
	}
	if score >= diamondMinScore && revenue > diamondMinRevenue {
		tier = model.TierDiamond
	}
	if friction > warningFriction || paymentRating <= warningPaymentRating {
		tier = model.TierWarning
	}
	return tier
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
