package scoring

import (
	"math"
	"time"

	"github.com/fmuoria/recruitment-scoring/internal/apperr"
	"github.com/fmuoria/recruitment-scoring/internal/models"
)

// Precision is the number of decimal places every intermediate value is
// rounded to, at item and parent level alike.
const Precision = 4

const daysPerYear = 365.25

// Round fixes v to Precision decimal places
func Round(v float64) float64 {
	p := math.Pow10(Precision)
	return math.Round(v*p) / p
}

// Result holds per-item triples (same order as the inputs) and the parent total
type Result struct {
	Items   []models.ScoreTriple
	Total   models.ScoreTriple
	Invalid []int // indexes of inputs rejected as invalid
}

// Item is a strategy-neutral scoring input used by Calculate
type Item struct {
	Input    float64 // percentage or quantity
	From     time.Time
	To       time.Time
	Weight   float64
	Cap      float64
	Rejected bool
}

// Calculate dispatches to the strategy selected by method
func Calculate(method models.CalcMethod, items []Item, parentCap float64) (Result, error) {
	switch method {
	case models.MethodWeightedMarks:
		in := make([]WeightedInput, len(items))
		for i, it := range items {
			in[i] = WeightedInput{Weight: it.Weight, InputValue: it.Input, MaxValue: it.Cap, Rejected: it.Rejected}
		}
		return WeightedMarks(in, parentCap), nil
	case models.MethodDateDuration:
		in := make([]DurationInput, len(items))
		for i, it := range items {
			in[i] = DurationInput{From: it.From, To: it.To, Weight: it.Weight, Cap: it.Cap, Rejected: it.Rejected}
		}
		return DateDuration(in, parentCap)
	case models.MethodQuantity:
		in := make([]QuantityInput, len(items))
		for i, it := range items {
			in[i] = QuantityInput{Quantity: it.Input, Weightage: it.Weight, Cap: it.Cap, Rejected: it.Rejected}
		}
		return QuantityBased(in, parentCap), nil
	default:
		return Result{Items: make([]models.ScoreTriple, len(items))},
			apperr.New(apperr.KindMetadataIncomplete, "unsupported calculation method %d", method)
	}
}

// WeightedInput is one weighted-marks item
type WeightedInput struct {
	Weight     float64
	InputValue float64 // percentage, 0-100
	MaxValue   float64
	Rejected   bool
}

// WeightedMarks scores percentages: actual = input * weight / 10, capped at
// the item's max value and the parent cap.
func WeightedMarks(inputs []WeightedInput, parentCap float64) Result {
	res := Result{Items: make([]models.ScoreTriple, len(inputs))}
	var sumRaw, sumActual, sumCalc float64
	for i, in := range inputs {
		if in.Rejected {
			continue
		}
		actual := Round(in.InputValue * in.Weight / 10)
		calc := capAt(actual, in.MaxValue)
		res.Items[i] = models.ScoreTriple{Raw: Round(in.InputValue), Actual: actual, Calculated: calc}
		sumRaw += res.Items[i].Raw
		sumActual += actual
		sumCalc += calc
	}
	res.Total = models.ScoreTriple{
		Raw:        Round(sumRaw),
		Actual:     Round(sumActual),
		Calculated: capAt(Round(sumCalc), parentCap),
	}
	return res
}

// DurationInput is one date-duration item
type DurationInput struct {
	From     time.Time
	To       time.Time
	Weight   float64
	Cap      float64
	Rejected bool
}

// DateDuration scores periods in decimal years. Items whose end precedes their
// start score zero and are reported through a CalculationInvalid error; items
// with a missing date score zero silently.
func DateDuration(inputs []DurationInput, parentCap float64) (Result, error) {
	res := Result{Items: make([]models.ScoreTriple, len(inputs))}
	var sumDays, sumCalc float64
	for i, in := range inputs {
		if in.Rejected || in.From.IsZero() || in.To.IsZero() {
			continue
		}
		if in.To.Before(in.From) {
			res.Invalid = append(res.Invalid, i)
			continue
		}
		days := Days(in.From, in.To)
		years := Round(days / daysPerYear)
		calc := capAt(Round(years*in.Weight), in.Cap)
		res.Items[i] = models.ScoreTriple{Raw: days, Actual: years, Calculated: calc}
		sumDays += days
		sumCalc += calc
	}
	res.Total = models.ScoreTriple{
		Raw:        sumDays,
		Actual:     Round(sumDays / daysPerYear),
		Calculated: capAt(Round(sumCalc), parentCap),
	}
	if len(res.Invalid) > 0 {
		return res, apperr.New(apperr.KindCalculationInvalid, "item %d: end date is before start date", res.Invalid[0])
	}
	return res, nil
}

// Days returns the whole number of days between from and to
func Days(from, to time.Time) float64 {
	return math.Round(to.Sub(from).Hours() / 24)
}

// QuantityInput is one quantity-based item
type QuantityInput struct {
	Quantity  float64
	Weightage float64
	Cap       float64
	Rejected  bool
}

// QuantityBased scores counts: actual = quantity * weightage, capped per item
// and at the parent. The actual total stays uncapped.
func QuantityBased(inputs []QuantityInput, parentCap float64) Result {
	res := Result{Items: make([]models.ScoreTriple, len(inputs))}
	var sumRaw, sumActual, sumCalc float64
	for i, in := range inputs {
		if in.Rejected {
			continue
		}
		actual := Round(in.Quantity * in.Weightage)
		calc := capAt(actual, in.Cap)
		res.Items[i] = models.ScoreTriple{Raw: Round(in.Quantity), Actual: actual, Calculated: calc}
		sumRaw += res.Items[i].Raw
		sumActual += actual
		sumCalc += calc
	}
	res.Total = models.ScoreTriple{
		Raw:        Round(sumRaw),
		Actual:     Round(sumActual),
		Calculated: capAt(Round(sumCalc), parentCap),
	}
	return res
}

// capAt bounds v to [0, limit]
func capAt(v, limit float64) float64 {
	v = math.Min(v, limit)
	if v < 0 {
		return 0
	}
	return Round(v)
}
