package service

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/lc-billing-api/internal/models"
)

var percentBase = decimal.NewFromInt(100)

// EffectiveDiscountPercent resolves the discount to charge for one month. A
// discount period overrides the student's base percent when the month falls
// inside [from_month, to_month); an open-ended period has a nil to_month.
// When several periods cover the same month the most recently created one
// wins. The result is clamped to [0, 100].
func EffectiveDiscountPercent(base decimal.Decimal, periods []models.DiscountPeriod, month time.Time) decimal.Decimal {
	start := models.MonthStart(month)

	var winner *models.DiscountPeriod
	for i := range periods {
		p := &periods[i]
		if start.Before(models.MonthStart(p.FromMonth)) {
			continue
		}
		if p.ToMonth != nil && !start.Before(models.MonthStart(*p.ToMonth)) {
			continue
		}
		// periods arrive ordered by created_at, so a later match always
		// supersedes an earlier one, including on equal timestamps.
		if winner == nil || !p.CreatedAt.Before(winner.CreatedAt) {
			winner = p
		}
	}

	percent := base
	if winner != nil {
		percent = winner.Percent
	}
	return clampPercent(percent)
}

// DiscountedAmount applies a percent discount to a fee, rounded half-up to
// two decimal places.
func DiscountedAmount(fee, percent decimal.Decimal) decimal.Decimal {
	factor := percentBase.Sub(clampPercent(percent)).Div(percentBase)
	return fee.Mul(factor).Round(2)
}

// ProratedAmountDue prices one enrollment month. Proration only applies when
// the student's planned study end falls inside the month: the discounted fee
// is then scaled by the billable-lesson ratio where lesson counts are kept,
// or by the day fraction otherwise. The result never goes below zero and is
// rounded half-up to two decimal places.
func ProratedAmountDue(fee, discountPercent decimal.Decimal, month time.Time, plannedStudyUntil *time.Time, lessonsPlanned, lessonsBillable int) decimal.Decimal {
	amount := fee.Mul(percentBase.Sub(clampPercent(discountPercent))).Div(percentBase)

	if plannedStudyUntil != nil && models.MonthContains(month, *plannedStudyUntil) {
		if lessonsPlanned > 0 && lessonsBillable >= 0 && lessonsBillable < lessonsPlanned {
			amount = amount.Mul(decimal.NewFromInt(int64(lessonsBillable))).
				Div(decimal.NewFromInt(int64(lessonsPlanned)))
		} else {
			days := decimal.NewFromInt(int64(plannedStudyUntil.Day()))
			amount = amount.Mul(days).Div(decimal.NewFromInt(int64(models.DaysInMonth(month))))
		}
	}

	if amount.IsNegative() {
		amount = decimal.Zero
	}
	return amount.Round(2)
}

func clampPercent(p decimal.Decimal) decimal.Decimal {
	if p.IsNegative() {
		return decimal.Zero
	}
	if p.GreaterThan(percentBase) {
		return percentBase
	}
	return p
}
