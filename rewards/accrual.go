/*
accrual.go - Per-category point rates

PURPOSE:
  Translates a domain event into a number of points using the current
  configuration's pointValues:

  CATEGORY   RATE TYPE             DEFAULT
  booking    flat per booking      10
  purchase   per currency unit     1
  rental     per currency unit     0.5
  referral   flat per referral     50
  other      none                  explicit amount required

  Per-unit rates are multiplied by the spend and rounded down, so a 45.00
  rental at 0.5 earns 22 points.

SEE ALSO:
  - service.go: Accrue posts the computed amount
*/
package rewards

import (
	"fmt"

	"github.com/warp/studio-engine/generic"
)

// PointsFor returns the points earned for one event of category with spend.
// Spend is ignored for flat categories.
func PointsFor(category generic.EntryCategory, spend generic.Money, cfg Config) (int64, error) {
	pv := cfg.PointValues
	switch category {
	case generic.CategoryBooking:
		return pv.Booking, nil
	case generic.CategoryReferral:
		return pv.Referral, nil
	case generic.CategoryPurchase:
		return perUnit(spend, pv.Purchase.Mul(spend.Value).Floor().IntPart())
	case generic.CategoryRental:
		return perUnit(spend, pv.Rental.Mul(spend.Value).Floor().IntPart())
	default:
		return 0, fmt.Errorf("%w: category %q has no accrual rate", generic.ErrInvalidInput, category)
	}
}

func perUnit(spend generic.Money, points int64) (int64, error) {
	if spend.IsNegative() {
		return 0, fmt.Errorf("%w: spend must not be negative: %s", generic.ErrInvalidInput, spend)
	}
	return points, nil
}
