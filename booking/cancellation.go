/*
cancellation.go - Late-cancellation fee

RULE:
  If less than 24 hours remain between now and the reservation's scheduled
  start, the fee is 50% of the price. Otherwise it is zero. A start that
  already passed counts as "less than 24 hours".

  The fee is recorded on the reservation only. It is not a separate charge
  and it does not post a ledger entry; loyalty effects are the caller's
  decision.

  The reservation's creation time plays no part in the rule.
*/
package booking

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/studio-engine/generic"
)

const CancellationWindow = 24 * time.Hour

// LateCancellationRate is the share of the price charged inside the window.
var LateCancellationRate = decimal.NewFromFloat(0.5)

// DefaultAdminCancelReason is recorded when an admin cancels without a reason.
const DefaultAdminCancelReason = "Cancelled by admin"

// CancellationFee returns the fee for cancelling r at now.
func CancellationFee(r generic.Reservation, now time.Time) generic.Money {
	if r.Period.Start.Time.Sub(now) < CancellationWindow {
		return r.Price.Mul(LateCancellationRate).Round()
	}
	return generic.ZeroMoney()
}

// applyCancellation moves r into cancelled and stamps fee, reason, actor and time.
func applyCancellation(r *generic.Reservation, actor generic.Actor, reason string, now time.Time) {
	fee := CancellationFee(*r, now)
	if reason == "" && actor.IsAdmin() && !r.OwnedBy(actor) {
		reason = DefaultAdminCancelReason
	}

	r.Status = generic.StatusCancelled
	r.CancellationFee = &fee
	r.CancelReason = reason
	r.CancelledBy = actor.ID
	r.CancelledAt = &now
	r.UpdatedAt = now
}
