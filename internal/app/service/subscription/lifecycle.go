package subscription

import (
	"time"

	"github.com/fatflowers/autoinspect/internal/models"
	"github.com/fatflowers/autoinspect/pkg/apperr"
	"github.com/fatflowers/autoinspect/pkg/types"
)

// CheckPayable is the precondition for binding a technician: the subscription
// must exist and its payment must have been confirmed.
func CheckPayable(sub *models.Subscription) error {
	if sub == nil {
		return apperr.NotFound.Withf("subscription not found")
	}
	if !sub.PaymentConfirmed {
		return apperr.SubscriptionNotPayable
	}
	return nil
}

// addMonthsClamped moves t forward by years and months. A day that does not
// exist in the target month is clamped to its last day (Jan 31 + 1 month is
// Feb 28 or 29), unlike time.AddDate which normalizes into the next month.
func addMonthsClamped(t time.Time, years, months int) time.Time {
	y, m, d := t.Date()
	total := int(m) - 1 + months
	y += years + total/12
	total %= 12
	if total < 0 {
		total += 12
		y--
	}
	target := time.Month(total + 1)
	if last := daysIn(y, target, t.Location()); d > last {
		d = last
	}
	hh, mm, ss := t.Clock()
	return time.Date(y, target, d, hh, mm, ss, t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}

// cycleEnd is the end of one billing cycle of plan starting at start.
func cycleEnd(plan *types.Plan, start time.Time) time.Time {
	if plan.Yearly() {
		return addMonthsClamped(start, 1, 0)
	}
	return addMonthsClamped(start, 0, 1)
}

// splitMonths expresses months in whole years for yearly plans.
func splitMonths(plan *types.Plan, months int) (years, rest int) {
	if plan.Yearly() {
		return months / 12, months % 12
	}
	return 0, months
}

// extendFrom is the base an extension is counted from: the later of the
// current end and start dates, or now when neither is set.
func extendFrom(sub *models.Subscription, now time.Time) time.Time {
	switch {
	case sub.EndDate != nil && sub.StartDate != nil:
		if sub.EndDate.After(*sub.StartDate) {
			return *sub.EndDate
		}
		return *sub.StartDate
	case sub.EndDate != nil:
		return *sub.EndDate
	case sub.StartDate != nil:
		return *sub.StartDate
	}
	return now
}

func transitionError(sub *models.Subscription, op string) error {
	return apperr.InvalidTransition.Withf("cannot %s subscription in status %s", op, sub.Status)
}
