package subscription

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/fatflowers/autoinspect/internal/models"
	"github.com/fatflowers/autoinspect/pkg/apperr"
	"github.com/fatflowers/autoinspect/pkg/types"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 9, 30, 0, 0, time.UTC)
}

func TestAddMonthsClamped(t *testing.T) {
	tests := []struct {
		name          string
		from          time.Time
		years, months int
		want          time.Time
	}{
		{"plain month", date(2024, 3, 15), 0, 1, date(2024, 4, 15)},
		{"clamp to leap february", date(2024, 1, 31), 0, 1, date(2024, 2, 29)},
		{"clamp to february", date(2023, 1, 31), 0, 1, date(2023, 2, 28)},
		{"across year end", date(2023, 11, 30), 0, 3, date(2024, 2, 29)},
		{"one year from leap day", date(2024, 2, 29), 1, 0, date(2025, 2, 28)},
		{"years and months", date(2024, 8, 31), 1, 1, date(2025, 9, 30)},
		{"many months", date(2024, 1, 15), 0, 25, date(2026, 2, 15)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, addMonthsClamped(tt.from, tt.years, tt.months))
		})
	}
}

func TestCycleEndAndSplit(t *testing.T) {
	monthly := &types.Plan{ID: "m", BillingCycle: types.BillingCycleMonth}
	yearly := &types.Plan{ID: "y", BillingCycle: types.BillingCycleYear}

	assert.Equal(t, date(2024, 2, 29), cycleEnd(monthly, date(2024, 1, 31)))
	assert.Equal(t, date(2025, 1, 31), cycleEnd(yearly, date(2024, 1, 31)))
	assert.Equal(t, date(2024, 2, 15), cycleEnd(nil, date(2024, 1, 15)))

	y, m := splitMonths(yearly, 14)
	assert.Equal(t, [2]int{1, 2}, [2]int{y, m})
	y, m = splitMonths(monthly, 14)
	assert.Equal(t, [2]int{0, 14}, [2]int{y, m})
}

func TestExtendFrom(t *testing.T) {
	now := date(2024, 6, 1)
	start, end := date(2024, 1, 1), date(2024, 3, 1)
	later := date(2024, 5, 1)

	assert.Equal(t, end, extendFrom(&models.Subscription{StartDate: &start, EndDate: &end}, now))
	assert.Equal(t, later, extendFrom(&models.Subscription{StartDate: &later, EndDate: &end}, now))
	assert.Equal(t, start, extendFrom(&models.Subscription{StartDate: &start}, now))
	assert.Equal(t, now, extendFrom(&models.Subscription{}, now))
}

func TestCheckPayable(t *testing.T) {
	assert.ErrorIs(t, CheckPayable(nil), apperr.NotFound)
	assert.ErrorIs(t, CheckPayable(&models.Subscription{Status: types.SubscriptionStatusPendingPayment}), apperr.SubscriptionNotPayable)
	assert.NoError(t, CheckPayable(&models.Subscription{Status: types.SubscriptionStatusCancelled, PaymentConfirmed: true}))
}
