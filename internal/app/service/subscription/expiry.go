package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/fx"
	"gorm.io/datatypes"

	"github.com/fatflowers/autoinspect/internal/app/service/event"
	"github.com/fatflowers/autoinspect/internal/store"
	"github.com/fatflowers/autoinspect/pkg/apperr"
	"github.com/fatflowers/autoinspect/pkg/identity"
	"github.com/fatflowers/autoinspect/pkg/metrics"
	"github.com/fatflowers/autoinspect/pkg/types"
)

const expiryBatch = 200

// ExpireDue moves every active subscription whose end date passed before now
// to expired and returns how many it expired. Subscriptions with auto-renew on
// roll into the next billing cycle instead. Each subscription is handled in its
// own transaction so one bad row does not block the rest.
func (s *Service) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	start := time.Now()
	defer metrics.ObserveSince("subscription", "expire_due", start)

	var due []string
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		rows, err := tx.ListSubscriptions(store.SubscriptionQuery{
			Statuses:  []types.SubscriptionStatus{types.SubscriptionStatusActive},
			EndBefore: &now,
			Limit:     expiryBatch,
		})
		if err != nil {
			return fmt.Errorf("failed to list due subscriptions: %w", err)
		}
		for _, r := range rows {
			due = append(due, r.ID)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	expired, renewed := 0, 0
	for _, id := range due {
		var didRenew bool
		err := s.events.InTx(ctx, identity.System, func(tx store.Tx, em *event.Emitter) error {
			sub, err := Load(tx, id)
			if err != nil {
				return err
			}
			// Re-check: an admin may have extended it since the listing.
			if sub.Status != types.SubscriptionStatusActive || sub.EndDate == nil || !sub.EndDate.Before(now) {
				return errSkip
			}
			before := sub.Clone()
			if plan := s.cfg.GetPlanByID(sub.PlanID); sub.AutoRenew && plan != nil {
				start, end := nextCycle(plan, *sub.EndDate, now)
				sub.StartDate, sub.EndDate = &start, &end
				didRenew = true
				return s.save(tx, em, before, sub, types.SubscriptionChangeReasonRenew, datatypes.JSONMap{
					"auto_renew":        true,
					"previous_end_date": before.EndDate.Format(time.RFC3339),
				})
			}
			sub.Status = types.SubscriptionStatusExpired
			return s.save(tx, em, before, sub, types.SubscriptionChangeReasonExpire, datatypes.JSONMap{"auto_renew": sub.AutoRenew})
		})
		switch {
		case err == nil && didRenew:
			renewed++
		case err == nil:
			expired++
		case errors.Is(err, errSkip):
		case errors.Is(err, apperr.ConcurrentUpdate):
			s.log.Infow("skip expiring subscription modified concurrently", "subscription_id", id)
		default:
			s.log.Errorw("failed to expire subscription", "subscription_id", id, "err", err)
		}
	}
	if renewed > 0 {
		s.log.Infow("subscriptions auto-renewed", "count", renewed)
	}
	return expired, nil
}

var errSkip = errors.New("skip")

// nextCycle returns the first billing cycle that starts at or after lastEnd
// and is still running at now. Cycles missed while the job was down are
// skipped rather than stacked.
func nextCycle(plan *types.Plan, lastEnd, now time.Time) (time.Time, time.Time) {
	start := lastEnd
	end := cycleEnd(plan, start)
	for !end.After(now) {
		start = end
		end = cycleEnd(plan, start)
	}
	return start, end
}

func (s *Service) runExpiry(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.ExpireDue(ctx, s.now().UTC())
			if err != nil {
				s.log.Errorw("expiry run failed", "err", err)
				continue
			}
			if n > 0 {
				s.log.Infow("subscriptions expired", "count", n)
			}
		}
	}
}

func registerExpiry(lc fx.Lifecycle, s *Service) {
	interval := s.cfg.Expiry.Interval
	if interval <= 0 {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go s.runExpiry(ctx, interval)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}
