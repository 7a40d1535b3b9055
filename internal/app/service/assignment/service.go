// Package assignment binds technicians to subscriptions. At most one
// assignment per subscription is active at any time.
package assignment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/autoinspect/internal/app/service/access"
	"github.com/fatflowers/autoinspect/internal/app/service/event"
	"github.com/fatflowers/autoinspect/internal/app/service/subscription"
	"github.com/fatflowers/autoinspect/internal/models"
	"github.com/fatflowers/autoinspect/internal/platform/tracing"
	"github.com/fatflowers/autoinspect/internal/store"
	"github.com/fatflowers/autoinspect/pkg/apperr"
	"github.com/fatflowers/autoinspect/pkg/identity"
	"github.com/fatflowers/autoinspect/pkg/logctx"
	"github.com/fatflowers/autoinspect/pkg/tool"
	"github.com/fatflowers/autoinspect/pkg/types"
)

const (
	assignAttempts = 3
	assignBackoff  = 20 * time.Millisecond
	cacheTTL       = 30 * time.Second
)

type Service struct {
	store  store.Store
	events *event.Recorder
	log    *zap.SugaredLogger
	// active caches the active assignment per subscription id for display
	// reads. Authorization never consults it.
	active *cache.Cache
	now    func() time.Time
}

func NewService(st store.Store, events *event.Recorder, log *zap.SugaredLogger) *Service {
	return &Service{
		store:  st,
		events: events,
		log:    log,
		active: cache.New(cacheTTL, 2*cacheTTL),
		now:    time.Now,
	}
}

var Module = fx.Options(
	fx.Provide(NewService),
)

func retryable(err error) bool {
	return errors.Is(err, apperr.ConcurrentUpdate)
}

// Assign makes technicianID the only active technician of the subscription,
// ending any previous assignment. Concurrent assigners resolve as last writer
// wins; a lost race is retried rather than dropped.
func (s *Service) Assign(ctx context.Context, caller identity.Identity, subscriptionID, technicianID, notes string) (*models.Assignment, error) {
	ctx, span := tracing.Start(ctx, "assignment.Assign")
	defer span.End()

	if !caller.IsAdmin() {
		return nil, apperr.Forbidden
	}
	if technicianID == "" {
		return nil, apperr.InvalidArgument.Withf("technician_id is required")
	}

	var out *models.Assignment
	err := tool.Retry(ctx, assignAttempts, assignBackoff, retryable, func() error {
		return s.events.InTx(ctx, caller, func(tx store.Tx, em *event.Emitter) error {
			sub, err := subscription.Load(tx, subscriptionID)
			if err != nil {
				return err
			}
			if err := subscription.CheckPayable(sub); err != nil {
				return err
			}
			now := s.now().UTC()

			var previous string
			prior, err := tx.GetActiveAssignment(sub.ID)
			switch {
			case errors.Is(err, store.ErrNotFound):
			case err != nil:
				return fmt.Errorf("failed to get active assignment: %w", err)
			default:
				previous = prior.TechnicianID
				if err := s.end(tx, em, sub, prior, caller.UserID, now, "superseded"); err != nil {
					return err
				}
			}

			a := &models.Assignment{
				ID:             tool.GenerateUUIDV7(),
				SubscriptionID: sub.ID,
				TechnicianID:   technicianID,
				AssignedBy:     caller.UserID,
				Notes:          notes,
				Status:         types.AssignmentStatusActive,
				AssignedAt:     now,
			}
			if err := tx.CreateAssignment(a); err != nil {
				if errors.Is(err, store.ErrDuplicate) {
					return apperr.ConcurrentUpdate
				}
				return fmt.Errorf("failed to create assignment: %w", err)
			}
			out = a
			return em.Emit(event.Transition{
				EntityType:     types.EntityTypeAssignment,
				EntityID:       a.ID,
				SubscriptionID: sub.ID,
				To:             string(types.AssignmentStatusActive),
				Detail: map[string]interface{}{
					"customer_id":            sub.CustomerID,
					"technician_id":          technicianID,
					"previous_technician_id": previous,
				},
			})
		})
	})
	s.active.Delete(subscriptionID)
	if err != nil {
		return nil, err
	}
	logctx.FromCtx(ctx, s.log).Infow("technician assigned", "subscription_id", subscriptionID, "technician_id", technicianID, "assignment_id", out.ID)
	return out, nil
}

// Revoke ends the active assignment without naming a successor.
func (s *Service) Revoke(ctx context.Context, caller identity.Identity, subscriptionID string) (*models.Assignment, error) {
	if !caller.IsAdmin() {
		return nil, apperr.Forbidden
	}
	var out *models.Assignment
	err := s.events.InTx(ctx, caller, func(tx store.Tx, em *event.Emitter) error {
		sub, err := subscription.Load(tx, subscriptionID)
		if err != nil {
			return err
		}
		a, err := tx.GetActiveAssignment(sub.ID)
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NoActiveAssignment.Withf("subscription %s has no active assignment", sub.ID)
		}
		if err != nil {
			return fmt.Errorf("failed to get active assignment: %w", err)
		}
		out = a
		return s.end(tx, em, sub, a, caller.UserID, s.now().UTC(), "revoked")
	})
	s.active.Delete(subscriptionID)
	return out, err
}

func (s *Service) end(tx store.Tx, em *event.Emitter, sub *models.Subscription, a *models.Assignment, by string, at time.Time, why string) error {
	a.Status = types.AssignmentStatusEnded
	a.EndedAt = &at
	a.EndedBy = by
	if err := tx.UpdateAssignment(a); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return apperr.ConcurrentUpdate
		}
		return fmt.Errorf("failed to end assignment: %w", err)
	}
	return em.Emit(event.Transition{
		EntityType:     types.EntityTypeAssignment,
		EntityID:       a.ID,
		SubscriptionID: sub.ID,
		From:           string(types.AssignmentStatusActive),
		To:             string(types.AssignmentStatusEnded),
		Detail: map[string]interface{}{
			"customer_id":   sub.CustomerID,
			"technician_id": a.TechnicianID,
			"why":           why,
		},
	})
}

// GetActive returns the active assignment or NoActiveAssignment.
func (s *Service) GetActive(ctx context.Context, caller identity.Identity, subscriptionID string) (*models.Assignment, error) {
	var out *models.Assignment
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		if _, err := access.SubscriptionByID(tx, caller, subscriptionID); err != nil {
			return err
		}
		a, err := activeOf(tx, subscriptionID)
		out = a
		return err
	})
	return out, err
}

// GetActiveCached is GetActive for display paths; the lookup may be up to
// cacheTTL stale unless this instance performed the change.
func (s *Service) GetActiveCached(ctx context.Context, caller identity.Identity, subscriptionID string) (*models.Assignment, error) {
	var out *models.Assignment
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		if _, err := access.SubscriptionByID(tx, caller, subscriptionID); err != nil {
			return err
		}
		if x, found := s.active.Get(subscriptionID); found {
			cp := *x.(*models.Assignment)
			out = &cp
			return nil
		}
		a, err := activeOf(tx, subscriptionID)
		if err != nil {
			return err
		}
		cp := *a
		s.active.Set(subscriptionID, &cp, cache.DefaultExpiration)
		out = a
		return nil
	})
	return out, err
}

func activeOf(tx store.Tx, subscriptionID string) (*models.Assignment, error) {
	a, err := tx.GetActiveAssignment(subscriptionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NoActiveAssignment.Withf("subscription %s has no active assignment", subscriptionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active assignment: %w", err)
	}
	return a, nil
}

// HoldsActiveTx returns the active assignment of the subscription if
// technicianID holds it, and NoActiveAssignment otherwise.
func HoldsActiveTx(tx store.Tx, subscriptionID, technicianID string) (*models.Assignment, error) {
	a, err := activeOf(tx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if a.TechnicianID != technicianID {
		return nil, apperr.NoActiveAssignment
	}
	return a, nil
}

// History lists every assignment of a subscription, newest first.
func (s *Service) History(ctx context.Context, caller identity.Identity, subscriptionID string) ([]*models.Assignment, error) {
	var out []*models.Assignment
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		if _, err := access.SubscriptionByID(tx, caller, subscriptionID); err != nil {
			return err
		}
		rows, err := tx.ListAssignments(store.AssignmentQuery{SubscriptionID: subscriptionID})
		if err != nil {
			return fmt.Errorf("failed to list assignments: %w", err)
		}
		out = rows
		return nil
	})
	return out, err
}

// ListForTechnician lists a technician's assignments. Technicians only see their own.
func (s *Service) ListForTechnician(ctx context.Context, caller identity.Identity, technicianID string, activeOnly bool) ([]*models.Assignment, error) {
	switch {
	case caller.IsAdmin():
		if technicianID == "" {
			return nil, apperr.InvalidArgument.Withf("technician_id is required")
		}
	case caller.IsTechnician():
		technicianID = caller.UserID
	default:
		return nil, apperr.Forbidden
	}
	q := store.AssignmentQuery{TechnicianID: technicianID}
	if activeOnly {
		q.Status = types.AssignmentStatusActive
	}
	var out []*models.Assignment
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		rows, err := tx.ListAssignments(q)
		if err != nil {
			return fmt.Errorf("failed to list assignments: %w", err)
		}
		out = rows
		return nil
	})
	return out, err
}
