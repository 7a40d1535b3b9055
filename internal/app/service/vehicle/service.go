// Package vehicle keeps the cars covered by a subscription.
package vehicle

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/autoinspect/internal/app/service/access"
	"github.com/fatflowers/autoinspect/internal/app/service/event"
	"github.com/fatflowers/autoinspect/internal/models"
	"github.com/fatflowers/autoinspect/internal/store"
	"github.com/fatflowers/autoinspect/pkg/apperr"
	"github.com/fatflowers/autoinspect/pkg/identity"
	"github.com/fatflowers/autoinspect/pkg/logctx"
	"github.com/fatflowers/autoinspect/pkg/tool"
	"github.com/fatflowers/autoinspect/pkg/types"
)

type Service struct {
	store  store.Store
	events *event.Recorder
	log    *zap.SugaredLogger
}

func NewService(st store.Store, events *event.Recorder, log *zap.SugaredLogger) *Service {
	return &Service{store: st, events: events, log: log}
}

var Module = fx.Options(
	fx.Provide(NewService),
)

type AddRequest struct {
	Make        string `json:"make"`
	Model       string `json:"model"`
	Year        int    `json:"year" binding:"omitempty,min=1900,max=2100"`
	PlateNumber string `json:"plate_number" binding:"required,notblank"`
	VIN         string `json:"vin"`
}

// Add registers a vehicle on a subscription owned by the caller. The number
// of vehicles never exceeds the subscription's vehicle count.
func (s *Service) Add(ctx context.Context, caller identity.Identity, subscriptionID string, req *AddRequest) (*models.Vehicle, error) {
	plate := strings.ToUpper(strings.TrimSpace(req.PlateNumber))
	if plate == "" {
		return nil, apperr.InvalidArgument.Withf("plate_number is required")
	}
	var out *models.Vehicle
	err := s.events.InTx(ctx, caller, func(tx store.Tx, em *event.Emitter) error {
		sub, err := tx.GetSubscription(subscriptionID)
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound.Withf("subscription %s not found", subscriptionID)
		}
		if err != nil {
			return fmt.Errorf("failed to get subscription: %w", err)
		}
		if !caller.IsAdmin() && !(caller.IsCustomer() && sub.CustomerID == caller.UserID) {
			return apperr.Forbidden
		}
		if sub.Status != types.SubscriptionStatusPendingPayment && sub.Status != types.SubscriptionStatusActive {
			return apperr.InvalidTransition.Withf("cannot add vehicles to a %s subscription", sub.Status)
		}
		existing, err := tx.ListVehicles(sub.ID)
		if err != nil {
			return fmt.Errorf("failed to list vehicles: %w", err)
		}
		if len(existing) >= sub.VehicleCount {
			return apperr.VehicleLimitReached.Withf("subscription covers %d vehicles", sub.VehicleCount)
		}
		for _, v := range existing {
			if v.PlateNumber == plate {
				return apperr.InvalidArgument.Withf("vehicle %s is already registered", plate)
			}
		}

		status := types.VehicleStatusPending
		if sub.PaymentConfirmed {
			status = types.VehicleStatusActive
		}
		v := &models.Vehicle{
			ID:             tool.GenerateUUIDV7(),
			SubscriptionID: sub.ID,
			CustomerID:     sub.CustomerID,
			Make:           strings.TrimSpace(req.Make),
			Model:          strings.TrimSpace(req.Model),
			Year:           req.Year,
			PlateNumber:    plate,
			VIN:            strings.ToUpper(strings.TrimSpace(req.VIN)),
			Status:         status,
		}
		if err := tx.CreateVehicle(v); err != nil {
			return fmt.Errorf("failed to create vehicle: %w", err)
		}
		out = v
		return em.Emit(event.Transition{
			EntityType:     types.EntityTypeVehicle,
			EntityID:       v.ID,
			SubscriptionID: sub.ID,
			To:             string(v.Status),
			Detail:         map[string]interface{}{"customer_id": sub.CustomerID, "plate_number": plate},
		})
	})
	if err != nil {
		return nil, err
	}
	logctx.FromCtx(ctx, s.log).Infow("vehicle added", "subscription_id", subscriptionID, "vehicle_id", out.ID)
	return out, nil
}

func (s *Service) List(ctx context.Context, caller identity.Identity, subscriptionID string) ([]*models.Vehicle, error) {
	var out []*models.Vehicle
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		if _, err := access.SubscriptionByID(tx, caller, subscriptionID); err != nil {
			return err
		}
		rows, err := tx.ListVehicles(subscriptionID)
		if err != nil {
			return fmt.Errorf("failed to list vehicles: %w", err)
		}
		out = rows
		return nil
	})
	return out, err
}

// ActivateForSubscriptionTx activates every pending vehicle of a subscription
// as part of payment confirmation.
func (s *Service) ActivateForSubscriptionTx(tx store.Tx, em *event.Emitter, sub *models.Subscription) (int, error) {
	rows, err := tx.ListVehicles(sub.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to list vehicles: %w", err)
	}
	n := 0
	for _, v := range rows {
		if v.Status != types.VehicleStatusPending {
			continue
		}
		v.Status = types.VehicleStatusActive
		if err := tx.UpdateVehicle(v); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return n, apperr.ConcurrentUpdate
			}
			return n, fmt.Errorf("failed to activate vehicle: %w", err)
		}
		if err := em.Emit(event.Transition{
			EntityType:     types.EntityTypeVehicle,
			EntityID:       v.ID,
			SubscriptionID: sub.ID,
			From:           string(types.VehicleStatusPending),
			To:             string(types.VehicleStatusActive),
			Detail:         map[string]interface{}{"customer_id": sub.CustomerID},
		}); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
