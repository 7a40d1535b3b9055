// Package access decides who may read subscription-scoped data. Decisions
// always read the transaction they are given, never a cache.
package access

import (
	"errors"
	"fmt"

	"github.com/fatflowers/autoinspect/internal/models"
	"github.com/fatflowers/autoinspect/internal/store"
	"github.com/fatflowers/autoinspect/pkg/apperr"
	"github.com/fatflowers/autoinspect/pkg/identity"
)

// Subscription allows admins, the owning customer and the technician holding
// the active assignment. A replaced or revoked technician keeps only the
// visits they performed, through Visit.
func Subscription(tx store.Tx, caller identity.Identity, sub *models.Subscription) error {
	switch {
	case caller.IsAdmin():
		return nil
	case caller.IsCustomer():
		if sub.CustomerID == caller.UserID {
			return nil
		}
	case caller.IsTechnician():
		ok, err := holdsActive(tx, sub.ID, caller.UserID)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
	return apperr.Forbidden
}

// Visit allows admins, the owning customer, the technician who performed the
// visit and the currently assigned technician.
func Visit(tx store.Tx, caller identity.Identity, v *models.Visit) error {
	switch {
	case caller.IsAdmin():
		return nil
	case caller.IsTechnician():
		if v.TechnicianID == caller.UserID {
			return nil
		}
		ok, err := holdsActive(tx, v.SubscriptionID, caller.UserID)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	case caller.IsCustomer():
		sub, err := tx.GetSubscription(v.SubscriptionID)
		if err != nil {
			return fmt.Errorf("failed to get subscription: %w", err)
		}
		if sub.CustomerID == caller.UserID {
			return nil
		}
	}
	return apperr.Forbidden
}

// SubscriptionByID loads the subscription and applies Subscription.
func SubscriptionByID(tx store.Tx, caller identity.Identity, id string) (*models.Subscription, error) {
	sub, err := tx.GetSubscription(id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound.Withf("subscription %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	if err := Subscription(tx, caller, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

func holdsActive(tx store.Tx, subscriptionID, technicianID string) (bool, error) {
	active, err := tx.GetActiveAssignment(subscriptionID)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get active assignment: %w", err)
	}
	return active.TechnicianID == technicianID, nil
}
