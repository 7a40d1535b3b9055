// Package store defines the persistence port used by the services. Every
// mutable row carries a version; updates are compare-and-set on it.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fatflowers/autoinspect/internal/models"
	"github.com/fatflowers/autoinspect/pkg/types"
)

var (
	ErrNotFound  = errors.New("store: record not found")
	ErrConflict  = errors.New("store: version conflict")
	ErrDuplicate = errors.New("store: duplicate key")
)

// Store opens transactions. fn's error rolls back every write made through tx.
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is bound to the context InTx was called with.
type Tx interface {
	SubscriptionRepo
	VehicleRepo
	AssignmentRepo
	VisitRepo
	PaymentRepo
	EventRepo
	NotificationRepo
	StatsRepo
}

type ScanRequest struct {
	Filters   []*types.CommonFilter `json:"filters"`
	From      int                   `json:"from"`
	Size      int                   `json:"size"`
	SortBy    string                `json:"sort_by"`
	SortOrder string                `json:"sort_order"`
}

// Normalize applies paging defaults.
func (r *ScanRequest) Normalize() {
	if r.Size <= 0 {
		r.Size = 10
	}
	if r.Size > 500 {
		r.Size = 500
	}
	if r.From < 0 {
		r.From = 0
	}
}

// Validate checks every filter and the sort column against allowed.
func (r *ScanRequest) Validate(allowed types.Columns) error {
	for _, f := range r.Filters {
		if err := f.Validate(allowed); err != nil {
			return err
		}
	}
	if r.SortBy != "" && !allowed[r.SortBy] {
		return fmt.Errorf("cannot sort by %q", r.SortBy)
	}
	switch r.SortOrder {
	case "", "asc", "desc":
	default:
		return fmt.Errorf("sort_order must be asc or desc")
	}
	return nil
}

type SubscriptionQuery struct {
	CustomerID string
	Statuses   []types.SubscriptionStatus
	// EndBefore selects rows whose end_date is strictly before it.
	EndBefore *time.Time
	Limit     int
}

type SubscriptionRepo interface {
	// CreateSubscription fails with ErrDuplicate when the customer already has a pending_payment subscription.
	CreateSubscription(s *models.Subscription) error
	GetSubscription(id string) (*models.Subscription, error)
	ListSubscriptions(q SubscriptionQuery) ([]*models.Subscription, error)
	// UpdateSubscription writes s if the stored version equals s.Version and bumps s.Version.
	UpdateSubscription(s *models.Subscription) error
	ScanSubscriptions(req *ScanRequest) ([]*models.Subscription, int64, error)
	CreateSubscriptionLog(l *models.SubscriptionLog) error
}

type VehicleRepo interface {
	CreateVehicle(v *models.Vehicle) error
	ListVehicles(subscriptionID string) ([]*models.Vehicle, error)
	UpdateVehicle(v *models.Vehicle) error
}

type AssignmentQuery struct {
	SubscriptionID string
	TechnicianID   string
	Status         types.AssignmentStatus
}

type AssignmentRepo interface {
	// CreateAssignment fails with ErrDuplicate if an active assignment already exists for the subscription.
	CreateAssignment(a *models.Assignment) error
	GetActiveAssignment(subscriptionID string) (*models.Assignment, error)
	ListAssignments(q AssignmentQuery) ([]*models.Assignment, error)
	UpdateAssignment(a *models.Assignment) error
}

type VisitQuery struct {
	SubscriptionID string
	TechnicianID   string
	Status         types.VisitStatus
}

type VisitRepo interface {
	// CreateVisit fails with ErrDuplicate on a reused visit number or a second in_progress visit.
	CreateVisit(v *models.Visit) error
	GetVisit(id string) (*models.Visit, error)
	ListVisits(q VisitQuery) ([]*models.Visit, error)
	MaxVisitNumber(subscriptionID string) (int, error)
	UpdateVisit(v *models.Visit) error
}

type PaymentRepo interface {
	CreatePaymentRecord(p *models.PaymentRecord) error
	FindPaymentRecord(eventKey string) (*models.PaymentRecord, error)
	ListPaymentRecords(subscriptionID string) ([]*models.PaymentRecord, error)
	CreateInvoice(i *models.Invoice) error
	FindInvoice(eventKey string) (*models.Invoice, error)
	ListInvoices(subscriptionID string) ([]*models.Invoice, error)
	ScanInvoices(req *ScanRequest) ([]*models.Invoice, int64, error)
	// NextInvoiceSequence increments and returns the counter for period.
	NextInvoiceSequence(period string) (int64, error)
}

type EventQuery struct {
	EntityType     types.EntityType
	EntityID       string
	SubscriptionID string
	ActorID        string
	// AfterSeq only applies together with EntityID.
	AfterSeq int64
	Since    *time.Time
	Limit    int
}

type EventRepo interface {
	// AppendEvent assigns e.Seq as the next sequence number of its entity.
	AppendEvent(e *models.Event) error
	ListEvents(q EventQuery) ([]*models.Event, error)
	ListUndispatchedEvents(before time.Time, limit int) ([]*models.Event, error)
	MarkEventsDispatched(ids []string, at time.Time) error
}

type NotificationQuery struct {
	// RecipientIDs matches any of the given recipients.
	RecipientIDs []string
	UnreadOnly   bool
	Limit        int
}

type NotificationRepo interface {
	// CreateNotification fails with ErrDuplicate when the event was already
	// delivered to the recipient.
	CreateNotification(n *models.Notification) error
	ListNotifications(q NotificationQuery) ([]*models.Notification, error)
	// MarkNotificationRead sets read_at once; a read notification is left as is.
	MarkNotificationRead(id string, recipientIDs []string, at time.Time) (*models.Notification, error)
}

type StatsRepo interface {
	CountSubscriptionsByStatus() (map[types.SubscriptionStatus]int64, error)
	CountVisitsByStatus() (map[types.VisitStatus]int64, error)
	// SumPayments totals payment amounts per currency since the given time.
	SumPayments(since time.Time) (map[string]int64, error)
}
