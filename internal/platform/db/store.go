package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/autoinspect/internal/models"
	"github.com/fatflowers/autoinspect/internal/store"
	"github.com/fatflowers/autoinspect/pkg/types"
)

// GormStore implements store.Store on postgres. Conditional updates compare
// the version column and bump it in the same statement.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(gtx *gorm.DB) error {
		return fn(&gormTx{db: gtx})
	})
}

type gormTx struct {
	db *gorm.DB
}

// translate maps driver errors onto the store sentinels.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return store.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return store.ErrDuplicate
	}
	return err
}

// filtersAnd is a helper to combine multiple CommonFilter into a single clause.Expression
type filtersAnd struct{ filters []*types.CommonFilter }

func (w filtersAnd) Build(builder clause.Builder) {
	if len(w.filters) == 0 {
		builder.WriteString("1=1")
		return
	}
	exprs := make([]clause.Expression, 0, len(w.filters))
	for _, f := range w.filters {
		exprs = append(exprs, f)
	}
	clause.And(exprs...).Build(builder)
}

// orderBy returns the ordering for a scan, newest first unless asked otherwise.
func orderBy(req *store.ScanRequest) clause.OrderBy {
	col, desc := req.SortBy, req.SortOrder != "asc"
	if col == "" {
		col, desc = "created_at", true
	}
	return clause.OrderBy{Columns: []clause.OrderByColumn{
		{Column: clause.Column{Name: col}, Desc: desc},
		{Column: clause.Column{Name: "id"}, Desc: desc},
	}}
}

func scanRows[T any](db *gorm.DB, req *store.ScanRequest) ([]*T, int64, error) {
	if req == nil {
		req = &store.ScanRequest{}
	}
	req.Normalize()

	q := db.Model(new(T))
	if len(req.Filters) > 0 {
		q = q.Where(clause.Where{Exprs: []clause.Expression{filtersAnd{filters: req.Filters}}})
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count rows: %w", err)
	}
	var rows []*T
	q = q.Limit(req.Size)
	if req.From > 0 {
		q = q.Offset(req.From)
	}
	if err := q.Order(orderBy(req)).Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list rows: %w", err)
	}
	return rows, total, nil
}

// casUpdate writes every column of row when the stored version equals *version.
// On success *version is advanced; on failure it is left untouched.
func casUpdate[T any](db *gorm.DB, row *T, id string, version *int64) error {
	prev := *version
	*version = prev + 1
	res := db.Model(row).Where("version = ?", prev).Select("*").Omit("created_at").Updates(row)
	if res.Error != nil {
		*version = prev
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		*version = prev
		var n int64
		if err := db.Model(new(T)).Where("id = ?", id).Count(&n).Error; err == nil && n == 0 {
			return store.ErrNotFound
		}
		return store.ErrConflict
	}
	return nil
}

// Subscriptions

func (t *gormTx) CreateSubscription(s *models.Subscription) error {
	return translate(t.db.Create(s).Error)
}

func (t *gormTx) GetSubscription(id string) (*models.Subscription, error) {
	var s models.Subscription
	if err := t.db.Where("id = ?", id).Take(&s).Error; err != nil {
		return nil, translate(err)
	}
	return &s, nil
}

func (t *gormTx) ListSubscriptions(q store.SubscriptionQuery) ([]*models.Subscription, error) {
	db := t.db.Model(&models.Subscription{})
	if q.CustomerID != "" {
		db = db.Where("customer_id = ?", q.CustomerID)
	}
	if len(q.Statuses) > 0 {
		db = db.Where("status IN ?", q.Statuses)
	}
	if q.EndBefore != nil {
		db = db.Where("end_date < ?", *q.EndBefore)
	}
	if q.Limit > 0 {
		db = db.Limit(q.Limit)
	}
	var rows []*models.Subscription
	if err := db.Order("created_at DESC, id DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	return rows, nil
}

func (t *gormTx) UpdateSubscription(s *models.Subscription) error {
	return casUpdate(t.db, s, s.ID, &s.Version)
}

func (t *gormTx) ScanSubscriptions(req *store.ScanRequest) ([]*models.Subscription, int64, error) {
	return scanRows[models.Subscription](t.db, req)
}

func (t *gormTx) CreateSubscriptionLog(l *models.SubscriptionLog) error {
	return translate(t.db.Create(l).Error)
}

// Vehicles

func (t *gormTx) CreateVehicle(v *models.Vehicle) error {
	return translate(t.db.Create(v).Error)
}

func (t *gormTx) ListVehicles(subscriptionID string) ([]*models.Vehicle, error) {
	var rows []*models.Vehicle
	if err := t.db.Where("subscription_id = ?", subscriptionID).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list vehicles: %w", err)
	}
	return rows, nil
}

func (t *gormTx) UpdateVehicle(v *models.Vehicle) error {
	return casUpdate(t.db, v, v.ID, &v.Version)
}

// Assignments

func (t *gormTx) CreateAssignment(a *models.Assignment) error {
	return translate(t.db.Create(a).Error)
}

func (t *gormTx) GetActiveAssignment(subscriptionID string) (*models.Assignment, error) {
	var a models.Assignment
	err := t.db.Where("subscription_id = ? AND status = ?", subscriptionID, types.AssignmentStatusActive).Take(&a).Error
	if err != nil {
		return nil, translate(err)
	}
	return &a, nil
}

func (t *gormTx) ListAssignments(q store.AssignmentQuery) ([]*models.Assignment, error) {
	db := t.db.Model(&models.Assignment{})
	if q.SubscriptionID != "" {
		db = db.Where("subscription_id = ?", q.SubscriptionID)
	}
	if q.TechnicianID != "" {
		db = db.Where("technician_id = ?", q.TechnicianID)
	}
	if q.Status != "" {
		db = db.Where("status = ?", q.Status)
	}
	var rows []*models.Assignment
	if err := db.Order("assigned_at DESC, id DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	return rows, nil
}

func (t *gormTx) UpdateAssignment(a *models.Assignment) error {
	return casUpdate(t.db, a, a.ID, &a.Version)
}

// Visits

func (t *gormTx) CreateVisit(v *models.Visit) error {
	return translate(t.db.Create(v).Error)
}

func (t *gormTx) GetVisit(id string) (*models.Visit, error) {
	var v models.Visit
	if err := t.db.Where("id = ?", id).Take(&v).Error; err != nil {
		return nil, translate(err)
	}
	return &v, nil
}

func (t *gormTx) ListVisits(q store.VisitQuery) ([]*models.Visit, error) {
	db := t.db.Model(&models.Visit{})
	if q.SubscriptionID != "" {
		db = db.Where("subscription_id = ?", q.SubscriptionID)
	}
	if q.TechnicianID != "" {
		db = db.Where("technician_id = ?", q.TechnicianID)
	}
	if q.Status != "" {
		db = db.Where("status = ?", q.Status)
	}
	var rows []*models.Visit
	if err := db.Order("subscription_id, visit_number").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list visits: %w", err)
	}
	return rows, nil
}

func (t *gormTx) MaxVisitNumber(subscriptionID string) (int, error) {
	var n int
	err := t.db.Model(&models.Visit{}).
		Where("subscription_id = ?", subscriptionID).
		Select("COALESCE(MAX(visit_number), 0)").
		Scan(&n).Error
	if err != nil {
		return 0, fmt.Errorf("failed to read visit number: %w", err)
	}
	return n, nil
}

func (t *gormTx) UpdateVisit(v *models.Visit) error {
	return casUpdate(t.db, v, v.ID, &v.Version)
}

// Payments and invoices

func (t *gormTx) CreatePaymentRecord(p *models.PaymentRecord) error {
	return translate(t.db.Create(p).Error)
}

func (t *gormTx) FindPaymentRecord(eventKey string) (*models.PaymentRecord, error) {
	var p models.PaymentRecord
	if err := t.db.Where("event_key = ?", eventKey).Take(&p).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (t *gormTx) ListPaymentRecords(subscriptionID string) ([]*models.PaymentRecord, error) {
	var rows []*models.PaymentRecord
	if err := t.db.Where("subscription_id = ?", subscriptionID).Order("paid_at").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list payment records: %w", err)
	}
	return rows, nil
}

func (t *gormTx) CreateInvoice(i *models.Invoice) error {
	return translate(t.db.Create(i).Error)
}

func (t *gormTx) FindInvoice(eventKey string) (*models.Invoice, error) {
	var i models.Invoice
	if err := t.db.Where("event_key = ?", eventKey).Take(&i).Error; err != nil {
		return nil, translate(err)
	}
	return &i, nil
}

func (t *gormTx) ListInvoices(subscriptionID string) ([]*models.Invoice, error) {
	var rows []*models.Invoice
	if err := t.db.Where("subscription_id = ?", subscriptionID).Order("invoice_number").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	return rows, nil
}

func (t *gormTx) ScanInvoices(req *store.ScanRequest) ([]*models.Invoice, int64, error) {
	return scanRows[models.Invoice](t.db, req)
}

func (t *gormTx) NextInvoiceSequence(period string) (int64, error) {
	var n int64
	err := t.db.Raw(`INSERT INTO invoice_sequence (period, last_value, updated_at) VALUES (?, 1, ?)
ON CONFLICT (period) DO UPDATE SET last_value = invoice_sequence.last_value + 1, updated_at = EXCLUDED.updated_at
RETURNING last_value`, period, time.Now()).Scan(&n).Error
	if err != nil {
		return 0, fmt.Errorf("failed to allocate invoice sequence: %w", err)
	}
	return n, nil
}

// Events

func (t *gormTx) AppendEvent(e *models.Event) error {
	// Serialize appends per entity for the rest of the transaction.
	if err := t.db.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", string(e.EntityType)+":"+e.EntityID).Error; err != nil {
		return fmt.Errorf("failed to lock event stream: %w", err)
	}
	var seq int64
	err := t.db.Model(&models.Event{}).
		Where("entity_type = ? AND entity_id = ?", e.EntityType, e.EntityID).
		Select("COALESCE(MAX(seq), 0)").
		Scan(&seq).Error
	if err != nil {
		return fmt.Errorf("failed to read event seq: %w", err)
	}
	e.Seq = seq + 1
	return translate(t.db.Create(e).Error)
}

func (t *gormTx) ListEvents(q store.EventQuery) ([]*models.Event, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	db := t.db.Model(&models.Event{})
	if q.EntityType != "" {
		db = db.Where("entity_type = ?", q.EntityType)
	}
	if q.EntityID != "" {
		db = db.Where("entity_id = ? AND seq > ?", q.EntityID, q.AfterSeq)
	}
	if q.SubscriptionID != "" {
		db = db.Where("subscription_id = ?", q.SubscriptionID)
	}
	if q.ActorID != "" {
		db = db.Where("actor_id = ?", q.ActorID)
	}
	if q.Since != nil {
		db = db.Where("occurred_at > ?", *q.Since)
	}
	var rows []*models.Event
	if err := db.Order("occurred_at, seq").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return rows, nil
}

func (t *gormTx) ListUndispatchedEvents(before time.Time, limit int) ([]*models.Event, error) {
	db := t.db.Where("dispatched_at IS NULL AND occurred_at < ?", before).Order("occurred_at, seq")
	if limit > 0 {
		db = db.Limit(limit)
	}
	var rows []*models.Event
	if err := db.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list undispatched events: %w", err)
	}
	return rows, nil
}

func (t *gormTx) MarkEventsDispatched(ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	err := t.db.Model(&models.Event{}).
		Where("id IN ? AND dispatched_at IS NULL", ids).
		Update("dispatched_at", at).Error
	if err != nil {
		return fmt.Errorf("failed to mark events dispatched: %w", err)
	}
	return nil
}

// Notifications

// CreateNotification skips the insert on conflict so the transaction stays usable.
func (t *gormTx) CreateNotification(n *models.Notification) error {
	res := t.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}, {Name: "recipient_id"}},
		DoNothing: true,
	}).Create(n)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrDuplicate
	}
	return nil
}

func (t *gormTx) ListNotifications(q store.NotificationQuery) ([]*models.Notification, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}
	db := t.db.Model(&models.Notification{}).Where("recipient_id IN ?", q.RecipientIDs)
	if q.UnreadOnly {
		db = db.Where("read_at IS NULL")
	}
	var rows []*models.Notification
	if err := db.Order("created_at DESC, id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return rows, nil
}

func (t *gormTx) MarkNotificationRead(id string, recipientIDs []string, at time.Time) (*models.Notification, error) {
	err := t.db.Model(&models.Notification{}).
		Where("id = ? AND recipient_id IN ? AND read_at IS NULL", id, recipientIDs).
		Update("read_at", at).Error
	if err != nil {
		return nil, fmt.Errorf("failed to mark notification read: %w", err)
	}
	var n models.Notification
	if err := t.db.Where("id = ? AND recipient_id IN ?", id, recipientIDs).First(&n).Error; err != nil {
		return nil, translate(err)
	}
	return &n, nil
}

// Stats

type statusCount struct {
	Status string
	N      int64
}

func (t *gormTx) countByStatus(model any) ([]statusCount, error) {
	var rows []statusCount
	err := t.db.Model(model).Select("status, COUNT(*) AS n").Group("status").Scan(&rows).Error
	return rows, err
}

func (t *gormTx) CountSubscriptionsByStatus() (map[types.SubscriptionStatus]int64, error) {
	rows, err := t.countByStatus(&models.Subscription{})
	if err != nil {
		return nil, fmt.Errorf("failed to count subscriptions: %w", err)
	}
	out := make(map[types.SubscriptionStatus]int64, len(rows))
	for _, r := range rows {
		out[types.SubscriptionStatus(r.Status)] = r.N
	}
	return out, nil
}

func (t *gormTx) CountVisitsByStatus() (map[types.VisitStatus]int64, error) {
	rows, err := t.countByStatus(&models.Visit{})
	if err != nil {
		return nil, fmt.Errorf("failed to count visits: %w", err)
	}
	out := make(map[types.VisitStatus]int64, len(rows))
	for _, r := range rows {
		out[types.VisitStatus(r.Status)] = r.N
	}
	return out, nil
}

func (t *gormTx) SumPayments(since time.Time) (map[string]int64, error) {
	var rows []struct {
		Currency string
		Total    int64
	}
	err := t.db.Model(&models.PaymentRecord{}).
		Select("currency, COALESCE(SUM(amount), 0) AS total").
		Where("paid_at >= ?", since).
		Group("currency").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to sum payments: %w", err)
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Currency] = r.Total
	}
	return out, nil
}

var _ store.Store = (*GormStore)(nil)
var _ store.Tx = (*gormTx)(nil)
