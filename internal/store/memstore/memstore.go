// Package memstore is an in-process store.Store. A single mutex serializes
// transactions and a rollback restores the snapshot taken at begin.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/fatflowers/autoinspect/internal/models"
	"github.com/fatflowers/autoinspect/internal/store"
	"github.com/fatflowers/autoinspect/pkg/types"
)

type dataset struct {
	subscriptions map[string]models.Subscription
	subLogs       []models.SubscriptionLog
	vehicles      map[string]models.Vehicle
	assignments   map[string]models.Assignment
	visits        map[string]models.Visit
	payments      map[string]models.PaymentRecord
	invoices      map[string]models.Invoice
	sequences     map[string]int64
	events        []models.Event
	notifications []models.Notification
}

func newDataset() *dataset {
	return &dataset{
		subscriptions: map[string]models.Subscription{},
		vehicles:      map[string]models.Vehicle{},
		assignments:   map[string]models.Assignment{},
		visits:        map[string]models.Visit{},
		payments:      map[string]models.PaymentRecord{},
		invoices:      map[string]models.Invoice{},
		sequences:     map[string]int64{},
	}
}

func (d *dataset) clone() *dataset {
	return &dataset{
		subscriptions: cloneMap(d.subscriptions),
		subLogs:       append([]models.SubscriptionLog(nil), d.subLogs...),
		vehicles:      cloneMap(d.vehicles),
		assignments:   cloneMap(d.assignments),
		visits:        cloneMap(d.visits),
		payments:      cloneMap(d.payments),
		invoices:      cloneMap(d.invoices),
		sequences:     cloneMap(d.sequences),
		events:        append([]models.Event(nil), d.events...),
		notifications: append([]models.Notification(nil), d.notifications...),
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

type Store struct {
	mu   sync.Mutex
	data *dataset
	now  func() time.Time
}

func New() *Store {
	return &Store{data: newDataset(), now: time.Now}
}

func (s *Store) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	snapshot := s.data.clone()
	if err := fn(&tx{d: s.data, now: s.now}); err != nil {
		s.data = snapshot
		return err
	}
	return nil
}

type tx struct {
	d   *dataset
	now func() time.Time
}

// Subscriptions

func (t *tx) CreateSubscription(s *models.Subscription) error {
	if _, ok := t.d.subscriptions[s.ID]; ok {
		return store.ErrDuplicate
	}
	if s.Status == types.SubscriptionStatusPendingPayment {
		for _, cur := range t.d.subscriptions {
			if cur.CustomerID == s.CustomerID && cur.Status == types.SubscriptionStatusPendingPayment {
				return store.ErrDuplicate
			}
		}
	}
	now := t.now()
	s.CreatedAt, s.UpdatedAt = now, now
	t.d.subscriptions[s.ID] = *s.Clone()
	return nil
}

func (t *tx) GetSubscription(id string) (*models.Subscription, error) {
	cur, ok := t.d.subscriptions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cur.Clone(), nil
}

func (t *tx) ListSubscriptions(q store.SubscriptionQuery) ([]*models.Subscription, error) {
	var out []*models.Subscription
	for _, cur := range t.d.subscriptions {
		if q.CustomerID != "" && cur.CustomerID != q.CustomerID {
			continue
		}
		if len(q.Statuses) > 0 && !containsStatus(q.Statuses, cur.Status) {
			continue
		}
		if q.EndBefore != nil && (cur.EndDate == nil || !cur.EndDate.Before(*q.EndBefore)) {
			continue
		}
		out = append(out, cur.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func containsStatus(list []types.SubscriptionStatus, s types.SubscriptionStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (t *tx) UpdateSubscription(s *models.Subscription) error {
	cur, ok := t.d.subscriptions[s.ID]
	if !ok {
		return store.ErrNotFound
	}
	if cur.Version != s.Version {
		return store.ErrConflict
	}
	s.Version++
	s.UpdatedAt = t.now()
	t.d.subscriptions[s.ID] = *s.Clone()
	return nil
}

func (t *tx) ScanSubscriptions(req *store.ScanRequest) ([]*models.Subscription, int64, error) {
	rows := make([]models.Subscription, 0, len(t.d.subscriptions))
	for _, cur := range t.d.subscriptions {
		rows = append(rows, cur)
	}
	page, total, err := scan(rows, req)
	if err != nil {
		return nil, 0, err
	}
	out := make([]*models.Subscription, len(page))
	for i := range page {
		out[i] = page[i].Clone()
	}
	return out, total, nil
}

func (t *tx) CreateSubscriptionLog(l *models.SubscriptionLog) error {
	l.CreatedAt = t.now()
	t.d.subLogs = append(t.d.subLogs, *l)
	return nil
}

// SubscriptionLogs returns the audit trail of a subscription, oldest first.
func (s *Store) SubscriptionLogs(subscriptionID string) []models.SubscriptionLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.SubscriptionLog
	for _, l := range s.data.subLogs {
		if l.SubscriptionID == subscriptionID {
			out = append(out, l)
		}
	}
	return out
}

// Vehicles

func (t *tx) CreateVehicle(v *models.Vehicle) error {
	if _, ok := t.d.vehicles[v.ID]; ok {
		return store.ErrDuplicate
	}
	now := t.now()
	v.CreatedAt, v.UpdatedAt = now, now
	t.d.vehicles[v.ID] = *v
	return nil
}

func (t *tx) ListVehicles(subscriptionID string) ([]*models.Vehicle, error) {
	var out []*models.Vehicle
	for _, cur := range t.d.vehicles {
		if cur.SubscriptionID == subscriptionID {
			cp := cur
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *tx) UpdateVehicle(v *models.Vehicle) error {
	cur, ok := t.d.vehicles[v.ID]
	if !ok {
		return store.ErrNotFound
	}
	if cur.Version != v.Version {
		return store.ErrConflict
	}
	v.Version++
	v.UpdatedAt = t.now()
	t.d.vehicles[v.ID] = *v
	return nil
}

// Assignments

func (t *tx) activeAssignmentExcept(subscriptionID, id string) bool {
	for _, cur := range t.d.assignments {
		if cur.SubscriptionID == subscriptionID && cur.Status == types.AssignmentStatusActive && cur.ID != id {
			return true
		}
	}
	return false
}

func (t *tx) CreateAssignment(a *models.Assignment) error {
	if _, ok := t.d.assignments[a.ID]; ok {
		return store.ErrDuplicate
	}
	if a.Status == types.AssignmentStatusActive && t.activeAssignmentExcept(a.SubscriptionID, a.ID) {
		return store.ErrDuplicate
	}
	now := t.now()
	a.CreatedAt, a.UpdatedAt = now, now
	t.d.assignments[a.ID] = *a
	return nil
}

func (t *tx) GetActiveAssignment(subscriptionID string) (*models.Assignment, error) {
	for _, cur := range t.d.assignments {
		if cur.SubscriptionID == subscriptionID && cur.Status == types.AssignmentStatusActive {
			cp := cur
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (t *tx) ListAssignments(q store.AssignmentQuery) ([]*models.Assignment, error) {
	var out []*models.Assignment
	for _, cur := range t.d.assignments {
		if q.SubscriptionID != "" && cur.SubscriptionID != q.SubscriptionID {
			continue
		}
		if q.TechnicianID != "" && cur.TechnicianID != q.TechnicianID {
			continue
		}
		if q.Status != "" && cur.Status != q.Status {
			continue
		}
		cp := cur
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AssignedAt.Equal(out[j].AssignedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].AssignedAt.After(out[j].AssignedAt)
	})
	return out, nil
}

func (t *tx) UpdateAssignment(a *models.Assignment) error {
	cur, ok := t.d.assignments[a.ID]
	if !ok {
		return store.ErrNotFound
	}
	if cur.Version != a.Version {
		return store.ErrConflict
	}
	if a.Status == types.AssignmentStatusActive && t.activeAssignmentExcept(a.SubscriptionID, a.ID) {
		return store.ErrDuplicate
	}
	a.Version++
	a.UpdatedAt = t.now()
	t.d.assignments[a.ID] = *a
	return nil
}

// Visits

func (t *tx) visitConflicts(v *models.Visit) bool {
	for _, cur := range t.d.visits {
		if cur.ID == v.ID || cur.SubscriptionID != v.SubscriptionID {
			continue
		}
		if cur.VisitNumber == v.VisitNumber {
			return true
		}
		if v.Status == types.VisitStatusInProgress && cur.Status == types.VisitStatusInProgress {
			return true
		}
	}
	return false
}

func (t *tx) CreateVisit(v *models.Visit) error {
	if _, ok := t.d.visits[v.ID]; ok {
		return store.ErrDuplicate
	}
	if t.visitConflicts(v) {
		return store.ErrDuplicate
	}
	now := t.now()
	v.CreatedAt, v.UpdatedAt = now, now
	t.d.visits[v.ID] = *v
	return nil
}

func (t *tx) GetVisit(id string) (*models.Visit, error) {
	cur, ok := t.d.visits[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &cur, nil
}

func (t *tx) ListVisits(q store.VisitQuery) ([]*models.Visit, error) {
	var out []*models.Visit
	for _, cur := range t.d.visits {
		if q.SubscriptionID != "" && cur.SubscriptionID != q.SubscriptionID {
			continue
		}
		if q.TechnicianID != "" && cur.TechnicianID != q.TechnicianID {
			continue
		}
		if q.Status != "" && cur.Status != q.Status {
			continue
		}
		cp := cur
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SubscriptionID != out[j].SubscriptionID {
			return out[i].SubscriptionID < out[j].SubscriptionID
		}
		return out[i].VisitNumber < out[j].VisitNumber
	})
	return out, nil
}

func (t *tx) MaxVisitNumber(subscriptionID string) (int, error) {
	highest := 0
	for _, cur := range t.d.visits {
		if cur.SubscriptionID == subscriptionID && cur.VisitNumber > highest {
			highest = cur.VisitNumber
		}
	}
	return highest, nil
}

func (t *tx) UpdateVisit(v *models.Visit) error {
	cur, ok := t.d.visits[v.ID]
	if !ok {
		return store.ErrNotFound
	}
	if cur.Version != v.Version {
		return store.ErrConflict
	}
	if t.visitConflicts(v) {
		return store.ErrDuplicate
	}
	v.Version++
	v.UpdatedAt = t.now()
	t.d.visits[v.ID] = *v
	return nil
}

// Payments and invoices

func (t *tx) CreatePaymentRecord(p *models.PaymentRecord) error {
	for _, cur := range t.d.payments {
		if cur.ID == p.ID || cur.EventKey == p.EventKey {
			return store.ErrDuplicate
		}
	}
	p.CreatedAt = t.now()
	t.d.payments[p.ID] = *p
	return nil
}

func (t *tx) FindPaymentRecord(eventKey string) (*models.PaymentRecord, error) {
	for _, cur := range t.d.payments {
		if cur.EventKey == eventKey {
			cp := cur
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (t *tx) ListPaymentRecords(subscriptionID string) ([]*models.PaymentRecord, error) {
	var out []*models.PaymentRecord
	for _, cur := range t.d.payments {
		if cur.SubscriptionID == subscriptionID {
			cp := cur
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PaidAt.Before(out[j].PaidAt) })
	return out, nil
}

func (t *tx) CreateInvoice(i *models.Invoice) error {
	for _, cur := range t.d.invoices {
		if cur.ID == i.ID || cur.EventKey == i.EventKey || cur.InvoiceNumber == i.InvoiceNumber {
			return store.ErrDuplicate
		}
	}
	i.CreatedAt = t.now()
	t.d.invoices[i.ID] = *i
	return nil
}

func (t *tx) FindInvoice(eventKey string) (*models.Invoice, error) {
	for _, cur := range t.d.invoices {
		if cur.EventKey == eventKey {
			cp := cur
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (t *tx) ListInvoices(subscriptionID string) ([]*models.Invoice, error) {
	var out []*models.Invoice
	for _, cur := range t.d.invoices {
		if cur.SubscriptionID == subscriptionID {
			cp := cur
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InvoiceNumber < out[j].InvoiceNumber })
	return out, nil
}

func (t *tx) ScanInvoices(req *store.ScanRequest) ([]*models.Invoice, int64, error) {
	rows := make([]models.Invoice, 0, len(t.d.invoices))
	for _, cur := range t.d.invoices {
		rows = append(rows, cur)
	}
	page, total, err := scan(rows, req)
	if err != nil {
		return nil, 0, err
	}
	out := make([]*models.Invoice, len(page))
	for i := range page {
		cp := page[i]
		out[i] = &cp
	}
	return out, total, nil
}

func (t *tx) NextInvoiceSequence(period string) (int64, error) {
	t.d.sequences[period]++
	return t.d.sequences[period], nil
}

// Events

func (t *tx) AppendEvent(e *models.Event) error {
	var seq int64
	for _, cur := range t.d.events {
		if cur.EntityType == e.EntityType && cur.EntityID == e.EntityID && cur.Seq > seq {
			seq = cur.Seq
		}
	}
	e.Seq = seq + 1
	t.d.events = append(t.d.events, *e)
	return nil
}

func (t *tx) ListEvents(q store.EventQuery) ([]*models.Event, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	var out []*models.Event
	for _, cur := range t.d.events {
		if q.EntityType != "" && cur.EntityType != q.EntityType {
			continue
		}
		if q.EntityID != "" && (cur.EntityID != q.EntityID || cur.Seq <= q.AfterSeq) {
			continue
		}
		if q.SubscriptionID != "" && cur.SubscriptionID != q.SubscriptionID {
			continue
		}
		if q.ActorID != "" && cur.ActorID != q.ActorID {
			continue
		}
		if q.Since != nil && !cur.OccurredAt.After(*q.Since) {
			continue
		}
		cp := cur
		out = append(out, &cp)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (t *tx) ListUndispatchedEvents(before time.Time, limit int) ([]*models.Event, error) {
	var out []*models.Event
	for _, cur := range t.d.events {
		if cur.DispatchedAt != nil || !cur.OccurredAt.Before(before) {
			continue
		}
		cp := cur
		out = append(out, &cp)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (t *tx) MarkEventsDispatched(ids []string, at time.Time) error {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	for i := range t.d.events {
		if want[t.d.events[i].ID] && t.d.events[i].DispatchedAt == nil {
			ts := at
			t.d.events[i].DispatchedAt = &ts
		}
	}
	return nil
}

// Notifications

func (t *tx) CreateNotification(n *models.Notification) error {
	for _, cur := range t.d.notifications {
		if cur.ID == n.ID || (cur.EventID == n.EventID && cur.RecipientID == n.RecipientID) {
			return store.ErrDuplicate
		}
	}
	n.CreatedAt = t.now()
	t.d.notifications = append(t.d.notifications, *n)
	return nil
}

func (t *tx) ListNotifications(q store.NotificationQuery) ([]*models.Notification, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}
	want := make(map[string]bool, len(q.RecipientIDs))
	for _, id := range q.RecipientIDs {
		want[id] = true
	}
	var out []*models.Notification
	for i := len(t.d.notifications) - 1; i >= 0 && len(out) < limit; i-- {
		cur := t.d.notifications[i]
		if !want[cur.RecipientID] || (q.UnreadOnly && cur.ReadAt != nil) {
			continue
		}
		out = append(out, &cur)
	}
	return out, nil
}

func (t *tx) MarkNotificationRead(id string, recipientIDs []string, at time.Time) (*models.Notification, error) {
	for i := range t.d.notifications {
		cur := &t.d.notifications[i]
		if cur.ID != id {
			continue
		}
		for _, r := range recipientIDs {
			if cur.RecipientID != r {
				continue
			}
			if cur.ReadAt == nil {
				ts := at
				cur.ReadAt = &ts
			}
			cp := *cur
			return &cp, nil
		}
		break
	}
	return nil, store.ErrNotFound
}

// Stats

func (t *tx) CountSubscriptionsByStatus() (map[types.SubscriptionStatus]int64, error) {
	out := map[types.SubscriptionStatus]int64{}
	for _, cur := range t.d.subscriptions {
		out[cur.Status]++
	}
	return out, nil
}

func (t *tx) CountVisitsByStatus() (map[types.VisitStatus]int64, error) {
	out := map[types.VisitStatus]int64{}
	for _, cur := range t.d.visits {
		out[cur.Status]++
	}
	return out, nil
}

func (t *tx) SumPayments(since time.Time) (map[string]int64, error) {
	out := map[string]int64{}
	for _, cur := range t.d.payments {
		if !cur.PaidAt.Before(since) {
			out[cur.Currency] += cur.Amount
		}
	}
	return out, nil
}

var _ store.Store = (*Store)(nil)
var _ store.Tx = (*tx)(nil)
