package payment

import (
	"bytes"
	"context"
	"errors"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/fatflowers/autoinspect/internal/app/service/event"
	"github.com/fatflowers/autoinspect/internal/app/service/subscription"
	"github.com/fatflowers/autoinspect/internal/app/service/vehicle"
	"github.com/fatflowers/autoinspect/internal/models"
	"github.com/fatflowers/autoinspect/internal/platform/broker"
	"github.com/fatflowers/autoinspect/internal/store"
	"github.com/fatflowers/autoinspect/internal/store/memstore"
	"github.com/fatflowers/autoinspect/pkg/apperr"
	"github.com/fatflowers/autoinspect/pkg/config"
	"github.com/fatflowers/autoinspect/pkg/identity"
	"github.com/fatflowers/autoinspect/pkg/types"
)

var (
	customer  = identity.Identity{UserID: "cust-1", Role: identity.RoleCustomer}
	admin     = identity.Identity{UserID: "admin-1", Role: identity.RoleAdmin}
	tech      = identity.Identity{UserID: "tech-1", Role: identity.RoleTechnician}
	invoiceRe = regexp.MustCompile(`^INV-\d{6}-00001$`)
)

type fixture struct {
	cfg      *config.Config
	st       *memstore.Store
	subs     *subscription.Service
	vehicles *vehicle.Service
	svc      *Service
}

func setup(t *testing.T) *fixture {
	t.Helper()
	return setupWith(t, nil)
}

// setupWith lets a test put a store decorator in front of the memory store.
func setupWith(t *testing.T, wrap func(*memstore.Store) store.Store) *fixture {
	t.Helper()
	log := zap.NewNop().Sugar()
	cfg := &config.Config{
		Plans: []*types.Plan{
			{ID: "basic", Name: "Basic", Price: 5000, Currency: "USD", BillingCycle: types.BillingCycleMonth},
			{ID: "free", Name: "Trial", Price: 0, Currency: "USD", BillingCycle: types.BillingCycleMonth},
		},
		Payment: config.PaymentConfig{
			Methods:       []types.PaymentMethod{types.PaymentMethodBankTransfer, types.PaymentMethodCash},
			InvoicePrefix: "INV",
		},
	}
	st := memstore.New()
	var backing store.Store = st
	if wrap != nil {
		backing = wrap(st)
	}
	rec := event.NewRecorder(backing, broker.NewGoChannel(log), log)
	subs := subscription.NewService(cfg, backing, rec, log)
	vehicles := vehicle.NewService(backing, rec, log)
	return &fixture{cfg: cfg, st: st, subs: subs, vehicles: vehicles, svc: NewService(cfg, backing, rec, subs, vehicles, log)}
}

// sequenceOutage fails invoice number allocation while down is set.
type sequenceOutage struct {
	*memstore.Store
	down atomic.Bool
}

func (s *sequenceOutage) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return s.Store.InTx(ctx, func(tx store.Tx) error {
		return fn(outageTx{Tx: tx, down: s.down.Load()})
	})
}

type outageTx struct {
	store.Tx
	down bool
}

func (t outageTx) NextInvoiceSequence(period string) (int64, error) {
	if t.down {
		return 0, errors.New("sequence table locked")
	}
	return t.Tx.NextInvoiceSequence(period)
}

func (f *fixture) create(t *testing.T, plan string, vehicles int) *models.Subscription {
	t.Helper()
	sub, err := f.subs.Create(context.Background(), customer, &subscription.CreateRequest{PlanID: plan, VehicleCount: vehicles})
	require.NoError(t, err)
	return sub
}

func TestConfirmPayment_BankTransferScenario(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	sub := f.create(t, "basic", 2)
	_, err := f.vehicles.Add(ctx, customer, sub.ID, &vehicle.AddRequest{Make: "Mazda", PlateNumber: "KDD 100A"})
	require.NoError(t, err)

	_, err = f.svc.ConfirmPayment(ctx, admin, sub.ID)
	assert.ErrorIs(t, err, apperr.EvidenceMissing)

	pending, err := f.svc.SubmitEvidence(ctx, customer, sub.ID, &EvidenceRequest{Method: types.PaymentMethodBankTransfer, Reference: " TX123 "})
	require.NoError(t, err)
	assert.True(t, pending.AwaitingVerification())
	assert.Equal(t, "TX123", pending.PaymentReference)

	_, err = f.svc.SubmitEvidence(ctx, customer, sub.ID, &EvidenceRequest{Method: types.PaymentMethodBankTransfer, Reference: "TX999"})
	assert.ErrorIs(t, err, apperr.EvidenceAlreadySubmitted)

	_, err = f.svc.ConfirmPayment(ctx, customer, sub.ID)
	assert.ErrorIs(t, err, apperr.Forbidden)

	res, err := f.svc.ConfirmPayment(ctx, admin, sub.ID)
	require.NoError(t, err)
	assert.True(t, res.Activated)
	assert.Empty(t, res.Warning())
	assert.Equal(t, 1, res.VehiclesActivated)
	assert.Equal(t, types.SubscriptionStatusActive, res.Subscription.Status)
	assert.True(t, res.Subscription.PaymentConfirmed)

	require.NotNil(t, res.PaymentRecord)
	assert.Equal(t, int64(10000), res.PaymentRecord.Amount)
	assert.Equal(t, sub.ID+":TX123", res.PaymentRecord.EventKey)
	assert.Equal(t, "admin-1", res.PaymentRecord.ConfirmedBy)

	require.NotNil(t, res.Invoice)
	assert.Equal(t, "TX123", res.Invoice.Reference)
	assert.Regexp(t, invoiceRe, res.Invoice.InvoiceNumber)
	assert.Equal(t, res.PaymentRecord.ID, res.Invoice.PaymentRecordID)
	assert.Equal(t, types.InvoiceStatusPaid, res.Invoice.Status)

	_, err = f.svc.SubmitEvidence(ctx, customer, sub.ID, &EvidenceRequest{Method: types.PaymentMethodCash})
	assert.ErrorIs(t, err, apperr.InvalidTransition)
}

func TestConfirmPayment_TwiceCreatesOneRecordAndInvoice(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	sub := f.create(t, "basic", 1)
	_, err := f.svc.SubmitEvidence(ctx, customer, sub.ID, &EvidenceRequest{Method: types.PaymentMethodCash})
	require.NoError(t, err)

	first, err := f.svc.ConfirmPayment(ctx, admin, sub.ID)
	require.NoError(t, err)
	assert.True(t, first.Activated)
	assert.Equal(t, sub.ID+":manual", first.Invoice.EventKey)

	second, err := f.svc.ConfirmPayment(ctx, admin, sub.ID)
	require.NoError(t, err)
	assert.False(t, second.Activated)
	assert.Nil(t, second.PaymentRecord)
	assert.Nil(t, second.Invoice)

	payments, err := f.svc.ListPayments(ctx, customer, sub.ID)
	require.NoError(t, err)
	assert.Len(t, payments, 1)
	invoices, err := f.svc.ListInvoices(ctx, admin, sub.ID)
	require.NoError(t, err)
	assert.Len(t, invoices, 1)

	_, err = f.svc.ListPayments(ctx, tech, sub.ID)
	assert.ErrorIs(t, err, apperr.Forbidden)
}

func TestConfirmPayment_ConcurrentConfirmations(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	sub := f.create(t, "basic", 2)
	_, err := f.svc.SubmitEvidence(ctx, customer, sub.ID, &EvidenceRequest{Method: types.PaymentMethodBankTransfer, Reference: "TX42"})
	require.NoError(t, err)

	const n = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		activated []*ConfirmPaymentResult
		failures  []error
	)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			res, err := f.svc.ConfirmPayment(ctx, admin, sub.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				failures = append(failures, err)
			case res.Activated:
				activated = append(activated, res)
			}
		}()
	}
	close(start)
	wg.Wait()

	require.Empty(t, failures)
	require.Len(t, activated, 1)
	winner := activated[0]
	require.NoError(t, winner.BookkeepingErr)
	require.NotNil(t, winner.PaymentRecord)
	require.NotNil(t, winner.Invoice)
	assert.Equal(t, int64(10000), winner.PaymentRecord.Amount)
	assert.Equal(t, winner.PaymentRecord.ID, winner.Invoice.PaymentRecordID)
	assert.Regexp(t, invoiceRe, winner.Invoice.InvoiceNumber)

	payments, err := f.svc.ListPayments(ctx, admin, sub.ID)
	require.NoError(t, err)
	assert.Len(t, payments, 1)
	invoices, err := f.svc.ListInvoices(ctx, admin, sub.ID)
	require.NoError(t, err)
	assert.Len(t, invoices, 1)

	activations := 0
	for _, l := range f.st.SubscriptionLogs(sub.ID) {
		if l.Reason == types.SubscriptionChangeReasonActivate {
			activations++
		}
	}
	assert.Equal(t, 1, activations)
}

func TestConfirmPayment_InvoiceFailureKeepsPaymentRecord(t *testing.T) {
	outage := &sequenceOutage{}
	f := setupWith(t, func(st *memstore.Store) store.Store {
		outage.Store = st
		return outage
	})
	ctx := context.Background()
	sub := f.create(t, "basic", 1)
	_, err := f.svc.SubmitEvidence(ctx, customer, sub.ID, &EvidenceRequest{Method: types.PaymentMethodCash})
	require.NoError(t, err)

	outage.down.Store(true)
	res, err := f.svc.ConfirmPayment(ctx, admin, sub.ID)
	require.NoError(t, err)
	assert.True(t, res.Activated)
	require.Error(t, res.BookkeepingErr)
	require.NotNil(t, res.PaymentRecord)
	assert.Nil(t, res.Invoice)

	payments, err := f.svc.ListPayments(ctx, admin, sub.ID)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, res.PaymentRecord.ID, payments[0].ID)
	invoices, err := f.svc.ListInvoices(ctx, admin, sub.ID)
	require.NoError(t, err)
	assert.Empty(t, invoices)

	outage.down.Store(false)
	fixed, err := f.svc.Reconcile(ctx, admin, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, res.PaymentRecord.ID, fixed.PaymentRecord.ID)
	require.NotNil(t, fixed.Invoice)
	assert.Equal(t, res.PaymentRecord.ID, fixed.Invoice.PaymentRecordID)
}

func TestSubmitEvidence_Validation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	sub := f.create(t, "basic", 1)

	_, err := f.svc.SubmitEvidence(ctx, customer, sub.ID, &EvidenceRequest{Method: "crypto", Reference: "0xabc"})
	assert.ErrorIs(t, err, apperr.InvalidPaymentMethod)

	_, err = f.svc.SubmitEvidence(ctx, customer, sub.ID, &EvidenceRequest{Method: types.PaymentMethodBankTransfer})
	assert.ErrorIs(t, err, apperr.PaymentReferenceRequired)

	other := identity.Identity{UserID: "cust-2", Role: identity.RoleCustomer}
	_, err = f.svc.SubmitEvidence(ctx, other, sub.ID, &EvidenceRequest{Method: types.PaymentMethodCash})
	assert.ErrorIs(t, err, apperr.Forbidden)

	_, err = f.svc.SubmitEvidence(ctx, tech, sub.ID, &EvidenceRequest{Method: types.PaymentMethodCash})
	assert.ErrorIs(t, err, apperr.Forbidden)

	_, err = f.svc.SubmitEvidence(ctx, customer, "missing", &EvidenceRequest{Method: types.PaymentMethodCash})
	assert.ErrorIs(t, err, apperr.NotFound)
}

func TestRejectEvidence_AllowsResubmission(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	sub := f.create(t, "basic", 1)

	_, err := f.svc.RejectEvidence(ctx, admin, sub.ID, "no such transfer")
	assert.ErrorIs(t, err, apperr.EvidenceMissing)

	_, err = f.svc.SubmitEvidence(ctx, customer, sub.ID, &EvidenceRequest{Method: types.PaymentMethodBankTransfer, Reference: "TX1"})
	require.NoError(t, err)

	_, err = f.svc.RejectEvidence(ctx, admin, sub.ID, "")
	assert.ErrorIs(t, err, apperr.RejectionReasonRequired)

	cleared, err := f.svc.RejectEvidence(ctx, admin, sub.ID, "no such transfer")
	require.NoError(t, err)
	assert.False(t, cleared.AwaitingVerification())
	assert.Equal(t, types.SubscriptionStatusPendingPayment, cleared.Status)

	_, err = f.svc.SubmitEvidence(ctx, customer, sub.ID, &EvidenceRequest{Method: types.PaymentMethodBankTransfer, Reference: "TX2"})
	require.NoError(t, err)
}

func TestConfirmPayment_FreePlanHasInvoiceOnly(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	sub := f.create(t, "free", 1)
	_, err := f.svc.SubmitEvidence(ctx, customer, sub.ID, &EvidenceRequest{Method: types.PaymentMethodCash})
	require.NoError(t, err)

	res, err := f.svc.ConfirmPayment(ctx, admin, sub.ID)
	require.NoError(t, err)
	assert.Nil(t, res.PaymentRecord)
	require.NotNil(t, res.Invoice)
	assert.Equal(t, int64(0), res.Invoice.Amount)
	assert.Empty(t, res.Invoice.PaymentRecordID)
}

func TestConfirmPayment_BookkeepingFailureKeepsActivation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	sub := f.create(t, "basic", 1)
	_, err := f.svc.SubmitEvidence(ctx, customer, sub.ID, &EvidenceRequest{Method: types.PaymentMethodBankTransfer, Reference: "TX7"})
	require.NoError(t, err)

	plans := f.cfg.Plans
	f.cfg.Plans = plans[1:]
	res, err := f.svc.ConfirmPayment(ctx, admin, sub.ID)
	require.NoError(t, err)
	assert.True(t, res.Activated)
	require.Error(t, res.BookkeepingErr)
	assert.Contains(t, res.Warning(), "bookkeeping failed")
	assert.Nil(t, res.Invoice)

	got, err := f.subs.Get(ctx, admin, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, types.SubscriptionStatusActive, got.Status)

	f.cfg.Plans = plans
	fixed, err := f.svc.Reconcile(ctx, admin, sub.ID)
	require.NoError(t, err)
	require.NotNil(t, fixed.PaymentRecord)
	require.NotNil(t, fixed.Invoice)

	again, err := f.svc.Reconcile(ctx, admin, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, fixed.PaymentRecord.ID, again.PaymentRecord.ID)
	assert.Equal(t, fixed.Invoice.InvoiceNumber, again.Invoice.InvoiceNumber)

	invoices, err := f.svc.ListInvoices(ctx, admin, sub.ID)
	require.NoError(t, err)
	assert.Len(t, invoices, 1)
}

func TestReconcile_RequiresConfirmedPayment(t *testing.T) {
	f := setup(t)
	sub := f.create(t, "basic", 1)
	_, err := f.svc.Reconcile(context.Background(), admin, sub.ID)
	assert.ErrorIs(t, err, apperr.SubscriptionNotPayable)
}

func TestExportInvoices(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	sub := f.create(t, "basic", 3)
	_, err := f.svc.SubmitEvidence(ctx, customer, sub.ID, &EvidenceRequest{Method: types.PaymentMethodBankTransfer, Reference: "TX5"})
	require.NoError(t, err)
	res, err := f.svc.ConfirmPayment(ctx, admin, sub.ID)
	require.NoError(t, err)

	var buf bytes.Buffer
	n, err := f.svc.ExportInvoices(ctx, &store.ScanRequest{}, &buf)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	x, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer x.Close()
	rows, err := x.GetRows(ledgerSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Invoice Number", rows[0][0])
	assert.Equal(t, res.Invoice.InvoiceNumber, rows[1][0])
	assert.Equal(t, "TX5", rows[1][6])
	assert.Equal(t, "150", rows[1][7])
}

func TestInvoiceNumber(t *testing.T) {
	at := mustParse(t, "2024-02-29T10:00:00Z")
	assert.Equal(t, "INV-202402-00042", InvoiceNumber("", at, 42))
	assert.Equal(t, "AI-202402-00001", InvoiceNumber("AI", at, 1))
}

func mustParse(t *testing.T, s string) time.Time {
	t.Helper()
	v, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return v
}
