package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fatflowers/autoinspect/internal/app/service/payment"
	"github.com/fatflowers/autoinspect/internal/store"
	"github.com/fatflowers/autoinspect/pkg/types"
)

// @Summary      Submit Payment Evidence
// @Description  Records how a pending subscription was paid; an admin verifies it later.
// @Tags         Subscription
// @Accept       json
// @Produce      json
// @Param        id path string true "Subscription ID"
// @Param        request body payment.EvidenceRequest true "Method and reference"
// @Success      200  {object}  handlers.RespSubscription
// @Router       /api/v1/subscriptions/{id}/payment_evidence [post]
func ApiSubmitPaymentEvidence(svc *payment.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req payment.EvidenceRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		sub, err := svc.SubmitEvidence(c.Request.Context(), caller(c), c.Param("id"), &req)
		if err != nil {
			fail(c, log, err)
			return
		}
		ok(c, sub)
	}
}

// @Summary      List Payments
// @Tags         Subscription
// @Produce      json
// @Param        id path string true "Subscription ID"
// @Success      200  {object}  handlers.RespPaymentList
// @Router       /api/v1/subscriptions/{id}/payments [get]
func ApiListPayments(svc *payment.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, err := svc.ListPayments(c.Request.Context(), caller(c), c.Param("id"))
		if err != nil {
			fail(c, log, err)
			return
		}
		ok(c, rows)
	}
}

// @Summary      List Subscription Invoices
// @Tags         Subscription
// @Produce      json
// @Param        id path string true "Subscription ID"
// @Success      200  {object}  handlers.RespInvoiceList
// @Router       /api/v1/subscriptions/{id}/invoices [get]
func ApiListSubscriptionInvoices(svc *payment.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, err := svc.ListInvoices(c.Request.Context(), caller(c), c.Param("id"))
		if err != nil {
			fail(c, log, err)
			return
		}
		ok(c, rows)
	}
}

// ConfirmPaymentResponse carries a warning when the subscription was
// activated but its payment record or invoice could not be written.
type ConfirmPaymentResponse struct {
	*payment.ConfirmPaymentResult
	Warning string `json:"warning,omitempty"`
}

// @Summary      Confirm Payment (Admin)
// @Description  Activates the subscription and its vehicles, then records the payment and issues the invoice.
// @Tags         Admin
// @Produce      json
// @Param        id path string true "Subscription ID"
// @Success      200  {object}  handlers.RespConfirmPayment
// @Router       /api/v1/admin/subscriptions/{id}/confirm_payment [post]
func ApiConfirmPayment(svc *payment.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := svc.ConfirmPayment(c.Request.Context(), caller(c), c.Param("id"))
		if err != nil {
			fail(c, log, err)
			return
		}
		ok(c, &ConfirmPaymentResponse{ConfirmPaymentResult: res, Warning: res.Warning()})
	}
}

// @Summary      Reconcile Bookkeeping (Admin)
// @Description  Creates whatever payment record or invoice is missing for a confirmed subscription.
// @Tags         Admin
// @Produce      json
// @Param        id path string true "Subscription ID"
// @Success      200  {object}  handlers.RespConfirmPayment
// @Router       /api/v1/admin/subscriptions/{id}/reconcile [post]
func ApiReconcile(svc *payment.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := svc.Reconcile(c.Request.Context(), caller(c), c.Param("id"))
		if err != nil {
			fail(c, log, err)
			return
		}
		ok(c, &ConfirmPaymentResponse{ConfirmPaymentResult: res})
	}
}

// @Summary      Reject Payment Evidence (Admin)
// @Description  Clears unverified evidence so the customer may submit again.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        id path string true "Subscription ID"
// @Param        request body handlers.reasonRequest true "Rejection reason"
// @Success      200  {object}  handlers.RespSubscription
// @Router       /api/v1/admin/subscriptions/{id}/reject_payment [post]
func ApiRejectPaymentEvidence(svc *payment.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req reasonRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		sub, err := svc.RejectEvidence(c.Request.Context(), caller(c), c.Param("id"), req.Reason)
		if err != nil {
			fail(c, log, err)
			return
		}
		ok(c, sub)
	}
}

// @Summary      List Invoices (Admin)
// @Description  Retrieves a paginated and filterable list of all invoices.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body store.ScanRequest true "Filters, pagination and sorting"
// @Success      200  {object}  handlers.RespInvoiceScan
// @Router       /api/v1/admin/list_invoices [post]
func ApiScanInvoices(svc *payment.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req store.ScanRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		res, err := svc.ScanInvoices(c.Request.Context(), &req)
		if err != nil {
			fail(c, log, err)
			return
		}
		ok(c, res)
	}
}

type exportInvoicesQuery struct {
	Since  *time.Time `form:"since" time_format:"2006-01-02"`
	Until  *time.Time `form:"until" time_format:"2006-01-02"`
	Status string     `form:"status"`
}

func (q *exportInvoicesQuery) filters() []*types.CommonFilter {
	var out []*types.CommonFilter
	if q.Since != nil {
		out = append(out, &types.CommonFilter{Field: "issued_at", Operator: types.CommonFilterOperatorGte, Values: []any{q.Since.UTC().Format(time.RFC3339)}})
	}
	if q.Until != nil {
		out = append(out, &types.CommonFilter{Field: "issued_at", Operator: types.CommonFilterOperatorLt, Values: []any{q.Until.UTC().Format(time.RFC3339)}})
	}
	if q.Status != "" {
		out = append(out, &types.CommonFilter{Field: "status", Operator: types.CommonFilterOperatorEq, Values: []any{q.Status}})
	}
	return out
}

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// @Summary      Export Invoices (Admin)
// @Description  Downloads the invoice ledger as an .xlsx workbook. until is exclusive.
// @Tags         Admin
// @Produce      application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param        since query string false "First issue day, YYYY-MM-DD"
// @Param        until query string false "Day after the last issue day, YYYY-MM-DD"
// @Param        status query string false "Invoice status"
// @Success      200  {file}  file
// @Router       /api/v1/admin/invoices/export [get]
func ApiExportInvoices(svc *payment.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var q exportInvoicesQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			badRequest(c, err)
			return
		}
		var buf bytes.Buffer
		n, err := svc.ExportInvoices(c.Request.Context(), &store.ScanRequest{Filters: q.filters()}, &buf)
		if err != nil {
			fail(c, log, err)
			return
		}
		filename := fmt.Sprintf("invoices-%s.xlsx", time.Now().UTC().Format("20060102"))
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
		c.Header("X-Row-Count", fmt.Sprint(n))
		c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
	}
}

func RegisterPaymentRoutes(r gin.IRouter, svc *payment.Service, log *zap.SugaredLogger) {
	r.POST("/subscriptions/:id/payment_evidence", ApiSubmitPaymentEvidence(svc, log))
	r.GET("/subscriptions/:id/payments", ApiListPayments(svc, log))
	r.GET("/subscriptions/:id/invoices", ApiListSubscriptionInvoices(svc, log))
}

func RegisterAdminPaymentRoutes(r gin.IRouter, svc *payment.Service, log *zap.SugaredLogger) {
	r.POST("/subscriptions/:id/confirm_payment", ApiConfirmPayment(svc, log))
	r.POST("/subscriptions/:id/reject_payment", ApiRejectPaymentEvidence(svc, log))
	r.POST("/subscriptions/:id/reconcile", ApiReconcile(svc, log))
	r.POST("/list_invoices", ApiScanInvoices(svc, log))
	r.GET("/invoices/export", ApiExportInvoices(svc, log))
}
