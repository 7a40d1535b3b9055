package handlers

import (
	"github.com/fatflowers/autoinspect/internal/app/service/payment"
	"github.com/fatflowers/autoinspect/internal/app/service/statistics"
	"github.com/fatflowers/autoinspect/internal/app/service/subscription"
	"github.com/fatflowers/autoinspect/internal/app/service/visit"
	"github.com/fatflowers/autoinspect/internal/models"
	"github.com/fatflowers/autoinspect/pkg/response"
	"github.com/fatflowers/autoinspect/pkg/types"
)

// RespOK is a generic OK envelope for endpoints returning no specific data.
type RespOK struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    interface{}              `json:"data"`
}

// RespError is the envelope of a failed call.
type RespError struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    response.ErrorData       `json:"data"`
}

type RespSubscription struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    models.Subscription      `json:"data"`
}

type RespSubscriptionList struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    []models.Subscription    `json:"data"`
}

// RespSubscriptionScan wraps subscription.ScanResponse in the standard envelope.
type RespSubscriptionScan struct {
	Code    response.APIResponseCode  `json:"code"`
	Message string                    `json:"message"`
	Data    subscription.ScanResponse `json:"data"`
}

type RespPlans struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    []types.Plan             `json:"data"`
}

type RespVehicle struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    models.Vehicle           `json:"data"`
}

type RespVehicleList struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    []models.Vehicle         `json:"data"`
}

type RespAssignment struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    models.Assignment        `json:"data"`
}

type RespActiveAssignment struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    ActiveAssignmentResponse `json:"data"`
}

type RespAssignmentList struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    []models.Assignment      `json:"data"`
}

type RespVisit struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    VisitView                `json:"data"`
}

type RespVisitList struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    []VisitView              `json:"data"`
}

type RespSystems struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    []visit.System           `json:"data"`
}

// RespConfirmPayment carries the composite confirmation result; data.warning
// is set when bookkeeping failed after activation.
type RespConfirmPayment struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    ConfirmPaymentResponse   `json:"data"`
}

type RespPaymentList struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    []models.PaymentRecord   `json:"data"`
}

type RespInvoiceList struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    []models.Invoice         `json:"data"`
}

type RespInvoiceScan struct {
	Code    response.APIResponseCode    `json:"code"`
	Message string                      `json:"message"`
	Data    payment.InvoiceScanResponse `json:"data"`
}

// RespDashboard wraps statistics.DashboardResponse in the standard envelope.
type RespDashboard struct {
	Code    response.APIResponseCode     `json:"code"`
	Message string                       `json:"message"`
	Data    statistics.DashboardResponse `json:"data"`
}

type RespEventList struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    []models.Event           `json:"data"`
}

type RespNotification struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    models.Notification      `json:"data"`
}

type RespNotificationList struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    []models.Notification    `json:"data"`
}
