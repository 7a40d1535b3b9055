package apperr

import (
	"errors"
	"fmt"
)

type Class string

const (
	ClassValidation Class = "validation"
	ClassInvariant  Class = "invariant"
	ClassNotFound   Class = "not_found"
	ClassForbidden  Class = "forbidden"
	ClassAuth       Class = "unauthenticated"
	ClassInternal   Class = "internal"
)

// Error is a machine-distinguishable failure reason. Two errors match with
// errors.Is when their codes are equal, regardless of message.
type Error struct {
	Code    string
	Class   Class
	Message string
}

func New(class Class, code, message string) *Error {
	return &Error{Code: code, Class: class, Message: message}
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Withf returns a copy of e carrying a more specific message.
func (e *Error) Withf(format string, args ...any) *Error {
	return &Error{Code: e.Code, Class: e.Class, Message: fmt.Sprintf(format, args...)}
}

// As extracts the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

var (
	InvalidPlan              = New(ClassValidation, "invalid_plan", "unknown plan")
	InvalidVehicleCount      = New(ClassValidation, "invalid_vehicle_count", "vehicle count must be at least 1")
	InvalidMonths            = New(ClassValidation, "invalid_months", "months must be at least 1")
	InvalidPaymentMethod     = New(ClassValidation, "invalid_payment_method", "unsupported payment method")
	PaymentReferenceRequired = New(ClassValidation, "payment_reference_required", "payment reference is required for this method")
	UnknownSystem            = New(ClassValidation, "unknown_system", "unknown vehicle system")
	InvalidFindingStatus     = New(ClassValidation, "invalid_finding_status", "finding status must be pass, needs_attention or urgent_attention")
	FindingNoteRequired      = New(ClassValidation, "finding_note_required", "a finding that is not pass requires a note")
	RejectionReasonRequired  = New(ClassValidation, "rejection_reason_required", "rejection reason is required")
	InvalidArgument          = New(ClassValidation, "invalid_argument", "invalid argument")

	DuplicatePendingSubscription = New(ClassInvariant, "duplicate_pending_subscription", "customer already has a subscription awaiting payment")
	InvalidTransition            = New(ClassInvariant, "invalid_transition", "transition not allowed from current status")
	SubscriptionNotPayable       = New(ClassInvariant, "subscription_not_payable", "subscription payment is not confirmed")
	SubscriptionNotActive        = New(ClassInvariant, "subscription_not_active", "subscription is not active")
	NoActiveAssignment           = New(ClassInvariant, "no_active_assignment", "caller does not hold the active assignment")
	VisitAlreadyInProgress       = New(ClassInvariant, "visit_already_in_progress", "another visit is already in progress")
	EvidenceAlreadySubmitted     = New(ClassInvariant, "evidence_already_submitted", "payment evidence is already awaiting verification")
	EvidenceMissing              = New(ClassInvariant, "evidence_missing", "no payment evidence has been submitted")
	VehicleLimitReached          = New(ClassInvariant, "vehicle_limit_reached", "subscription vehicle count reached")
	ConcurrentUpdate             = New(ClassInvariant, "concurrent_update", "record was modified concurrently, retry")

	NotFound        = New(ClassNotFound, "not_found", "not found")
	Forbidden       = New(ClassForbidden, "forbidden", "caller is not allowed to perform this action")
	Unauthenticated = New(ClassAuth, "unauthenticated", "missing or invalid identity")

	MediaUploadFailed = New(ClassInternal, "media_upload_failed", "evidence media upload failed")
)
