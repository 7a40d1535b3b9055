// Package visit runs inspection visits through
// in_progress -> pending_confirmation -> confirmed | rejected.
package visit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/fatflowers/autoinspect/internal/app/service/access"
	"github.com/fatflowers/autoinspect/internal/app/service/assignment"
	"github.com/fatflowers/autoinspect/internal/app/service/event"
	"github.com/fatflowers/autoinspect/internal/app/service/subscription"
	"github.com/fatflowers/autoinspect/internal/models"
	"github.com/fatflowers/autoinspect/internal/platform/blob"
	"github.com/fatflowers/autoinspect/internal/platform/tracing"
	"github.com/fatflowers/autoinspect/internal/store"
	"github.com/fatflowers/autoinspect/pkg/apperr"
	"github.com/fatflowers/autoinspect/pkg/config"
	"github.com/fatflowers/autoinspect/pkg/identity"
	"github.com/fatflowers/autoinspect/pkg/logctx"
	"github.com/fatflowers/autoinspect/pkg/metrics"
	"github.com/fatflowers/autoinspect/pkg/tool"
	"github.com/fatflowers/autoinspect/pkg/types"
)

type Service struct {
	cfg    *config.Config
	store  store.Store
	events *event.Recorder
	blobs  blob.Store
	log    *zap.SugaredLogger
	now    func() time.Time
}

func NewService(cfg *config.Config, st store.Store, events *event.Recorder, blobs blob.Store, log *zap.SugaredLogger) *Service {
	return &Service{cfg: cfg, store: st, events: events, blobs: blobs, log: log, now: time.Now}
}

var Module = fx.Options(
	fx.Provide(NewService),
)

// Start opens the next visit of a subscription for the technician holding its
// active assignment.
func (s *Service) Start(ctx context.Context, caller identity.Identity, subscriptionID string) (*models.Visit, error) {
	ctx, span := tracing.Start(ctx, "visit.Start")
	var err error
	defer func() { tracing.EndWithError(span, err) }()

	if !caller.IsTechnician() {
		err = apperr.Forbidden
		return nil, err
	}
	var v *models.Visit
	err = s.events.InTx(ctx, caller, func(tx store.Tx, em *event.Emitter) error {
		sub, err := subscription.Load(tx, subscriptionID)
		if err != nil {
			return err
		}
		if sub.Status != types.SubscriptionStatusActive {
			return apperr.SubscriptionNotActive.Withf("subscription %s is %s", sub.ID, sub.Status)
		}
		a, err := assignment.HoldsActiveTx(tx, sub.ID, caller.UserID)
		if err != nil {
			return err
		}
		open, err := tx.ListVisits(store.VisitQuery{SubscriptionID: sub.ID, Status: types.VisitStatusInProgress})
		if err != nil {
			return fmt.Errorf("failed to list visits: %w", err)
		}
		if len(open) > 0 {
			return apperr.VisitAlreadyInProgress.Withf("visit %d is already in progress", open[0].VisitNumber)
		}
		last, err := tx.MaxVisitNumber(sub.ID)
		if err != nil {
			return fmt.Errorf("failed to get last visit number: %w", err)
		}

		v = &models.Visit{
			ID:             tool.GenerateUUIDV7(),
			SubscriptionID: sub.ID,
			VisitNumber:    last + 1,
			AssignmentID:   a.ID,
			TechnicianID:   caller.UserID,
			Status:         types.VisitStatusInProgress,
			StartedAt:      em.Now(),
			SystemFindings: datatypes.NewJSONType([]types.SystemFinding{}),
			PartsUsed:      datatypes.NewJSONType([]types.PartUsed{}),
			Inspections:    datatypes.NewJSONType([]types.InspectionItem{}),
			Media:          datatypes.NewJSONType([]types.MediaRef{}),
		}
		if err := tx.CreateVisit(v); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return apperr.VisitAlreadyInProgress
			}
			return fmt.Errorf("failed to create visit: %w", err)
		}
		return emit(em, sub, v, "")
	})
	if err != nil {
		return nil, err
	}
	logctx.FromCtx(ctx, s.log).Infow("visit started", "visit_id", v.ID, "subscription_id", subscriptionID, "visit_number", v.VisitNumber)
	return v, nil
}

type FindingsRequest struct {
	SystemFindings  []types.SystemFinding `json:"system_findings" binding:"dive"`
	Findings        string                `json:"findings"`
	Notes           string                `json:"notes"`
	WorkPerformed   string                `json:"work_performed"`
	Recommendations string                `json:"recommendations"`
	DurationMinutes int                   `json:"duration_minutes" binding:"gte=0"`
	Location        string                `json:"location"`
	PartsUsed       []types.PartUsed      `json:"parts_used" binding:"dive"`
}

// RecordFindings replaces the draft record of an in-progress visit. Notes on
// non-pass findings are only required at submission.
func (s *Service) RecordFindings(ctx context.Context, caller identity.Identity, visitID string, req *FindingsRequest) (*models.Visit, error) {
	findings, err := NormalizeFindings(req.SystemFindings)
	if err != nil {
		return nil, err
	}
	narrative := strings.TrimSpace(req.Findings)
	if notes := strings.TrimSpace(req.Notes); notes != "" {
		if narrative != "" {
			narrative += "\n\n"
		}
		narrative += notes
	}
	parts := req.PartsUsed
	if parts == nil {
		parts = []types.PartUsed{}
	}

	var v *models.Visit
	err = s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		v, err = s.loadWritable(tx, caller, visitID)
		if err != nil {
			return err
		}
		v.SystemFindings = datatypes.NewJSONType(findings)
		v.Findings = narrative
		v.WorkPerformed = strings.TrimSpace(req.WorkPerformed)
		v.Recommendations = strings.TrimSpace(req.Recommendations)
		v.DurationMinutes = req.DurationMinutes
		v.Location = strings.TrimSpace(req.Location)
		v.PartsUsed = datatypes.NewJSONType(parts)
		return update(tx, v)
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

type SubmitRequest struct {
	Inspections []types.InspectionItem `json:"inspections" binding:"dive"`
	// Media already hosted elsewhere, kept alongside uploaded files.
	Media []types.MediaRef `json:"media"`
}

// Upload is one evidence file of a submission.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Caption     string
	Body        io.Reader
}

// Submit uploads evidence, then moves the visit to pending_confirmation
// together with its inspection items and media references. If any upload
// fails nothing is committed and the files of this attempt are removed.
func (s *Service) Submit(ctx context.Context, caller identity.Identity, visitID string, req *SubmitRequest, uploads []Upload) (*models.Visit, error) {
	ctx, span := tracing.Start(ctx, "visit.Submit")
	var err error
	defer func() { tracing.EndWithError(span, err) }()
	defer metrics.ObserveSince("visit", "submit", time.Now())
	log := logctx.FromCtx(ctx, s.log)

	// Fail fast before uploading anything.
	var subscriptionID string
	err = s.store.InTx(ctx, func(tx store.Tx) error {
		v, err := s.loadWritable(tx, caller, visitID)
		if err != nil {
			return err
		}
		subscriptionID = v.SubscriptionID
		return CheckNotes(v.SystemFindings.Data())
	})
	if err != nil {
		return nil, err
	}

	var media []types.MediaRef
	media, err = s.upload(ctx, subscriptionID, visitID, uploads)
	if err != nil {
		log.Errorw("visit media upload failed", "visit_id", visitID, "err", err)
		return nil, err
	}
	media = append(append([]types.MediaRef{}, req.Media...), media...)
	inspections := req.Inspections
	if inspections == nil {
		inspections = []types.InspectionItem{}
	}

	var v *models.Visit
	err = s.events.InTx(ctx, caller, func(tx store.Tx, em *event.Emitter) error {
		var err error
		v, err = s.loadWritable(tx, caller, visitID)
		if err != nil {
			return err
		}
		if err := CheckNotes(v.SystemFindings.Data()); err != nil {
			return err
		}
		sub, err := subscription.Load(tx, v.SubscriptionID)
		if err != nil {
			return err
		}
		now := em.Now()
		v.Status = types.VisitStatusPendingConfirmation
		v.CompletedAt = &now
		v.Inspections = datatypes.NewJSONType(inspections)
		v.Media = datatypes.NewJSONType(media)
		if err := update(tx, v); err != nil {
			return err
		}
		return emit(em, sub, v, types.VisitStatusInProgress)
	})
	if err != nil {
		s.discard(ctx, media[len(req.Media):])
		return nil, err
	}
	log.Infow("visit submitted", "visit_id", v.ID, "media", len(media), "inspections", len(inspections))
	return v, nil
}

func (s *Service) upload(ctx context.Context, subscriptionID, visitID string, uploads []Upload) ([]types.MediaRef, error) {
	refs := make([]types.MediaRef, 0, len(uploads))
	for _, u := range uploads {
		key := path.Join(s.cfg.Blob.Prefix, subscriptionID, visitID, tool.GenerateUUIDV7()+path.Ext(u.Filename))
		url, err := s.blobs.Put(ctx, key, u.Body, u.Size, u.ContentType)
		if err != nil {
			s.discard(ctx, refs)
			return nil, apperr.MediaUploadFailed.Withf("failed to upload %s: %v", u.Filename, err)
		}
		refs = append(refs, types.MediaRef{Key: key, URL: url, ContentType: u.ContentType, Size: u.Size, Caption: u.Caption})
	}
	return refs, nil
}

// discard removes blobs written by an attempt that did not commit.
func (s *Service) discard(ctx context.Context, refs []types.MediaRef) {
	ctx = logctx.Detach(ctx)
	for _, r := range refs {
		if err := s.blobs.Delete(ctx, r.Key); err != nil {
			logctx.FromCtx(ctx, s.log).Warnw("failed to delete orphaned media", "key", r.Key, "err", err)
		}
	}
}

// Confirm ratifies a submitted visit.
func (s *Service) Confirm(ctx context.Context, caller identity.Identity, visitID string) (*models.Visit, error) {
	return s.review(ctx, caller, visitID, func(v *models.Visit, now time.Time) {
		v.Status = types.VisitStatusConfirmed
		v.ConfirmedAt = &now
		v.ConfirmedBy = caller.UserID
	})
}

// Reject closes a submitted visit for good; service is retried under a new visit number.
func (s *Service) Reject(ctx context.Context, caller identity.Identity, visitID, reason string) (*models.Visit, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperr.RejectionReasonRequired
	}
	return s.review(ctx, caller, visitID, func(v *models.Visit, now time.Time) {
		v.Status = types.VisitStatusRejected
		v.RejectedAt = &now
		v.RejectedBy = caller.UserID
		v.RejectionReason = reason
	})
}

func (s *Service) review(ctx context.Context, caller identity.Identity, visitID string, apply func(v *models.Visit, now time.Time)) (*models.Visit, error) {
	if !caller.IsAdmin() {
		return nil, apperr.Forbidden
	}
	var v *models.Visit
	err := s.events.InTx(ctx, caller, func(tx store.Tx, em *event.Emitter) error {
		var err error
		v, err = load(tx, visitID)
		if err != nil {
			return err
		}
		if v.Status != types.VisitStatusPendingConfirmation {
			return apperr.InvalidTransition.Withf("visit %s is %s, not pending_confirmation", v.ID, v.Status)
		}
		sub, err := subscription.Load(tx, v.SubscriptionID)
		if err != nil {
			return err
		}
		apply(v, em.Now())
		if err := update(tx, v); err != nil {
			return err
		}
		return emit(em, sub, v, types.VisitStatusPendingConfirmation)
	})
	if err != nil {
		return nil, err
	}
	logctx.FromCtx(ctx, s.log).Infow("visit reviewed", "visit_id", v.ID, "status", v.Status)
	return v, nil
}

func (s *Service) Get(ctx context.Context, caller identity.Identity, visitID string) (*models.Visit, error) {
	var v *models.Visit
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		if v, err = load(tx, visitID); err != nil {
			return err
		}
		return access.Visit(tx, caller, v)
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

// ListForSubscription returns visits ordered by visit number.
func (s *Service) ListForSubscription(ctx context.Context, caller identity.Identity, subscriptionID string, status types.VisitStatus) ([]*models.Visit, error) {
	var out []*models.Visit
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		if _, err := access.SubscriptionByID(tx, caller, subscriptionID); err != nil {
			return err
		}
		rows, err := tx.ListVisits(store.VisitQuery{SubscriptionID: subscriptionID, Status: status})
		if err != nil {
			return fmt.Errorf("failed to list visits: %w", err)
		}
		out = rows
		return nil
	})
	return out, err
}

// loadWritable loads an in-progress visit the caller may still edit.
func (s *Service) loadWritable(tx store.Tx, caller identity.Identity, visitID string) (*models.Visit, error) {
	v, err := load(tx, visitID)
	if err != nil {
		return nil, err
	}
	if !caller.IsTechnician() || v.TechnicianID != caller.UserID {
		return nil, apperr.Forbidden
	}
	if v.Status != types.VisitStatusInProgress {
		return nil, apperr.InvalidTransition.Withf("visit %s is %s, not in_progress", v.ID, v.Status)
	}
	if _, err := assignment.HoldsActiveTx(tx, v.SubscriptionID, caller.UserID); err != nil {
		return nil, err
	}
	return v, nil
}

func load(tx store.Tx, id string) (*models.Visit, error) {
	v, err := tx.GetVisit(id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound.Withf("visit %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get visit: %w", err)
	}
	return v, nil
}

func update(tx store.Tx, v *models.Visit) error {
	if err := tx.UpdateVisit(v); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return apperr.ConcurrentUpdate
		}
		return fmt.Errorf("failed to update visit: %w", err)
	}
	return nil
}

func emit(em *event.Emitter, sub *models.Subscription, v *models.Visit, from types.VisitStatus) error {
	detail := map[string]interface{}{
		"customer_id":   sub.CustomerID,
		"technician_id": v.TechnicianID,
		"visit_number":  v.VisitNumber,
	}
	if v.RejectionReason != "" {
		detail["reason"] = v.RejectionReason
	}
	return em.Emit(event.Transition{
		EntityType:     types.EntityTypeVisit,
		EntityID:       v.ID,
		SubscriptionID: sub.ID,
		From:           string(from),
		To:             string(v.Status),
		Detail:         detail,
	})
}
