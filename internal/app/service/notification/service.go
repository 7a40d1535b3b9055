// Package notification keeps a per-recipient inbox fed by the event stream.
package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/autoinspect/internal/models"
	"github.com/fatflowers/autoinspect/internal/platform/broker"
	"github.com/fatflowers/autoinspect/internal/store"
	"github.com/fatflowers/autoinspect/pkg/apperr"
	"github.com/fatflowers/autoinspect/pkg/identity"
	"github.com/fatflowers/autoinspect/pkg/logctx"
	"github.com/fatflowers/autoinspect/pkg/metrics"
	"github.com/fatflowers/autoinspect/pkg/tool"
)

const consumerName = "notifications"

type Service struct {
	store store.Store
	log   *zap.SugaredLogger
	now   func() time.Time
}

func NewService(st store.Store, log *zap.SugaredLogger) *Service {
	return &Service{store: st, log: log, now: time.Now}
}

var Module = fx.Options(
	fx.Provide(NewService),
	fx.Invoke(registerConsumer),
)

func registerConsumer(lc fx.Lifecycle, b broker.Broker, s *Service) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			return b.Subscribe(ctx, consumerName, s.Handle)
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}

// Handle stores the notifications derived from e. Redelivered events are
// absorbed by the (event, recipient) uniqueness.
func (s *Service) Handle(ctx context.Context, e *models.Event) error {
	notices := compose(e)
	if len(notices) == 0 {
		return nil
	}
	start := time.Now()
	defer metrics.ObserveSince("notification", "handle", start)

	return s.store.InTx(ctx, func(tx store.Tx) error {
		for _, n := range notices {
			row := &models.Notification{
				ID:             tool.GenerateUUIDV7(),
				EventID:        e.ID,
				RecipientID:    n.recipient,
				Kind:           n.kind,
				Title:          n.title,
				Body:           n.body,
				EntityType:     string(e.EntityType),
				EntityID:       e.EntityID,
				SubscriptionID: e.SubscriptionID,
				Data:           e.Detail,
			}
			err := tx.CreateNotification(row)
			switch {
			case errors.Is(err, store.ErrDuplicate):
				metrics.IncCounter(metrics.MetricsNotifications, string(n.kind), "duplicate")
				continue
			case err != nil:
				metrics.IncCounter(metrics.MetricsNotifications, string(n.kind), "failed")
				return fmt.Errorf("failed to save notification: %w", err)
			}
			metrics.IncCounter(metrics.MetricsNotifications, string(n.kind), "created")
			logctx.FromCtx(ctx, s.log).Debugw("notification stored", "event_id", e.ID, "recipient_id", n.recipient, "kind", n.kind)
		}
		return nil
	})
}

type ListRequest struct {
	UnreadOnly bool `form:"unread"`
	Limit      int  `form:"limit" binding:"omitempty,min=1,max=200"`
}

// List returns the caller's inbox, newest first. Administrators also see the
// entries addressed to every administrator.
func (s *Service) List(ctx context.Context, caller identity.Identity, req ListRequest) ([]*models.Notification, error) {
	recipients, err := recipientsOf(caller)
	if err != nil {
		return nil, err
	}
	var out []*models.Notification
	err = s.store.InTx(ctx, func(tx store.Tx) error {
		rows, err := tx.ListNotifications(store.NotificationQuery{
			RecipientIDs: recipients,
			UnreadOnly:   req.UnreadOnly,
			Limit:        req.Limit,
		})
		if err != nil {
			return fmt.Errorf("failed to list notifications: %w", err)
		}
		out = rows
		return nil
	})
	return out, err
}

// MarkRead is idempotent; the first read time is kept.
func (s *Service) MarkRead(ctx context.Context, caller identity.Identity, id string) (*models.Notification, error) {
	recipients, err := recipientsOf(caller)
	if err != nil {
		return nil, err
	}
	var out *models.Notification
	err = s.store.InTx(ctx, func(tx store.Tx) error {
		n, err := tx.MarkNotificationRead(id, recipients, s.now().UTC())
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound.Withf("notification %s not found", id)
		}
		if err != nil {
			return fmt.Errorf("failed to mark notification read: %w", err)
		}
		out = n
		return nil
	})
	return out, err
}

func recipientsOf(caller identity.Identity) ([]string, error) {
	if caller.UserID == "" {
		return nil, apperr.Unauthenticated
	}
	if caller.IsAdmin() {
		return []string{caller.UserID, models.RecipientAdmins}, nil
	}
	return []string{caller.UserID}, nil
}
