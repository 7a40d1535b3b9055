package event

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fatflowers/autoinspect/internal/app/service/access"
	"github.com/fatflowers/autoinspect/internal/models"
	"github.com/fatflowers/autoinspect/internal/store"
	"github.com/fatflowers/autoinspect/pkg/apperr"
	"github.com/fatflowers/autoinspect/pkg/identity"
	"github.com/fatflowers/autoinspect/pkg/types"
)

const maxPollLimit = 500

type ListRequest struct {
	EntityType     types.EntityType `form:"entity_type"`
	EntityID       string           `form:"entity_id"`
	SubscriptionID string           `form:"subscription_id"`
	ActorID        string           `form:"actor_id"`
	AfterSeq       int64            `form:"after_seq"`
	Limit          int              `form:"limit"`
}

// Service answers polling queries over the event log.
type Service struct {
	store store.Store
	log   *zap.SugaredLogger
}

func NewService(st store.Store, log *zap.SugaredLogger) *Service {
	return &Service{store: st, log: log}
}

// List returns events in occurrence order. Non-admin callers must scope the
// query to something they can read: a subscription, a visit, or themselves.
func (s *Service) List(ctx context.Context, caller identity.Identity, req ListRequest) ([]*models.Event, error) {
	if req.Limit <= 0 || req.Limit > maxPollLimit {
		req.Limit = 100
	}
	if req.EntityID != "" && req.EntityType == "" {
		return nil, apperr.InvalidArgument.Withf("entity_type is required with entity_id")
	}
	var out []*models.Event
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		if err := authorizeQuery(tx, caller, req); err != nil {
			return err
		}
		rows, err := tx.ListEvents(store.EventQuery{
			EntityType:     req.EntityType,
			EntityID:       req.EntityID,
			SubscriptionID: req.SubscriptionID,
			ActorID:        req.ActorID,
			AfterSeq:       req.AfterSeq,
			Limit:          req.Limit,
		})
		if err != nil {
			return fmt.Errorf("failed to list events: %w", err)
		}
		out = rows
		return nil
	})
	return out, err
}

func authorizeQuery(tx store.Tx, caller identity.Identity, req ListRequest) error {
	if caller.IsAdmin() {
		return nil
	}
	switch {
	case req.SubscriptionID != "":
		if _, err := access.SubscriptionByID(tx, caller, req.SubscriptionID); err != nil {
			return err
		}
		if req.EntityID == "" {
			return nil
		}
		return authorizeEntity(tx, caller, req.EntityType, req.EntityID)
	case req.EntityID != "":
		return authorizeEntity(tx, caller, req.EntityType, req.EntityID)
	case req.ActorID != "":
		if req.ActorID == caller.UserID {
			return nil
		}
	}
	return apperr.Forbidden
}

func authorizeEntity(tx store.Tx, caller identity.Identity, typ types.EntityType, id string) error {
	switch typ {
	case types.EntityTypeSubscription:
		_, err := access.SubscriptionByID(tx, caller, id)
		return err
	case types.EntityTypeVisit:
		v, err := tx.GetVisit(id)
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound.Withf("visit %s not found", id)
		}
		if err != nil {
			return fmt.Errorf("failed to get visit: %w", err)
		}
		return access.Visit(tx, caller, v)
	}
	return apperr.Forbidden
}

// Topic kinds a realtime client may watch.
const (
	TopicSubscription = "subscription"
	TopicVisit        = "visit"
	TopicActor        = "actor"
)

// ParseTopic splits "kind:id".
func ParseTopic(topic string) (kind, id string, err error) {
	kind, id, ok := strings.Cut(topic, ":")
	if !ok || id == "" {
		return "", "", apperr.InvalidArgument.Withf("invalid topic %q", topic)
	}
	switch kind {
	case TopicSubscription, TopicVisit, TopicActor:
		return kind, id, nil
	}
	return "", "", apperr.InvalidArgument.Withf("unknown topic kind %q", kind)
}

// AuthorizeTopic reports whether caller may watch topic.
func (s *Service) AuthorizeTopic(ctx context.Context, caller identity.Identity, topic string) error {
	kind, id, err := ParseTopic(topic)
	if err != nil {
		return err
	}
	if caller.IsAdmin() {
		return nil
	}
	if kind == TopicActor {
		if id == caller.UserID {
			return nil
		}
		return apperr.Forbidden
	}
	return s.store.InTx(ctx, func(tx store.Tx) error {
		return authorizeEntity(tx, caller, types.EntityType(kind), id)
	})
}

// Topics lists every topic an event is delivered to.
func Topics(e *models.Event) []string {
	seen := map[string]bool{}
	var out []string
	add := func(kind, id string) {
		if id == "" {
			return
		}
		t := kind + ":" + id
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	add(TopicSubscription, e.SubscriptionID)
	if e.EntityType == types.EntityTypeSubscription {
		add(TopicSubscription, e.EntityID)
	}
	if e.EntityType == types.EntityTypeVisit {
		add(TopicVisit, e.EntityID)
	}
	add(TopicActor, e.ActorID)
	for _, key := range []string{"customer_id", "technician_id", "previous_technician_id"} {
		if v, ok := e.Detail[key].(string); ok {
			add(TopicActor, v)
		}
	}
	return out
}
