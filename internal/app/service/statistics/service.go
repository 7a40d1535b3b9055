// Package statistics serves the admin dashboard figures.
package statistics

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"
	"go.uber.org/fx"

	"github.com/fatflowers/autoinspect/internal/models"
	"github.com/fatflowers/autoinspect/internal/store"
	"github.com/fatflowers/autoinspect/pkg/apperr"
	"github.com/fatflowers/autoinspect/pkg/types"
)

type StatisticType string

const (
	StatisticTypeSubscriptionsByStatus StatisticType = "subscriptions_by_status"
	StatisticTypeVisitsByStatus        StatisticType = "visits_by_status"
	StatisticTypeAwaitingVerification  StatisticType = "awaiting_verification"
	StatisticTypeRevenue               StatisticType = "revenue"
)

var AllStatisticTypes = []StatisticType{
	StatisticTypeSubscriptionsByStatus,
	StatisticTypeVisitsByStatus,
	StatisticTypeAwaitingVerification,
	StatisticTypeRevenue,
}

const defaultRevenueWindow = 30 * 24 * time.Hour

type DashboardRequest struct {
	DataItems []StatisticType `json:"data_items" form:"data_items"`
	// Since bounds the revenue figure; defaults to the last 30 days.
	Since *time.Time `json:"since" form:"since" time_format:"2006-01-02"`
}

type DataItem struct {
	Label string `json:"label,omitempty"`
	Value int64  `json:"value"`
}

type DashboardResponse struct {
	DataItems map[StatisticType][]DataItem `json:"data_items"`
}

type Service struct {
	store store.Store
	now   func() time.Time
}

func New(st store.Store) *Service { return &Service{store: st, now: time.Now} }

var Module = fx.Options(
	fx.Provide(New),
)

func (s *Service) getSubscriptionsByStatus(ctx context.Context, _ *DashboardRequest) ([]DataItem, error) {
	var counts map[types.SubscriptionStatus]int64
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		counts, err = tx.CountSubscriptionsByStatus()
		return err
	})
	if err != nil {
		return nil, err
	}
	return labelled(lo.MapKeys(counts, func(_ int64, k types.SubscriptionStatus) string { return string(k) })), nil
}

func (s *Service) getVisitsByStatus(ctx context.Context, _ *DashboardRequest) ([]DataItem, error) {
	var counts map[types.VisitStatus]int64
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		counts, err = tx.CountVisitsByStatus()
		return err
	})
	if err != nil {
		return nil, err
	}
	return labelled(lo.MapKeys(counts, func(_ int64, k types.VisitStatus) string { return string(k) })), nil
}

func (s *Service) getAwaitingVerification(ctx context.Context, _ *DashboardRequest) ([]DataItem, error) {
	var n int64
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		pending, err := tx.ListSubscriptions(store.SubscriptionQuery{Statuses: []types.SubscriptionStatus{types.SubscriptionStatusPendingPayment}})
		if err != nil {
			return err
		}
		n = int64(lo.CountBy(pending, func(sub *models.Subscription) bool { return sub.AwaitingVerification() }))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return []DataItem{{Value: n}}, nil
}

func (s *Service) getRevenue(ctx context.Context, request *DashboardRequest) ([]DataItem, error) {
	since := s.now().Add(-defaultRevenueWindow)
	if request.Since != nil {
		since = *request.Since
	}
	var sums map[string]int64
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		sums, err = tx.SumPayments(since)
		return err
	})
	if err != nil {
		return nil, err
	}
	return labelled(sums), nil
}

// labelled turns a count map into items sorted by label.
func labelled(m map[string]int64) []DataItem {
	out := make([]DataItem, 0, len(m))
	for k, v := range m {
		out = append(out, DataItem{Label: k, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out
}

func (s *Service) getStatistic(ctx context.Context, request *DashboardRequest, id StatisticType) ([]DataItem, error) {
	switch id {
	case StatisticTypeSubscriptionsByStatus:
		return s.getSubscriptionsByStatus(ctx, request)
	case StatisticTypeVisitsByStatus:
		return s.getVisitsByStatus(ctx, request)
	case StatisticTypeAwaitingVerification:
		return s.getAwaitingVerification(ctx, request)
	case StatisticTypeRevenue:
		return s.getRevenue(ctx, request)
	default:
		return nil, apperr.InvalidArgument.Withf("invalid data item id: %s", id)
	}
}

// GetDashboard computes the requested data items concurrently; all of them when none are named.
func (s *Service) GetDashboard(ctx context.Context, request *DashboardRequest) (*DashboardResponse, error) {
	items := lo.Uniq(request.DataItems)
	if len(items) == 0 {
		items = AllStatisticTypes
	}

	var wg sync.WaitGroup
	errChan := make(chan error, len(items))
	resChan := make(chan *lo.Entry[StatisticType, []DataItem], len(items))

	for _, item := range items {
		wg.Add(1)
		go func(id StatisticType) {
			defer wg.Done()
			res, err := s.getStatistic(ctx, request, id)
			if err != nil {
				errChan <- err
				return
			}
			resChan <- &lo.Entry[StatisticType, []DataItem]{Key: id, Value: res}
		}(item)
	}

	go func() { wg.Wait(); close(errChan); close(resChan) }()

	results := make(map[StatisticType][]DataItem)
	for i := 0; i < len(items); i++ {
		select {
		case err := <-errChan:
			if err != nil {
				return nil, err
			}
		case entry := <-resChan:
			results[entry.Key] = entry.Value
		}
	}
	return &DashboardResponse{DataItems: results}, nil
}
