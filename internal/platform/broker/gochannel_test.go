package broker

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fatflowers/autoinspect/internal/models"
	"github.com/fatflowers/autoinspect/pkg/types"
)

func TestGoChannel_PublishSubscribe(t *testing.T) {
	b := NewGoChannel(zap.NewNop().Sugar())
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan *models.Event, 4)
	require.NoError(t, b.Subscribe(ctx, "test", func(ctx context.Context, e *models.Event) error {
		got <- e
		return nil
	}))

	sent := &models.Event{
		ID:         "e1",
		EntityType: types.EntityTypeVisit,
		EntityID:   "v1",
		Seq:        3,
		ToStatus:   string(types.VisitStatusConfirmed),
		Detail:     map[string]interface{}{"visit_number": float64(2)},
		OccurredAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, b.Publish(ctx, sent))

	select {
	case e := <-got:
		assert.Equal(t, sent.ID, e.ID)
		assert.Equal(t, sent.Seq, e.Seq)
		assert.Equal(t, "visit.confirmed", e.Subject())
		assert.True(t, sent.OccurredAt.Equal(e.OccurredAt))
		assert.Equal(t, float64(2), e.Detail["visit_number"])
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}
}

func TestGoChannel_PreservesPublishOrder(t *testing.T) {
	b := NewGoChannel(zap.NewNop().Sugar())
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	const n = 64
	var (
		mu  sync.Mutex
		got []int64
	)
	require.NoError(t, b.Subscribe(ctx, "ordered", func(ctx context.Context, e *models.Event) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, e.Seq)
		return nil
	}))

	want := make([]int64, 0, n)
	for i := int64(1); i <= n; i++ {
		require.NoError(t, b.Publish(ctx, &models.Event{
			ID: fmt.Sprintf("e%d", i), EntityType: types.EntityTypeVisit, EntityID: "v1", Seq: i,
			ToStatus: string(types.VisitStatusInProgress),
		}))
		want = append(want, i)
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, want, got)
}

func TestEncodeDecode_DropsDispatchMarker(t *testing.T) {
	now := time.Now()
	data, err := encode(&models.Event{ID: "e1", DispatchedAt: &now})
	require.NoError(t, err)
	e, err := decode(data)
	require.NoError(t, err)
	assert.Nil(t, e.DispatchedAt)
}
