package app

import (
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/autoinspect/internal/app/api/server"
	"github.com/fatflowers/autoinspect/internal/app/service/assignment"
	"github.com/fatflowers/autoinspect/internal/app/service/event"
	"github.com/fatflowers/autoinspect/internal/app/service/notification"
	"github.com/fatflowers/autoinspect/internal/app/service/payment"
	"github.com/fatflowers/autoinspect/internal/app/service/statistics"
	"github.com/fatflowers/autoinspect/internal/app/service/subscription"
	"github.com/fatflowers/autoinspect/internal/app/service/vehicle"
	"github.com/fatflowers/autoinspect/internal/app/service/visit"
	"github.com/fatflowers/autoinspect/internal/platform/blob"
	"github.com/fatflowers/autoinspect/internal/platform/broker"
	"github.com/fatflowers/autoinspect/internal/platform/db"
	"github.com/fatflowers/autoinspect/internal/platform/realtime"
	"github.com/fatflowers/autoinspect/internal/platform/tracing"
	"github.com/fatflowers/autoinspect/pkg/config"
	"github.com/fatflowers/autoinspect/pkg/logger"
)

const (
	DefaultStartTimeout = 15 * time.Second
	DefaultStopTimeout  = 10 * time.Second
)

func newHub(b broker.Broker, events *event.Service, log *zap.SugaredLogger) *realtime.Hub {
	return realtime.NewHub(b, events, event.Topics, log)
}

var Module = fx.Options(
	logger.Module,
	config.Module,
	tracing.Module,
	db.Module,
	broker.Module,
	blob.Module,
	event.Module,
	notification.Module,
	subscription.Module,
	vehicle.Module,
	assignment.Module,
	visit.Module,
	payment.Module,
	statistics.Module,
	fx.Provide(newHub),
	fx.Invoke(realtime.Register),
	server.Module,
)
