package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/autoinspect/docs"
	"github.com/fatflowers/autoinspect/internal/app/api/handlers"
	mw "github.com/fatflowers/autoinspect/internal/app/api/middleware"
	"github.com/fatflowers/autoinspect/internal/app/service/assignment"
	"github.com/fatflowers/autoinspect/internal/app/service/event"
	"github.com/fatflowers/autoinspect/internal/app/service/notification"
	"github.com/fatflowers/autoinspect/internal/app/service/payment"
	"github.com/fatflowers/autoinspect/internal/app/service/statistics"
	"github.com/fatflowers/autoinspect/internal/app/service/subscription"
	"github.com/fatflowers/autoinspect/internal/app/service/vehicle"
	"github.com/fatflowers/autoinspect/internal/app/service/visit"
	"github.com/fatflowers/autoinspect/internal/platform/blob"
	"github.com/fatflowers/autoinspect/internal/platform/realtime"
	cfgpkg "github.com/fatflowers/autoinspect/pkg/config"
	"github.com/fatflowers/autoinspect/pkg/identity"
	metrics "github.com/fatflowers/autoinspect/pkg/metrics"
)

func newEngine(log *zap.SugaredLogger) (*gin.Engine, error) {
	if err := handlers.RegisterValidators(); err != nil {
		return nil, fmt.Errorf("failed to register validators: %w", err)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	// Add request tracing middleware only; request logger & access log are attached per group in registerRoutes
	r.Use(mw.TraceMiddleware(log))
	return r, nil
}

type routeParams struct {
	fx.In

	Engine        *gin.Engine
	Log           *zap.SugaredLogger
	Cfg           *cfgpkg.Config
	Blobs         blob.Store
	Subscriptions *subscription.Service
	Vehicles      *vehicle.Service
	Assignments   *assignment.Service
	Visits        *visit.Service
	Payments      *payment.Service
	Stats         *statistics.Service
	Events        *event.Service
	Notifications *notification.Service
	Hub           *realtime.Hub
}

func registerRoutes(p routeParams) {
	r, log, cfg := p.Engine, p.Log, p.Cfg
	// Prometheus metrics
	if cfg != nil && cfg.MetricsAddr != "" {
		prom := metrics.NewPrometheus(metrics.NewPrometheusOptions{
			ReqCntURLLabelMappingFn: func(c *gin.Context) string {
				if fp := c.FullPath(); fp != "" {
					return fp
				}
				return "unmatched"
			},
			MetricsList: metrics.BusinessMetrics,
			Logger:      log,
		})
		prom.SetListenAddress(cfg.MetricsAddr)
		prom.Use(r)

		log.Infow("metrics started", "addr", cfg.MetricsAddr)
	}
	// Public group: request logger + access log
	pub := r.Group("/")
	pub.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware())
	handlers.RegisterHealthRoutes(pub)
	// Swagger UI
	docs.SwaggerInfo.BasePath = "/"
	pub.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	// Evidence media written by the local blob driver
	if local, ok := p.Blobs.(*blob.Local); ok {
		pub.Static("/media", local.Dir())
	}

	// Every /api/v1 call carries an identity
	apiV1 := r.Group("/api/v1")
	apiV1.Use(mw.IdentityMiddleware(cfg, log), mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware(), mw.RequireRole())

	handlers.RegisterSubscriptionRoutes(apiV1, p.Subscriptions, cfg, log)
	handlers.RegisterVehicleRoutes(apiV1, p.Vehicles, log)
	handlers.RegisterAssignmentRoutes(apiV1, p.Assignments, log)
	handlers.RegisterVisitRoutes(apiV1, p.Visits, cfg, log)
	handlers.RegisterPaymentRoutes(apiV1, p.Payments, log)
	handlers.RegisterEventRoutes(apiV1, p.Events, p.Hub, log)
	handlers.RegisterNotificationRoutes(apiV1, p.Notifications, log)

	admin := apiV1.Group("/admin", mw.RequireRole(identity.RoleAdmin))
	handlers.RegisterAdminSubscriptionRoutes(admin, p.Subscriptions, log)
	handlers.RegisterAdminAssignmentRoutes(admin, p.Assignments, log)
	handlers.RegisterAdminVisitRoutes(admin, p.Visits, log)
	handlers.RegisterAdminPaymentRoutes(admin, p.Payments, log)
	handlers.RegisterAdminRoutes(admin, p.Stats, log)
}

func runServer(lc fx.Lifecycle, log *zap.SugaredLogger, cfg *cfgpkg.Config, r *gin.Engine) {
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("starting HTTP server", "addr", addr)
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Errorf("server error: %v", err)
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Infow("stopping HTTP server")
			shutdownCtx, cancel := context.WithTimeout(ctx, 120*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

var Module = fx.Options(
	fx.Provide(newEngine),
	fx.Invoke(registerRoutes),
	fx.Invoke(runServer),
)
