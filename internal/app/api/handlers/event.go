package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/fatflowers/autoinspect/internal/app/service/event"
	"github.com/fatflowers/autoinspect/internal/platform/realtime"
	"github.com/fatflowers/autoinspect/pkg/logctx"
)

// @Summary      Poll Events
// @Description  Returns transition events after after_seq in occurrence order. Non-admins must scope by subscription_id, entity or their own actor_id.
// @Tags         Events
// @Produce      json
// @Param        subscription_id query string false "Subscription"
// @Param        entity_type query string false "subscription, vehicle, assignment, visit, payment or invoice"
// @Param        entity_id query string false "Entity"
// @Param        actor_id query string false "Actor"
// @Param        after_seq query int false "Only events with a larger seq"
// @Param        limit query int false "Page size, at most 500"
// @Success      200  {object}  handlers.RespEventList
// @Router       /api/v1/events [get]
func ApiListEvents(svc *event.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req event.ListRequest
		if err := c.ShouldBindQuery(&req); err != nil {
			badRequest(c, err)
			return
		}
		rows, err := svc.List(c.Request.Context(), caller(c), req)
		if err != nil {
			fail(c, log, err)
			return
		}
		ok(c, rows)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Any origin; callers authenticate with a bearer or access_token.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// @Summary      Event Stream
// @Description  Upgrades to a websocket. Send {"type":"subscribe","topics":["subscription:<id>","visit:<id>","actor:<id>"]} to receive events.
// @Tags         Events
// @Param        access_token query string false "Identity token for browsers"
// @Router       /api/v1/ws [get]
func ApiEventStream(hub *realtime.Hub, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := caller(c)
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logctx.FromGin(c, log).Warnw("websocket upgrade failed", "err", err)
			return
		}
		hub.Serve(logctx.Detach(c.Request.Context()), conn, id)
	}
}

func RegisterEventRoutes(r gin.IRouter, svc *event.Service, hub *realtime.Hub, log *zap.SugaredLogger) {
	r.GET("/events", ApiListEvents(svc, log))
	r.GET("/ws", ApiEventStream(hub, log))
}
