package handlers

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fatflowers/autoinspect/internal/app/service/notification"
)

// @Summary      List Notifications
// @Description  Returns the caller's inbox, newest first. Administrators also receive entries addressed to all administrators.
// @Tags         Notifications
// @Produce      json
// @Param        unread query bool false "Only unread entries"
// @Param        limit query int false "Page size, at most 200"
// @Success      200  {object}  handlers.RespNotificationList
// @Router       /api/v1/notifications [get]
func ApiListNotifications(svc *notification.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req notification.ListRequest
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

// @Summary      Mark Notification Read
// @Tags         Notifications
// @Produce      json
// @Param        id path string true "Notification ID"
// @Success      200  {object}  handlers.RespNotification
// @Router       /api/v1/notifications/{id}/read [post]
func ApiMarkNotificationRead(svc *notification.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := svc.MarkRead(c.Request.Context(), caller(c), c.Param("id"))
		if err != nil {
			fail(c, log, err)
			return
		}
		ok(c, n)
	}
}

func RegisterNotificationRoutes(r gin.IRouter, svc *notification.Service, log *zap.SugaredLogger) {
	r.GET("/notifications", ApiListNotifications(svc, log))
	r.POST("/notifications/:id/read", ApiMarkNotificationRead(svc, log))
}
