package handlers

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fatflowers/autoinspect/internal/app/service/statistics"
)

// @Summary      Get Dashboard (Admin)
// @Description  Subscription and visit counts by status, evidence awaiting verification and recent revenue. All items when data_items is empty.
// @Tags         Admin
// @Produce      json
// @Param        data_items query []string false "subscriptions_by_status, visits_by_status, awaiting_verification, revenue" collectionFormat(multi)
// @Param        since query string false "Revenue window start, YYYY-MM-DD"
// @Success      200  {object}  handlers.RespDashboard
// @Router       /api/v1/admin/dashboard [get]
func ApiGetDashboard(svc *statistics.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req statistics.DashboardRequest
		if err := c.ShouldBindQuery(&req); err != nil {
			badRequest(c, err)
			return
		}
		res, err := svc.GetDashboard(c.Request.Context(), &req)
		if err != nil {
			fail(c, log, err)
			return
		}
		ok(c, res)
	}
}

func RegisterAdminRoutes(r gin.IRouter, stats *statistics.Service, log *zap.SugaredLogger) {
	r.GET("/dashboard", ApiGetDashboard(stats, log))
}
