package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fatflowers/autoinspect/internal/app/service/subscription"
	"github.com/fatflowers/autoinspect/internal/models"
	"github.com/fatflowers/autoinspect/internal/store"
	"github.com/fatflowers/autoinspect/pkg/config"
	"github.com/fatflowers/autoinspect/pkg/identity"
)

// @Summary      Create Subscription
// @Description  Opens a subscription in pending_payment for the calling customer.
// @Tags         Subscription
// @Accept       json
// @Produce      json
// @Param        request body subscription.CreateRequest true "Plan and vehicle count"
// @Success      200  {object}  handlers.RespSubscription
// @Router       /api/v1/subscriptions [post]
func ApiCreateSubscription(svc *subscription.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req subscription.CreateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		sub, err := svc.Create(c.Request.Context(), caller(c), &req)
		if err != nil {
			fail(c, log, err)
			return
		}
		ok(c, sub)
	}
}

// @Summary      List Subscriptions
// @Description  Lists the caller's subscriptions, newest first. Admins may pass customer_id.
// @Tags         Subscription
// @Produce      json
// @Param        customer_id query string false "Customer (admin only)"
// @Success      200  {object}  handlers.RespSubscriptionList
// @Router       /api/v1/subscriptions [get]
func ApiListSubscriptions(svc *subscription.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		subs, err := svc.ListForCustomer(c.Request.Context(), caller(c), c.Query("customer_id"))
		if err != nil {
			fail(c, log, err)
			return
		}
		ok(c, subs)
	}
}

// @Summary      Get Subscription
// @Tags         Subscription
// @Produce      json
// @Param        id path string true "Subscription ID"
// @Success      200  {object}  handlers.RespSubscription
// @Router       /api/v1/subscriptions/{id} [get]
func ApiGetSubscription(svc *subscription.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		sub, err := svc.Get(c.Request.Context(), caller(c), c.Param("id"))
		if err != nil {
			fail(c, log, err)
			return
		}
		ok(c, sub)
	}
}

type autoRenewRequest struct {
	AutoRenew *bool `json:"auto_renew" binding:"required"`
}

// @Summary      Set Auto Renew
// @Tags         Subscription
// @Accept       json
// @Produce      json
// @Param        id path string true "Subscription ID"
// @Param        request body handlers.autoRenewRequest true "Flag"
// @Success      200  {object}  handlers.RespSubscription
// @Router       /api/v1/subscriptions/{id}/auto_renew [post]
func ApiSetAutoRenew(svc *subscription.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req autoRenewRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		sub, err := svc.SetAutoRenew(c.Request.Context(), caller(c), c.Param("id"), *req.AutoRenew)
		if err != nil {
			fail(c, log, err)
			return
		}
		ok(c, sub)
	}
}

// @Summary      List Plans
// @Description  Returns the configured plan catalogue.
// @Tags         Subscription
// @Produce      json
// @Success      200  {object}  handlers.RespPlans
// @Router       /api/v1/plans [get]
func ApiListPlans(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok(c, cfg.Plans)
	}
}

type lifecycleOp func(ctx context.Context, caller identity.Identity, id string) (*models.Subscription, error)

// lifecycle adapts the admin subscription operations that take only an id.
func lifecycle(op lifecycleOp, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		sub, err := op(c.Request.Context(), caller(c), c.Param("id"))
		if err != nil {
			fail(c, log, err)
			return
		}
		ok(c, sub)
	}
}

// @Summary      Cancel Subscription (Admin)
// @Tags         Admin
// @Produce      json
// @Param        id path string true "Subscription ID"
// @Success      200  {object}  handlers.RespSubscription
// @Router       /api/v1/admin/subscriptions/{id}/cancel [post]
func ApiCancelSubscription(svc *subscription.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return lifecycle(svc.Cancel, log)
}

// @Summary      Reactivate Subscription (Admin)
// @Tags         Admin
// @Produce      json
// @Param        id path string true "Subscription ID"
// @Success      200  {object}  handlers.RespSubscription
// @Router       /api/v1/admin/subscriptions/{id}/reactivate [post]
func ApiReactivateSubscription(svc *subscription.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return lifecycle(svc.Reactivate, log)
}

// @Summary      Renew Subscription (Admin)
// @Tags         Admin
// @Produce      json
// @Param        id path string true "Subscription ID"
// @Success      200  {object}  handlers.RespSubscription
// @Router       /api/v1/admin/subscriptions/{id}/renew [post]
func ApiRenewSubscription(svc *subscription.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return lifecycle(svc.Renew, log)
}

type extendRequest struct {
	Months int `json:"months" binding:"required,min=1,max=1200"`
}

// @Summary      Extend Subscription (Admin)
// @Description  Pushes the end date forward by a number of months.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        id path string true "Subscription ID"
// @Param        request body handlers.extendRequest true "Months"
// @Success      200  {object}  handlers.RespSubscription
// @Router       /api/v1/admin/subscriptions/{id}/extend [post]
func ApiExtendSubscription(svc *subscription.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req extendRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		sub, err := svc.Extend(c.Request.Context(), caller(c), c.Param("id"), req.Months)
		if err != nil {
			fail(c, log, err)
			return
		}
		ok(c, sub)
	}
}

// @Summary      List Subscriptions (Admin)
// @Description  Retrieves a paginated and filterable list of all subscriptions.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body store.ScanRequest true "Filters, pagination and sorting"
// @Success      200  {object}  handlers.RespSubscriptionScan
// @Router       /api/v1/admin/list_subscriptions [post]
func ApiScanSubscriptions(svc *subscription.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req store.ScanRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		res, err := svc.Scan(c.Request.Context(), &req)
		if err != nil {
			fail(c, log, err)
			return
		}
		ok(c, res)
	}
}

func RegisterSubscriptionRoutes(r gin.IRouter, svc *subscription.Service, cfg *config.Config, log *zap.SugaredLogger) {
	r.GET("/plans", ApiListPlans(cfg))
	r.POST("/subscriptions", ApiCreateSubscription(svc, log))
	r.GET("/subscriptions", ApiListSubscriptions(svc, log))
	r.GET("/subscriptions/:id", ApiGetSubscription(svc, log))
	r.POST("/subscriptions/:id/auto_renew", ApiSetAutoRenew(svc, log))
}

func RegisterAdminSubscriptionRoutes(r gin.IRouter, svc *subscription.Service, log *zap.SugaredLogger) {
	r.POST("/list_subscriptions", ApiScanSubscriptions(svc, log))
	r.POST("/subscriptions/:id/cancel", ApiCancelSubscription(svc, log))
	r.POST("/subscriptions/:id/reactivate", ApiReactivateSubscription(svc, log))
	r.POST("/subscriptions/:id/renew", ApiRenewSubscription(svc, log))
	r.POST("/subscriptions/:id/extend", ApiExtendSubscription(svc, log))
}
