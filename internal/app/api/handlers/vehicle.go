package handlers

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fatflowers/autoinspect/internal/app/service/vehicle"
)

// @Summary      Add Vehicle
// @Description  Registers a vehicle on a subscription; at most vehicle_count vehicles.
// @Tags         Subscription
// @Accept       json
// @Produce      json
// @Param        id path string true "Subscription ID"
// @Param        request body vehicle.AddRequest true "Vehicle"
// @Success      200  {object}  handlers.RespVehicle
// @Router       /api/v1/subscriptions/{id}/vehicles [post]
func ApiAddVehicle(svc *vehicle.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req vehicle.AddRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		v, err := svc.Add(c.Request.Context(), caller(c), c.Param("id"), &req)
		if err != nil {
			fail(c, log, err)
			return
		}
		ok(c, v)
	}
}

// @Summary      List Vehicles
// @Tags         Subscription
// @Produce      json
// @Param        id path string true "Subscription ID"
// @Success      200  {object}  handlers.RespVehicleList
// @Router       /api/v1/subscriptions/{id}/vehicles [get]
func ApiListVehicles(svc *vehicle.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		vs, err := svc.List(c.Request.Context(), caller(c), c.Param("id"))
		if err != nil {
			fail(c, log, err)
			return
		}
		ok(c, vs)
	}
}

func RegisterVehicleRoutes(r gin.IRouter, svc *vehicle.Service, log *zap.SugaredLogger) {
	r.POST("/subscriptions/:id/vehicles", ApiAddVehicle(svc, log))
	r.GET("/subscriptions/:id/vehicles", ApiListVehicles(svc, log))
}
