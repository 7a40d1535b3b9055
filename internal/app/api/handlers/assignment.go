package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fatflowers/autoinspect/internal/app/service/assignment"
	"github.com/fatflowers/autoinspect/internal/models"
	"github.com/fatflowers/autoinspect/pkg/apperr"
)

// ActiveAssignmentResponse reports "none" instead of failing when nobody is assigned.
type ActiveAssignmentResponse struct {
	Status     string             `json:"status"`
	Assignment *models.Assignment `json:"assignment"`
}

// @Summary      Get Active Assignment
// @Description  Returns the technician currently assigned to the subscription, or status "none".
// @Tags         Subscription
// @Produce      json
// @Param        id path string true "Subscription ID"
// @Success      200  {object}  handlers.RespActiveAssignment
// @Router       /api/v1/subscriptions/{id}/assignment [get]
func ApiGetActiveAssignment(svc *assignment.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		a, err := svc.GetActiveCached(c.Request.Context(), caller(c), c.Param("id"))
		if errors.Is(err, apperr.NoActiveAssignment) {
			ok(c, &ActiveAssignmentResponse{Status: "none"})
			return
		}
		if err != nil {
			fail(c, log, err)
			return
		}
		ok(c, &ActiveAssignmentResponse{Status: string(a.Status), Assignment: a})
	}
}

type assignRequest struct {
	TechnicianID string `json:"technician_id" binding:"required,notblank"`
	Notes        string `json:"notes"`
}

// @Summary      Assign Technician (Admin)
// @Description  Assigns a technician, ending any previous active assignment.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        id path string true "Subscription ID"
// @Param        request body handlers.assignRequest true "Technician"
// @Success      200  {object}  handlers.RespAssignment
// @Router       /api/v1/admin/subscriptions/{id}/assign [post]
func ApiAssignTechnician(svc *assignment.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req assignRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		a, err := svc.Assign(c.Request.Context(), caller(c), c.Param("id"), req.TechnicianID, req.Notes)
		if err != nil {
			fail(c, log, err)
			return
		}
		ok(c, a)
	}
}

// @Summary      Revoke Assignment (Admin)
// @Tags         Admin
// @Produce      json
// @Param        id path string true "Subscription ID"
// @Success      200  {object}  handlers.RespAssignment
// @Router       /api/v1/admin/subscriptions/{id}/revoke [post]
func ApiRevokeAssignment(svc *assignment.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		a, err := svc.Revoke(c.Request.Context(), caller(c), c.Param("id"))
		if err != nil {
			fail(c, log, err)
			return
		}
		ok(c, a)
	}
}

// @Summary      Assignment History (Admin)
// @Tags         Admin
// @Produce      json
// @Param        id path string true "Subscription ID"
// @Success      200  {object}  handlers.RespAssignmentList
// @Router       /api/v1/admin/subscriptions/{id}/assignments [get]
func ApiAssignmentHistory(svc *assignment.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, err := svc.History(c.Request.Context(), caller(c), c.Param("id"))
		if err != nil {
			fail(c, log, err)
			return
		}
		ok(c, rows)
	}
}

// @Summary      List Technician Assignments
// @Description  Technicians see their own assignments; admins pass technician_id.
// @Tags         Technician
// @Produce      json
// @Param        technician_id query string false "Technician (admin only)"
// @Param        active query bool false "Only active assignments"
// @Success      200  {object}  handlers.RespAssignmentList
// @Router       /api/v1/technician/assignments [get]
func ApiListTechnicianAssignments(svc *assignment.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, err := svc.ListForTechnician(c.Request.Context(), caller(c), c.Query("technician_id"), c.Query("active") == "true")
		if err != nil {
			fail(c, log, err)
			return
		}
		ok(c, rows)
	}
}

func RegisterAssignmentRoutes(r gin.IRouter, svc *assignment.Service, log *zap.SugaredLogger) {
	r.GET("/subscriptions/:id/assignment", ApiGetActiveAssignment(svc, log))
	r.GET("/technician/assignments", ApiListTechnicianAssignments(svc, log))
}

func RegisterAdminAssignmentRoutes(r gin.IRouter, svc *assignment.Service, log *zap.SugaredLogger) {
	r.POST("/subscriptions/:id/assign", ApiAssignTechnician(svc, log))
	r.POST("/subscriptions/:id/revoke", ApiRevokeAssignment(svc, log))
	r.GET("/subscriptions/:id/assignments", ApiAssignmentHistory(svc, log))
}
