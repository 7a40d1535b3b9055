package handlers

import (
	"encoding/json"
	"fmt"
	"mime/multipart"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/fatflowers/autoinspect/internal/app/service/visit"
	"github.com/fatflowers/autoinspect/internal/models"
	"github.com/fatflowers/autoinspect/pkg/config"
	"github.com/fatflowers/autoinspect/pkg/types"
)

// VisitView is a visit plus its rendered findings text.
type VisitView struct {
	*models.Visit
	FindingsText string `json:"findings_text"`
}

func toVisitView(v *models.Visit) *VisitView {
	return &VisitView{Visit: v, FindingsText: visit.RenderFindings(v.SystemFindings.Data(), v.Findings)}
}

// @Summary      Start Visit
// @Description  Opens the next visit of a subscription. Caller must hold the active assignment.
// @Tags         Technician
// @Produce      json
// @Param        id path string true "Subscription ID"
// @Success      200  {object}  handlers.RespVisit
// @Router       /api/v1/subscriptions/{id}/visits [post]
func ApiStartVisit(svc *visit.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, err := svc.Start(c.Request.Context(), caller(c), c.Param("id"))
		if err != nil {
			fail(c, log, err)
			return
		}
		ok(c, toVisitView(v))
	}
}

// @Summary      List Visits
// @Tags         Subscription
// @Produce      json
// @Param        id path string true "Subscription ID"
// @Param        status query string false "Visit status"
// @Success      200  {object}  handlers.RespVisitList
// @Router       /api/v1/subscriptions/{id}/visits [get]
func ApiListVisits(svc *visit.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, err := svc.ListForSubscription(c.Request.Context(), caller(c), c.Param("id"), types.VisitStatus(c.Query("status")))
		if err != nil {
			fail(c, log, err)
			return
		}
		ok(c, lo.Map(rows, func(v *models.Visit, _ int) *VisitView { return toVisitView(v) }))
	}
}

// @Summary      Get Visit
// @Tags         Technician
// @Produce      json
// @Param        id path string true "Visit ID"
// @Success      200  {object}  handlers.RespVisit
// @Router       /api/v1/visits/{id} [get]
func ApiGetVisit(svc *visit.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, err := svc.Get(c.Request.Context(), caller(c), c.Param("id"))
		if err != nil {
			fail(c, log, err)
			return
		}
		ok(c, toVisitView(v))
	}
}

// @Summary      Record Findings
// @Description  Replaces the draft findings of an in-progress visit.
// @Tags         Technician
// @Accept       json
// @Produce      json
// @Param        id path string true "Visit ID"
// @Param        request body visit.FindingsRequest true "Findings"
// @Success      200  {object}  handlers.RespVisit
// @Router       /api/v1/visits/{id}/findings [put]
func ApiRecordFindings(svc *visit.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req visit.FindingsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		v, err := svc.RecordFindings(c.Request.Context(), caller(c), c.Param("id"), &req)
		if err != nil {
			fail(c, log, err)
			return
		}
		ok(c, toVisitView(v))
	}
}

// @Summary      Submit Visit
// @Description  Uploads evidence media and moves the visit to pending_confirmation. Multipart form: "payload" holds the JSON submit request, each "media" part is a file, "captions" optionally labels the files in order.
// @Tags         Technician
// @Accept       multipart/form-data
// @Produce      json
// @Param        id path string true "Visit ID"
// @Param        payload formData string false "visit.SubmitRequest as JSON"
// @Param        media formData file false "Evidence file"
// @Success      200  {object}  handlers.RespVisit
// @Router       /api/v1/visits/{id}/submit [post]
func ApiSubmitVisit(svc *visit.Service, cfg *config.Config, log *zap.SugaredLogger) gin.HandlerFunc {
	maxBytes := cfg.Blob.MaxUploadMB << 20
	return func(c *gin.Context) {
		var req visit.SubmitRequest
		var files []*multipart.FileHeader
		var captions []string

		if form, err := c.MultipartForm(); err == nil {
			if p := form.Value["payload"]; len(p) > 0 && p[0] != "" {
				if err := json.Unmarshal([]byte(p[0]), &req); err != nil {
					badRequest(c, fmt.Errorf("invalid payload: %w", err))
					return
				}
				if err := binding.Validator.ValidateStruct(&req); err != nil {
					badRequest(c, err)
					return
				}
			}
			files = form.File["media"]
			captions = form.Value["captions"]
		} else if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}

		uploads := make([]visit.Upload, 0, len(files))
		for i, fh := range files {
			if maxBytes > 0 && fh.Size > maxBytes {
				badRequest(c, fmt.Errorf("file %s exceeds %d MB", fh.Filename, cfg.Blob.MaxUploadMB))
				return
			}
			f, err := fh.Open()
			if err != nil {
				badRequest(c, fmt.Errorf("failed to open %s: %w", fh.Filename, err))
				return
			}
			defer f.Close()
			u := visit.Upload{
				Filename:    fh.Filename,
				ContentType: fh.Header.Get("Content-Type"),
				Size:        fh.Size,
				Body:        f,
			}
			if i < len(captions) {
				u.Caption = captions[i]
			}
			uploads = append(uploads, u)
		}

		v, err := svc.Submit(c.Request.Context(), caller(c), c.Param("id"), &req, uploads)
		if err != nil {
			fail(c, log, err)
			return
		}
		ok(c, toVisitView(v))
	}
}

// @Summary      Confirm Visit (Admin)
// @Tags         Admin
// @Produce      json
// @Param        id path string true "Visit ID"
// @Success      200  {object}  handlers.RespVisit
// @Router       /api/v1/admin/visits/{id}/confirm [post]
func ApiConfirmVisit(svc *visit.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, err := svc.Confirm(c.Request.Context(), caller(c), c.Param("id"))
		if err != nil {
			fail(c, log, err)
			return
		}
		ok(c, toVisitView(v))
	}
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

// @Summary      Reject Visit (Admin)
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        id path string true "Visit ID"
// @Param        request body handlers.reasonRequest true "Rejection reason"
// @Success      200  {object}  handlers.RespVisit
// @Router       /api/v1/admin/visits/{id}/reject [post]
func ApiRejectVisit(svc *visit.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req reasonRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		v, err := svc.Reject(c.Request.Context(), caller(c), c.Param("id"), req.Reason)
		if err != nil {
			fail(c, log, err)
			return
		}
		ok(c, toVisitView(v))
	}
}

// @Summary      Vehicle Systems
// @Description  Returns the catalogue of systems a finding may reference.
// @Tags         Technician
// @Produce      json
// @Success      200  {object}  handlers.RespSystems
// @Router       /api/v1/systems [get]
func ApiListSystems(c *gin.Context) {
	ok(c, visit.Catalogue)
}

func RegisterVisitRoutes(r gin.IRouter, svc *visit.Service, cfg *config.Config, log *zap.SugaredLogger) {
	r.GET("/systems", ApiListSystems)
	r.POST("/subscriptions/:id/visits", ApiStartVisit(svc, log))
	r.GET("/subscriptions/:id/visits", ApiListVisits(svc, log))
	r.GET("/visits/:id", ApiGetVisit(svc, log))
	r.PUT("/visits/:id/findings", ApiRecordFindings(svc, log))
	r.POST("/visits/:id/submit", ApiSubmitVisit(svc, cfg, log))
}

func RegisterAdminVisitRoutes(r gin.IRouter, svc *visit.Service, log *zap.SugaredLogger) {
	r.POST("/visits/:id/confirm", ApiConfirmVisit(svc, log))
	r.POST("/visits/:id/reject", ApiRejectVisit(svc, log))
}
