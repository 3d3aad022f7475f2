package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/formdesk/internal/services"
)

type ReportHandler struct {
	svc services.ReportService
}

func NewReportHandler(svc services.ReportService) *ReportHandler {
	return &ReportHandler{svc: svc}
}

// JobApplicationsCSV handles GET /api/descargar-postulaciones.
func (h *ReportHandler) JobApplicationsCSV(c *gin.Context) {
	out, err := h.svc.ExportJobApplicationsCSV(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="postulaciones.csv"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", out)
}
