package routes

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/formdesk/config"
	"github.com/yoockh/formdesk/internal/api/handlers"
	"github.com/yoockh/formdesk/internal/api/middleware"
	"github.com/yoockh/formdesk/internal/ratelimit"
	"github.com/yoockh/formdesk/internal/utils"
)

type Deps struct {
	Logger      *logrus.Logger
	Limiter     ratelimit.Limiter
	CORS        config.CORSConfig
	Submissions *handlers.SubmissionHandler
	Reports     *handlers.ReportHandler

	// ReportGuard protects the CSV download; nil leaves it open.
	ReportGuard gin.HandlerFunc
	// StaticDir serves a built frontend with an index.html fallback.
	StaticDir      string
	TrustedProxies []string
}

// NewEngine builds the gin engine with the full middleware chain. The rate
// limiter runs before routing and before preflight handling, so every request
// is counted and throttled ones never reach a handler.
func NewEngine(d Deps) (*gin.Engine, error) {
	r := gin.New()
	if err := r.SetTrustedProxies(d.TrustedProxies); err != nil {
		return nil, err
	}

	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(d.Logger))
	r.Use(middleware.CORS(d.CORS))
	if d.Limiter != nil {
		r.Use(middleware.RateLimit(d.Limiter, d.Logger))
	}
	r.Use(middleware.Preflight(d.CORS))

	RegisterRoutes(r, d)
	return r, nil
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	r.GET("/health", handlers.Health)

	api := r.Group("/api")
	api.GET("/health", handlers.Health)
	api.POST("/formulario", d.Submissions.JobApplication)
	api.POST("/quejas", d.Submissions.Complaint)

	report := []gin.HandlerFunc{d.Reports.JobApplicationsCSV}
	if d.ReportGuard != nil {
		report = append([]gin.HandlerFunc{d.ReportGuard}, report...)
	}
	api.GET("/descargar-postulaciones", report...)

	if d.StaticDir != "" {
		r.NoRoute(spa(d.StaticDir))
	}
}

// spa serves files from dir and falls back to index.html for unknown
// non-API GET paths.
func spa(dir string) gin.HandlerFunc {
	index := filepath.Join(dir, "index.html")
	files := http.Dir(dir)

	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet || strings.HasPrefix(c.Request.URL.Path, "/api/") {
			c.JSON(http.StatusNotFound, handlers.APIError{Code: utils.CodeNotFound, Message: "not found"})
			return
		}

		if f, err := files.Open(c.Request.URL.Path); err == nil {
			st, statErr := f.Stat()
			f.Close()
			if statErr == nil && !st.IsDir() {
				c.FileFromFS(c.Request.URL.Path, files)
				return
			}
		}
		if _, err := os.Stat(index); err != nil {
			c.Status(http.StatusNotFound)
			return
		}
		c.File(index)
	}
}
