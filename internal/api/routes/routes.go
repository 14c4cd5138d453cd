package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/yoockh/staffbook/internal/api/handlers"
	"github.com/yoockh/staffbook/internal/api/middleware"
)

type Deps struct {
	Employee *handlers.EmployeeHandler
	Uploads  *handlers.UploadHandler
	Health   *handlers.HealthHandler
	Metrics  *middleware.Metrics
	// WS is nil when redis is not configured.
	WS *handlers.WSHandler
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	r.GET("/health", d.Health.Check)
	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}

	r.GET("/uploads/*name", d.Uploads.Serve)

	api := r.Group("/api/employees")
	api.GET("", d.Employee.List)
	api.GET("/search", d.Employee.Search)
	api.GET("/:id", d.Employee.Get)
	api.POST("", d.Employee.Create)
	api.PUT("/:id", d.Employee.Update)
	api.DELETE("/:id", d.Employee.Delete)

	if d.WS != nil {
		r.GET("/ws/employees", d.WS.Employees)
	}
}
