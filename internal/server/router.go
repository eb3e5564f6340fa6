package server

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/clinic-scheduler-api/internal/handler"
	"github.com/noah-isme/clinic-scheduler-api/internal/middleware"
	"github.com/noah-isme/clinic-scheduler-api/internal/models"
	"github.com/noah-isme/clinic-scheduler-api/internal/service"
	"github.com/noah-isme/clinic-scheduler-api/pkg/config"
	"github.com/noah-isme/clinic-scheduler-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/clinic-scheduler-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/clinic-scheduler-api/pkg/middleware/requestid"
)

// Deps are the collaborators the HTTP surface is wired from.
type Deps struct {
	Config       *config.Config
	Logger       *zap.Logger
	Auth         *service.AuthService
	Metrics      *service.MetricsService
	RateLimiter  *middleware.RateLimiter
	Bookings     *handler.BookingHandler
	Availability *handler.AvailabilityHandler
	Reports      *handler.ReportHandler
	Observe      *handler.MetricsHandler
}

// NewRouter builds the gin engine with public health endpoints and the authenticated API.
func NewRouter(d Deps) *gin.Engine {
	if d.Config.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(d.Logger))
	r.Use(corsmiddleware.New(d.Config.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(d.Metrics))

	r.GET("/health", d.Observe.Health)
	r.GET("/ready", d.Observe.Ready)
	r.GET("/metrics", d.Observe.Prometheus)
	if d.Config.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(d.Config.APIPrefix, middleware.JWT(d.Auth))
	writes := d.RateLimiter.Middleware()

	providers := api.Group("/providers")
	providers.GET("", d.Reports.Providers)
	providers.GET("/:id/availability", d.Availability.Slots)
	providers.GET("/:id/agenda", middleware.RequireRoles(models.RoleDoctor, models.RoleAdmin), d.Availability.Agenda)

	bookings := api.Group("/bookings")
	bookings.POST("", writes, middleware.RequireRoles(models.RolePatient, models.RoleAdmin), d.Bookings.Create)
	bookings.GET("", d.Bookings.List)
	bookings.GET("/stats", d.Bookings.Stats)
	bookings.GET("/:id", d.Bookings.Get)
	bookings.PUT("/:id", writes, d.Bookings.Update)
	bookings.DELETE("/:id", writes, d.Bookings.Cancel)
	bookings.POST("/:id/confirm", writes, middleware.RequireRoles(models.RoleDoctor, models.RoleAdmin), d.Bookings.Confirm)
	bookings.POST("/:id/complete", writes, middleware.RequireRoles(models.RoleDoctor, models.RoleAdmin), d.Bookings.Complete)

	reports := api.Group("/reports", middleware.RequireRoles(models.RoleAdmin))
	reports.GET("/monthly", d.Reports.Monthly)

	return r
}
