package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/college-portal-api/internal/handler"
	internalmiddleware "github.com/noah-isme/college-portal-api/internal/middleware"
	"github.com/noah-isme/college-portal-api/internal/service"
	"github.com/noah-isme/college-portal-api/pkg/config"
	"github.com/noah-isme/college-portal-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/college-portal-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/college-portal-api/pkg/middleware/requestid"
)

type routeDeps struct {
	db         handler.Pinger
	metrics    *service.MetricsService
	tokens     *service.TokenService
	students   *service.StudentService
	attendance *service.AttendanceService
	statistics *service.StatisticsService
	promotions *service.PromotionService
}

func newRouter(cfg *config.Config, logr *zap.Logger, deps routeDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(deps.metrics, "/health", "/ready", "/metrics"))
	r.Use(internalmiddleware.WithResponseMeta())

	metricsHandler := handler.NewMetricsHandler(deps.metrics, deps.db)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	studentHandler := handler.NewStudentHandler(deps.students)
	attendanceHandler := handler.NewAttendanceHandler(deps.attendance)
	statisticsHandler := handler.NewStatisticsHandler(deps.statistics)
	promotionHandler := handler.NewPromotionHandler(deps.promotions)

	api := r.Group(cfg.APIPrefix)
	api.Use(internalmiddleware.JWT(deps.tokens), internalmiddleware.RequirePrivileged())

	students := api.Group("/students")
	students.GET("", studentHandler.List)
	students.GET("/:id", studentHandler.Get)
	students.PATCH("/:id/class-label", studentHandler.UpdateClassLabel)

	attendance := api.Group("/attendance")
	attendance.GET("/students/:id/records", attendanceHandler.Records)
	attendance.POST("/students/:id/records", attendanceHandler.Append)
	attendance.POST("/students/:id/records/:index/status", attendanceHandler.SetStatusByIndex)
	attendance.POST("/students/:id/reset", attendanceHandler.ResetStudent)
	attendance.PATCH("/records/:recordId", attendanceHandler.SetStatusByID)
	attendance.POST("/reset/preview", attendanceHandler.PreviewResetAll)
	attendance.POST("/reset", attendanceHandler.ResetAll)

	stats := attendance.Group("/stats")
	stats.GET("", statisticsHandler.Overall)
	stats.GET("/branches", statisticsHandler.Branches)
	stats.GET("/classes", statisticsHandler.Classes)
	stats.GET("/students/:id", statisticsHandler.Student)
	stats.GET("/export", statisticsHandler.Export)

	promotions := api.Group("/promotions")
	promotions.POST("/preview", promotionHandler.Preview)
	promotions.GET("/plans/:id", promotionHandler.GetPlan)
	promotions.DELETE("/plans/:id", promotionHandler.CancelPlan)
	promotions.POST("/commit", promotionHandler.Commit)

	return r
}
