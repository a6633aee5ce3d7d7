package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	_ "github.com/noah-isme/college-portal-api/api/swagger"
	"github.com/noah-isme/college-portal-api/internal/repository"
	"github.com/noah-isme/college-portal-api/internal/service"
	"github.com/noah-isme/college-portal-api/pkg/cache"
	"github.com/noah-isme/college-portal-api/pkg/config"
	"github.com/noah-isme/college-portal-api/pkg/database"
	"github.com/noah-isme/college-portal-api/pkg/logger"
)

// @title College Portal API
// @version 1.0.0
// @description Student registry, attendance ledger, attendance statistics and class promotion
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const tokenKeyPrefix = "college-portal:"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("database connection failed", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, falling back to in-process stores", "error", err)
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close() //nolint:errcheck
	}

	studentRepo := repository.NewStudentRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	statisticsRepo := repository.NewStatisticsRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	tokens := repository.NewTokenStore(redisClient, tokenKeyPrefix)

	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(
		repository.NewCacheRepository(redisClient, logr),
		metricsSvc,
		cfg.Statistics.CacheTTL,
		logr,
		cfg.Statistics.CacheEnabled && redisClient != nil,
	)
	validate := service.NewValidator()

	auditSvc := service.NewAuditService(auditRepo, service.AuditConfig{
		Workers:    cfg.Audit.Workers,
		BufferSize: cfg.Audit.BufferSize,
	}, logr)
	auditSvc.Start(context.Background())
	defer auditSvc.Stop()

	statisticsSvc := service.NewStatisticsService(statisticsRepo, studentRepo, cacheSvc, cfg.Statistics.CacheTTL, validate, logr)
	studentSvc := service.NewStudentService(studentRepo, statisticsRepo, statisticsSvc, validate, logr)
	attendanceSvc := service.NewAttendanceService(
		attendanceRepo,
		studentRepo,
		tokens,
		db,
		statisticsSvc,
		auditSvc,
		metricsSvc,
		validate,
		logr,
		service.AttendanceConfig{ResetConfirmationTTL: cfg.Reset.ConfirmationTTL},
	)
	promotionSvc := service.NewPromotionService(
		studentRepo,
		tokens,
		db,
		statisticsSvc,
		auditSvc,
		metricsSvc,
		validate,
		logr,
		service.PromotionConfig{FinalSemester: cfg.Promotion.FinalSemester, PlanTTL: cfg.Promotion.PlanTTL},
	)
	tokenSvc := service.NewTokenService(cfg.JWT.Secret, cfg.JWT.Issuer)

	r := newRouter(cfg, logr, routeDeps{
		db:         db,
		metrics:    metricsSvc,
		tokens:     tokenSvc,
		students:   studentSvc,
		attendance: attendanceSvc,
		statistics: statisticsSvc,
		promotions: promotionSvc,
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
