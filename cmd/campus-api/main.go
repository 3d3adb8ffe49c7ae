package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/univlab/campus-api/api/swagger"
	"github.com/univlab/campus-api/internal/handler"
	"github.com/univlab/campus-api/internal/middleware"
	"github.com/univlab/campus-api/internal/models"
	"github.com/univlab/campus-api/internal/repository"
	"github.com/univlab/campus-api/internal/service"
	"github.com/univlab/campus-api/pkg/cache"
	"github.com/univlab/campus-api/pkg/config"
	"github.com/univlab/campus-api/pkg/database"
	"github.com/univlab/campus-api/pkg/logger"
	corsmiddleware "github.com/univlab/campus-api/pkg/middleware/cors"
	reqidmiddleware "github.com/univlab/campus-api/pkg/middleware/requestid"
	"github.com/univlab/campus-api/pkg/storage"
)

// @title Campus API
// @version 1.0.0
// @description Academic platform: grades, notifications, modules and enrollments
// @BasePath /api/v1
// @schemes http

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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close()

	store, err := storage.NewLocalStorage(cfg.Uploads.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init upload storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Uploads.SignedURLSecret, cfg.Uploads.SignedURLTTL)

	validate := validator.New()
	metricsService := service.NewMetricsService()

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	moduleRepo := repository.NewModuleRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	gradeRepo := repository.NewGradeRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	announcementRepo := repository.NewAnnouncementRepository(db)
	materialRepo := repository.NewMaterialRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr, metricsService)

	// Services.
	authService := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "campus-api",
		Audience:           []string{"campus-api"},
	})
	notificationService := service.NewNotificationService(notificationRepo, logr, service.NotificationConfig{
		WorkerConcurrency: cfg.Notifications.WorkerConcurrency,
		WorkerRetries:     cfg.Notifications.WorkerRetries,
		Retention:         cfg.Notifications.Retention,
		PurgeInterval:     cfg.Notifications.PurgeInterval,
	})
	gradeService := service.NewGradeService(gradeRepo, moduleRepo, studentRepo, enrollmentRepo, notificationService, cacheRepo, validate, logr, cfg.Dashboard.CacheTTL)
	announcementService := service.NewAnnouncementService(announcementRepo, moduleRepo, enrollmentRepo, notificationService, validate, logr)
	materialService := service.NewMaterialService(materialRepo, moduleRepo, studentRepo, enrollmentRepo, enrollmentRepo, notificationService, store, signer, logr, service.MaterialConfig{
		MaxFileSizeBytes: cfg.Uploads.MaxFileSizeBytes,
		AllowedMIMEs:     cfg.Uploads.AllowedMIMEs,
	})
	assignmentService := service.NewAssignmentService(assignmentRepo, moduleRepo, studentRepo, enrollmentRepo, enrollmentRepo, notificationService, store, validate, logr)
	studentService := service.NewStudentService(studentRepo, userRepo, validate, logr)
	moduleService := service.NewModuleService(moduleRepo, userRepo, validate, logr)
	enrollmentService := service.NewEnrollmentService(enrollmentRepo, studentRepo, moduleRepo, userRepo, validate, logr)
	dashboardService := service.NewDashboardService(service.DashboardParams{
		Grades:        gradeRepo,
		Assignments:   assignmentRepo,
		Enrollments:   enrollmentRepo,
		Modules:       moduleRepo,
		Students:      studentRepo,
		Notifications: notificationRepo,
		Cache:         cacheRepo,
		Logger:        logr,
		Config:        service.DashboardConfig{CacheTTL: cfg.Dashboard.CacheTTL},
	})
	exportService := service.NewExportService(gradeRepo, studentRepo, moduleRepo, logr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	notificationService.Start(ctx)
	defer notificationService.Stop()

	// Handlers.
	authHandler := handler.NewAuthHandler(authService)
	gradeHandler := handler.NewGradeHandler(gradeService, metricsService)
	notificationHandler := handler.NewNotificationHandler(notificationService)
	announcementHandler := handler.NewAnnouncementHandler(announcementService, metricsService)
	materialHandler := handler.NewMaterialHandler(materialService)
	assignmentHandler := handler.NewAssignmentHandler(assignmentService)
	studentHandler := handler.NewStudentHandler(studentService)
	moduleHandler := handler.NewModuleHandler(moduleService)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentService)
	dashboardHandler := handler.NewDashboardHandler(dashboardService)
	exportHandler := handler.NewExportHandler(exportService)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db unavailable"})
			return
		}
		if err := redisClient.Ping(c.Request.Context()).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "cache unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsService.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)

	authed := api.Group("")
	authed.Use(middleware.JWT(authService))
	authed.POST("/auth/logout", authHandler.Logout)
	authed.POST("/auth/change-password", authHandler.ChangePassword)
	authed.GET("/auth/me", authHandler.Me)

	authed.GET("/notifications", notificationHandler.List)
	authed.PATCH("/notifications/:id/read", notificationHandler.MarkRead)
	authed.PATCH("/notifications/read-all", notificationHandler.MarkAllRead)

	authed.GET("/announcements", announcementHandler.List)
	authed.GET("/modules", moduleHandler.List)
	authed.GET("/modules/:id", moduleHandler.Get)
	authed.GET("/modules/:id/materials", materialHandler.ListByModule)
	authed.GET("/modules/:id/assignments", assignmentHandler.ListByModule)
	authed.GET("/materials/:id/download", materialHandler.DownloadLink)

	// Signed links carry their own authorization.
	api.GET("/files/:token", materialHandler.ServeSigned)

	professor := api.Group("/professor")
	professor.Use(middleware.JWT(authService), middleware.RequireRoles(models.RoleProfessor, models.RoleAdmin))
	professor.POST("/grades", middleware.Audit(userRepo, models.AuditActionGradeSubmit, "grade"), gradeHandler.Submit)
	professor.GET("/modules/:id/grades", gradeHandler.ModuleGrades)
	professor.GET("/modules/:id/grades/export", exportHandler.ModuleGradeSheet)
	professor.POST("/announcements", announcementHandler.Create)
	professor.POST("/materials", materialHandler.Upload)
	professor.DELETE("/materials/:id", materialHandler.Delete)
	professor.POST("/assignments", assignmentHandler.Create)
	professor.GET("/assignments/:id/submissions", assignmentHandler.ListSubmissions)
	professor.GET("/dashboard", dashboardHandler.Professor)

	admin := api.Group("/admin")
	admin.Use(middleware.JWT(authService), middleware.RequireRoles(models.RoleAdmin))
	admin.PATCH("/grades/:id/validate", middleware.Audit(userRepo, models.AuditActionGradeValidate, "grade"), gradeHandler.Validate)
	admin.POST("/students", studentHandler.Create)
	admin.GET("/students", studentHandler.List)
	admin.GET("/students/:id", studentHandler.Get)
	admin.PUT("/students/:id", studentHandler.Update)
	admin.DELETE("/students/:id", studentHandler.Delete)
	admin.GET("/students/:id/transcript", exportHandler.StudentTranscript)
	admin.POST("/modules", moduleHandler.Create)
	admin.PUT("/modules/:id", moduleHandler.Update)
	admin.DELETE("/modules/:id", moduleHandler.Delete)
	admin.POST("/enrollments", enrollmentHandler.Enroll)
	admin.GET("/enrollments", enrollmentHandler.List)
	admin.DELETE("/enrollments/:id", enrollmentHandler.Withdraw)
	admin.GET("/dashboard", dashboardHandler.Admin)

	student := api.Group("/student")
	student.Use(middleware.JWT(authService), middleware.RequireRoles(models.RoleStudent))
	student.GET("/grades", gradeHandler.StudentGrades)
	student.POST("/assignments/:id/submit", assignmentHandler.Submit)
	student.GET("/dashboard", dashboardHandler.Student)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logr.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
