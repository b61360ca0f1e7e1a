package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/hqanh/qbank/config"
	"github.com/hqanh/qbank/database"
	"github.com/hqanh/qbank/internal/cache"
	userctrl "github.com/hqanh/qbank/internal/controller/user"
	"github.com/hqanh/qbank/internal/logger"
	"github.com/hqanh/qbank/internal/repository"
	"github.com/hqanh/qbank/internal/service"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

// @title QBank Attempt Runtime API
// @version 1.0
// @description Exam-delivery attempt runtime: test definitions, durable resumable attempts, per-answer persistence, suspend/resume snapshots and question progress.
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https
func main() {
	logger.Init()

	app := fx.New(
		// Core application components
		fx.Provide(
			config.NewConfig,
			database.NewDatabase,
			cache.NewRedisClient,
			cache.NewRedisSessionMirror,
			NewGinEngine,
		),

		// Repositories layer
		fx.Provide(
			repository.NewQuestionRepository,
			repository.NewTestDefinitionRepository,
			repository.NewAttemptRepository,
			repository.NewAnswerRepository,
			repository.NewQuestionProgressRepository,
		),

		// Services layer
		fx.Provide(
			service.NewProgressService,
			service.NewPoolService,
			func(
				testDefRepo repository.TestDefinitionRepository,
				attemptRepo repository.AttemptRepository,
				answerRepo repository.AnswerRepository,
				questionRepo repository.QuestionRepository,
				progressService service.ProgressService,
				mirror cache.SessionMirror,
				cfg *config.Config,
				db *gorm.DB,
			) service.AttemptService {
				return service.NewAttemptService(testDefRepo, attemptRepo, answerRepo, questionRepo,
					progressService, mirror, cfg.Exam.SecondsPerQuestion, db)
			},
			service.NewTestDefinitionService,
		),

		// API controllers layer
		fx.Provide(
			userctrl.NewTestController,
			userctrl.NewAttemptController,
		),

		fx.Invoke(RegisterRoutesAndStartServer),
		fx.Invoke(MigrateDB),
	)

	if err := app.Start(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to start application")
	}

	<-app.Done()
	log.Info().Msg("Application shutting down gracefully...")
}

func NewGinEngine() *gin.Engine {
	r := gin.New()

	r.Use(gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		log.Info().
			Str("client_ip", param.ClientIP).
			Str("method", param.Method).
			Str("path", param.Path).
			Int("status_code", param.StatusCode).
			Dur("latency", param.Latency).
			Str("error_message", param.ErrorMessage).
			Msg("gin_request")
		return ""
	}))
	r.Use(gin.Recovery())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Swagger UI at /swagger/index.html
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}

// RegisterRoutesAndStartServer configures API routes and manages the HTTP
// server lifecycle.
func RegisterRoutesAndStartServer(
	lc fx.Lifecycle,
	router *gin.Engine,
	cfg *config.Config,
	testCtrl *userctrl.TestController,
	attemptCtrl *userctrl.AttemptController,
) {
	apiGroup := router.Group("/api/v1")
	{
		tests := apiGroup.Group("/tests")
		tests.POST("", testCtrl.CreateOrUpdateTest)
		tests.GET("", testCtrl.ListTests)
		tests.DELETE("/:test_id", testCtrl.ArchiveTest)
		tests.POST("/:test_id/suspend", testCtrl.SuspendTest)
		tests.POST("/:test_id/attempts", attemptCtrl.OpenAttempt)

		apiGroup.POST("/pool/resolve", testCtrl.ResolvePool)

		attempts := apiGroup.Group("/attempts")
		attempts.GET("/:attempt_id", attemptCtrl.GetAttempt)
		attempts.GET("/:attempt_id/session", attemptCtrl.LoadSession)
		attempts.PUT("/:attempt_id/answers/:question_id", attemptCtrl.RecordAnswer)
		attempts.PUT("/:attempt_id/flags/:question_id", attemptCtrl.RecordFlag)
		attempts.PUT("/:attempt_id/progress", attemptCtrl.MirrorProgress)
		attempts.POST("/:attempt_id/suspend", attemptCtrl.SuspendAttempt)
		attempts.POST("/:attempt_id/finish", attemptCtrl.FinishAttempt)
	}

	server := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info().Msgf("QBank attempt runtime starting on port %s", cfg.Server.Port)
			go func() {
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal().Err(err).Msg("Server ListenAndServe failed")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info().Msg("Server shutting down...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		},
	})
}

func MigrateDB(db *gorm.DB) error {
	log.Info().Msg("Running database migrations...")
	if err := database.Migrate(db); err != nil {
		log.Error().Err(err).Msg("Database migration failed")
		return err
	}
	log.Info().Msg("Database migration completed successfully.")
	return nil
}
