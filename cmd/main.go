package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lumashot/internal/auth"
	"lumashot/internal/cache"
	"lumashot/internal/codec"
	"lumashot/internal/config"
	"lumashot/internal/handler"
	"lumashot/internal/repository"
	"lumashot/internal/service"
	"lumashot/internal/service/s3"
)

func connectWithRetry(dsn string, maxAttempts int, delay time.Duration) (*sqlx.DB, error) {
	var db *sqlx.DB
	var err error

	for i := 0; i < maxAttempts; i++ {
		db, err = sqlx.Connect("postgres", dsn)
		if err == nil {
			return db, nil
		}

		log.Printf("Failed to connect to database (attempt %d/%d): %v", i+1, maxAttempts, err)
		time.Sleep(delay)
	}

	return nil, fmt.Errorf("failed to connect after %d attempts: %v", maxAttempts, err)
}

func runMigrations(cfg *config.Config) error {
	databaseURL := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Name,
		cfg.Database.SSLMode,
	)

	var m *migrate.Migrate
	var err error

	for i := 0; i < 5; i++ {
		m, err = migrate.New("file://migrations", databaseURL)
		if err == nil {
			break
		}
		log.Printf("Failed to create migrate instance (attempt %d/5): %v", i+1, err)
		time.Sleep(time.Second * 5)
	}

	if err != nil {
		return fmt.Errorf("failed to create migrate instance after retries: %w", err)
	}
	defer m.Close()

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if dirty {
		log.Printf("Found dirty database state at version %d, attempting to force version", version)
		if err := m.Force(int(version)); err != nil {
			return fmt.Errorf("failed to force version: %w", err)
		}
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

func main() {
	// Загружаем конфигурации
	appConfig, err := config.NewConfig(".app.env")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	handler.SetDevMode(appConfig.Server.DevMode)

	// Подключаемся к базе данных
	db, err := connectWithRetry(appConfig.Database.GetDSN(), 5, time.Second*5)
	if err != nil {
		log.Fatalf("Failed to connect to database after retries: %v", err)
	}
	defer db.Close()

	if err := runMigrations(appConfig); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Инициализация S3 клиента
	s3Config, err := s3.NewConfig(".s3.env")
	if err != nil {
		log.Fatalf("Failed to load S3 config: %v", err)
	}

	s3Client, err := s3.NewClient(s3Config)
	if err != nil {
		log.Fatalf("Failed to create S3 client: %v", err)
	}

	// Проверка токенов
	authConfig, err := auth.NewConfig(".auth.env")
	if err != nil {
		log.Fatalf("Failed to load auth config: %v", err)
	}
	auth.InitVerifier(authConfig)

	// Кэш листингов
	cacheConfig, err := cache.NewConfig(".cache.env")
	if err != nil {
		log.Fatalf("Failed to load cache config: %v", err)
	}

	redisClient, err := cache.NewClient(cacheConfig)
	if err != nil {
		log.Fatalf("Failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	listingCache := cache.NewListingCache(redisClient)

	// Инициализация репозиториев
	quotaRepo := repository.NewQuotaRepository(db)
	blogRepo := repository.NewBlogRepository(db)

	// Инициализация сервисов
	imageCodec := codec.NewBimgCodec()
	compressionService := service.NewCompressionService(imageCodec)
	quotaService := service.NewQuotaService(s3Client, quotaRepo, blogRepo)
	fileManagerService := service.NewFileManagerService(s3Client, listingCache)
	uploadService := service.NewUploadService(compressionService, quotaService, s3Client, listingCache)
	uploadService.StartCleanupTask()
	diagnosticsService := service.NewDiagnosticsService(db, s3Client, listingCache, imageCodec, blogRepo)

	// Инициализация хендлеров
	uploadHandler := handler.NewUploadHandler(uploadService)
	fileManagerHandler := handler.NewFileManagerHandler(fileManagerService)
	quotaHandler := handler.NewQuotaHandler(quotaService)
	diagnosticsHandler := handler.NewDiagnosticsHandler(diagnosticsService)

	// Настройка HTTP роутера
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// HTTP маршруты
	r.Route("/v1", func(r chi.Router) {
		r.Route("/uploads", func(r chi.Router) {
			r.Post("/", uploadHandler.SelectFile)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", uploadHandler.GetAttempt)
				r.Post("/preview", uploadHandler.UpdateSettings)
				r.Post("/commit", uploadHandler.Commit)
				r.Post("/confirm", uploadHandler.ConfirmOversize)
				r.Post("/cancel-confirm", uploadHandler.CancelOversize)
			})
		})

		r.Get("/files", fileManagerHandler.List)
		r.Put("/files/rename", fileManagerHandler.Rename)
		r.Put("/files/move", fileManagerHandler.Move)
		r.Delete("/files", fileManagerHandler.Delete)
		r.Post("/folders", fileManagerHandler.CreateFolder)

		r.Route("/quota", func(r chi.Router) {
			r.Get("/", quotaHandler.GetQuota)
			r.Put("/limit", quotaHandler.UpdateLimit)
		})

		r.Post("/diagnostics", diagnosticsHandler.Run)
	})

	r.Handle("/metrics", promhttp.Handler())

	// Создаем HTTP сервер
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%s", appConfig.Server.Port),
		Handler: r,
	}

	// Канал для сигналов завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Запускаем HTTP сервер
	go func() {
		log.Printf("Starting HTTP server on port %s", appConfig.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start HTTP server: %v", err)
		}
	}()

	// Ожидаем сигнал завершения
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server forced to shutdown: %v", err)
	}

	if err := db.Close(); err != nil {
		log.Printf("Error closing database connection: %v", err)
	}

	log.Println("Server exited properly")
}
