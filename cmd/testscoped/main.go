// Command testscoped is the hosted Testscope service.
// It accepts selection run uploads from CI, serves the read API for the
// dashboard, handles GitHub webhooks, and publishes check runs.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	_ "github.com/lib/pq"

	"github.com/testscope/testscope/internal/api"
	"github.com/testscope/testscope/internal/ingest"
	"github.com/testscope/testscope/internal/platform"
	"github.com/testscope/testscope/internal/project"
	"github.com/testscope/testscope/internal/publish"
	"github.com/testscope/testscope/internal/webhook"
)

type config struct {
	Port             string
	DatabaseURL      string
	StorageBackend   string
	LocalStoragePath string
	S3Bucket         string
	S3Region         string
	S3Endpoint       string
	S3AccessKey      string
	S3SecretKey      string
	GCSBucket        string
	APIKey           string
	WebhookSecret    string
	GitHubAppID      string
	GitHubKey        string
}

func loadConfig() config {
	return config{
		Port:             envOrDefault("PORT", "8080"),
		DatabaseURL:      envOrDefault("DATABASE_URL", "postgres://localhost:5432/testscope?sslmode=disable"),
		StorageBackend:   envOrDefault("STORAGE_BACKEND", "local"),
		LocalStoragePath: envOrDefault("LOCAL_STORAGE_PATH", "/tmp/testscope-data"),
		S3Bucket:         os.Getenv("S3_BUCKET"),
		S3Region:         os.Getenv("S3_REGION"),
		S3Endpoint:       os.Getenv("S3_ENDPOINT"),
		S3AccessKey:      os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:      os.Getenv("S3_SECRET_KEY"),
		GCSBucket:        os.Getenv("GCS_BUCKET"),
		APIKey:           os.Getenv("API_KEY"),
		WebhookSecret:    os.Getenv("GITHUB_WEBHOOK_SECRET"),
		GitHubAppID:      os.Getenv("GITHUB_APP_ID"),
		GitHubKey:        os.Getenv("GITHUB_PRIVATE_KEY"),
	}
}

func main() {
	cfg := loadConfig()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("ping database: %v", err)
	}

	if err := platform.AutoMigrate(db); err != nil {
		log.Fatalf("migrate database: %v", err)
	}

	storage, err := buildStorage(ctx, cfg)
	if err != nil {
		log.Fatalf("init storage (%s): %v", cfg.StorageBackend, err)
	}

	var publisher ingest.CheckPublisher
	if cfg.GitHubAppID != "" && cfg.GitHubKey != "" {
		appID, err := strconv.ParseInt(cfg.GitHubAppID, 10, 64)
		if err != nil {
			log.Fatalf("invalid GITHUB_APP_ID: %v", err)
		}
		gh, err := publish.NewGitHubPublisher(appID, []byte(cfg.GitHubKey))
		if err != nil {
			log.Fatalf("init github publisher: %v", err)
		}
		publisher = gh
		log.Printf("check-run publishing enabled for app %d", appID)
	}

	projectSvc := project.NewService(db)
	ingestSvc := ingest.NewService(db, projectSvc, storage, publisher)

	apiMux := http.NewServeMux()
	api.NewHandler(db, projectSvc, ingestSvc, nil).RegisterRoutes(apiMux)

	webhookHandler := webhook.NewHandler([]byte(cfg.WebhookSecret), projectSvc, ingestSvc)

	mux := http.NewServeMux()
	mux.Handle("POST /v1/webhooks/github", webhookHandler)
	mux.Handle("/api/", authWrites(cfg.APIKey, apiMux))
	mux.HandleFunc("GET /healthz", healthHandler(db))

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: api.CORS(mux),
	}

	go func() {
		log.Printf("starting testscoped on :%s (storage=%s)", cfg.Port, cfg.StorageBackend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down...")
	if err := srv.Shutdown(context.Background()); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

func buildStorage(ctx context.Context, cfg config) (ingest.StorageClient, error) {
	switch cfg.StorageBackend {
	case "s3":
		return ingest.NewS3Storage(ctx, ingest.S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
	case "gcs":
		return ingest.NewGCSStorage(ctx, cfg.GCSBucket)
	default:
		return ingest.NewLocalStorage(cfg.LocalStoragePath), nil
	}
}

// authWrites requires the API key on mutating requests. Reads stay open so
// the dashboard can query without credentials.
func authWrites(key string, next http.Handler) http.Handler {
	authed := api.APIKeyAuth(key)(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		authed.ServeHTTP(w, r)
	})
}

func healthHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "database unreachable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
