package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/finsight-app/finsight/internal/api/handlers"
	"github.com/finsight-app/finsight/internal/api/middleware"
	"github.com/finsight-app/finsight/internal/gcsarchive"
	infraBQ "github.com/finsight-app/finsight/internal/infra/bigquery"
	"github.com/finsight-app/finsight/internal/jobs"
	"github.com/finsight-app/finsight/internal/jobs/inmemory"
	"github.com/finsight-app/finsight/internal/logger"
	"github.com/finsight-app/finsight/internal/pipeline"
)

// extractionTimeout bounds the synchronous Gemini call made while handling
// a statement upload. The server's write deadline has to outlast it, or a
// slow extraction would persist transactions and then lose the connection
// before the response body is written.
const extractionTimeout = 60 * time.Second

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	var (
		port      = flag.String("port", envOr("PORT", "8080"), "HTTP server port")
		projectID = flag.String("project", os.Getenv("GOOGLE_CLOUD_PROJECT"), "GCP project ID (or set GOOGLE_CLOUD_PROJECT)")
		datasetID = flag.String("dataset", envOr("BQ_DATASET", "finance"), "BigQuery dataset (or set BQ_DATASET)")
		bucket    = flag.String("bucket", os.Getenv("GCS_BUCKET"), "GCS bucket for statement archival (or set GCS_BUCKET)")
		uploadDir = flag.String("upload-dir", envOr("UPLOAD_DIR", os.TempDir()), "Directory for uploaded statement files")
		model     = flag.String("model", envOr("GEMINI_MODEL", pipeline.DefaultModelName), "Gemini model for statement extraction")
	)
	flag.Parse()

	log := logger.New("api")

	if *projectID == "" {
		log.Fatal().Msg("GCP project is required (set GOOGLE_CLOUD_PROJECT or -project)")
	}

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal().Msg("JWT_SECRET is required")
	}

	ctx := context.Background()

	repo, err := infraBQ.NewRepository(ctx, *projectID, *datasetID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create repository")
	}
	defer repo.Close()

	// Extraction client. Without a usable key the parser serves sample
	// transactions so the rest of the product stays demoable.
	var extraction pipeline.ExtractionClient
	apiKey := os.Getenv("GEMINI_API_KEY")
	if pipeline.Configured(apiKey) {
		client, err := pipeline.NewGeminiClient(ctx, apiKey, *model)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create Gemini client")
		}
		extraction = client
	} else {
		log.Warn().Msg("GEMINI_API_KEY not configured - running in demo mode with sample transactions")
	}
	parser := pipeline.NewParser(extraction, extractionTimeout, log)

	// Archival infrastructure. Without a bucket, uploaded files are
	// removed after processing instead of being archived.
	var archiver *gcsarchive.Archiver
	if *bucket != "" {
		archiver, err = gcsarchive.NewArchiver(ctx, *bucket)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create archiver")
		}
		defer archiver.Close()
	} else {
		log.Warn().Msg("No GCS bucket configured - uploaded statements will not be archived")
	}

	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, 3, jobStore)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	jobHandler := func(ctx context.Context, job jobs.Job) error {
		archiveJob, ok := job.(*jobs.ArchiveStatementJob)
		if !ok {
			return fmt.Errorf("unexpected job type: %T", job)
		}

		log.Info().
			Str("job_id", archiveJob.JobID).
			Str("file", archiveJob.SourceFile).
			Msg("Archiving statement")

		uri, err := archiver.ArchiveFile(ctx, archiveJob.ObjectName, archiveJob.LocalPath)
		if err != nil {
			return err
		}
		archiveJob.GCSURI = uri

		if err := os.Remove(archiveJob.LocalPath); err != nil {
			log.Warn().Err(err).Str("path", archiveJob.LocalPath).Msg("Failed to remove local statement file")
		}

		log.Info().
			Str("job_id", archiveJob.JobID).
			Str("gcs_uri", uri).
			Msg("Statement archived")
		return nil
	}

	var publisher jobs.Publisher
	if archiver != nil {
		publisher = jobQueue
		go func() {
			log.Info().Msg("Starting archive worker")
			if err := jobQueue.Start(workerCtx, jobHandler); err != nil {
				log.Error().Err(err).Msg("Archive worker stopped with error")
			}
		}()
	}

	uploadHandler := handlers.NewUploadHandler(repo, parser, publisher, *uploadDir, log)
	transactionsHandler := handlers.NewTransactionsHandler(repo, log)
	authHandler := handlers.NewAuthHandler(repo, secret, log)
	jobsHandler := handlers.NewJobsHandler(jobStore, log)

	authMW := middleware.Auth(secret)

	mux := http.NewServeMux()

	// Auth endpoints (public)
	mux.HandleFunc("/api/auth/register", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			authHandler.Register(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			authHandler.Login(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Upload endpoint
	mux.Handle("/api/upload", authMW(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			uploadHandler.Upload(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})))

	// Transactions endpoints
	mux.Handle("/api/transactions", authMW(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			transactionsHandler.ListTransactions(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})))

	mux.Handle("/api/transactions/", authMW(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/api/transactions/")
		if rest == "" {
			middleware.WriteError(w, http.StatusBadRequest, "Transaction ID is required")
			return
		}

		if rest == "dashboard/summary" {
			if r.Method == http.MethodGet {
				transactionsHandler.DashboardSummary(w, r)
			} else {
				middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			}
			return
		}

		switch r.Method {
		case http.MethodGet:
			transactionsHandler.GetTransaction(w, r, rest)
		case http.MethodPut:
			transactionsHandler.UpdateTransaction(w, r, rest)
		case http.MethodDelete:
			transactionsHandler.DeleteTransaction(w, r, rest)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})))

	// Profile endpoints
	mux.Handle("/api/users/profile", authMW(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			authHandler.GetProfile(w, r)
		case http.MethodPut:
			authHandler.UpdateProfile(w, r)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})))

	// Jobs endpoints
	mux.Handle("/api/jobs", authMW(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobsHandler.ListJobs(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})))

	mux.Handle("/api/jobs/", authMW(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
			if jobID == "" {
				middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
				return
			}
			jobsHandler.GetJob(w, r, jobID)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})))

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// Apply middleware
	handler := middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(
				middleware.CORS(mux),
			),
		),
	)

	server := newHTTPServer(":"+*port, handler)

	go func() {
		log.Info().Str("port", *port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	cancelWorker()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	// Stop job queue and wait for in-flight archive jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}

	log.Info().Msg("Server exited")
}

// newHTTPServer applies the server deadlines. The write deadline leaves
// headroom past extractionTimeout because uploads call the model inline.
func newHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: extractionTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
