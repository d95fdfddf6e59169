// main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/inngest/inngestgo"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/visibly-ai/visibly-workflows/internal/config"
	"github.com/visibly-ai/visibly-workflows/internal/repositories"
	"github.com/visibly-ai/visibly-workflows/services"
	"github.com/visibly-ai/visibly-workflows/workflows"
)

// connectDatabase opens the Postgres pool using our config structure
func connectDatabase(ctx context.Context, cfg config.DatabaseConfig) (*sqlx.DB, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode,
	)

	db, err := sqlx.ConnectContext(ctx, "postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

func main() {
	if err := godotenv.Load(); err != nil {
		if err := godotenv.Load("dev.env"); err != nil {
			log.Printf("Note: No .env or dev.env file loaded: %v", err)
		} else {
			log.Printf("Loaded dev.env file for local development")
		}
	} else {
		log.Printf("Loaded .env file")
	}

	cfg := config.Load()

	log.Printf("Environment: %s", cfg.Environment)
	log.Printf("Port: %s", cfg.Port)
	log.Printf("Database Host: %s", cfg.Database.Host)
	log.Printf("Database Name: %s", cfg.Database.Name)

	if cfg.OpenAIAPIKey == "" {
		log.Printf("WARNING: OpenAI API key not loaded!")
	} else {
		log.Printf("OpenAI API key loaded (length: %d)", len(cfg.OpenAIAPIKey))
	}
	if cfg.AnthropicAPIKey == "" {
		log.Printf("WARNING: Anthropic API key not loaded!")
	} else {
		log.Printf("Anthropic API key loaded (length: %d)", len(cfg.AnthropicAPIKey))
	}

	ctx := context.Background()
	db, err := connectDatabase(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Printf("Successfully connected to database")

	repoManager := repositories.NewManager(db)
	log.Printf("Repository manager initialized")

	if cfg.Environment == "development" || cfg.Environment == "" {
		os.Unsetenv("INNGEST_SIGNING_KEY")
		cfg.InngestSigningKey = ""
		log.Printf("Running in development mode - signing key verification disabled")
	}

	// Initialize services with repository manager and proper dependencies
	costService := services.NewCostService()
	extractionService := services.NewExtractionService(cfg, costService)
	resolverService := services.NewResolverService(cfg)
	ingestionService := services.NewIngestionService(repoManager, extractionService, resolverService, costService, cfg)
	analyticsService := services.NewAnalyticsService(repoManager)
	log.Printf("Services initialized")

	// Create Inngest client
	client, err := inngestgo.NewClient(
		inngestgo.ClientOpts{
			AppID:    "visibly-workflows",
			EventKey: inngestgo.StrPtr(cfg.InngestEventKey),
			Env:      inngestgo.StrPtr(cfg.Environment),
		},
	)
	if err != nil {
		log.Fatalf("Failed to create Inngest client: %v", err)
	}

	// Initialize and register workflows
	log.Printf("Initializing and registering workflows...")

	companyProcessor := workflows.NewCompanyProcessor(ingestionService, analyticsService, resolverService, cfg)
	companyProcessor.SetClient(client)
	companyProcessor.ProcessCompany()

	scheduledProcessor := workflows.NewScheduledProcessor(repoManager, cfg)
	scheduledProcessor.SetClient(client)
	scheduledProcessor.DailyIngestionScheduler()

	log.Printf("All processors initialized and functions registered")

	// Create and start server
	h := client.Serve()
	mux := http.NewServeMux()
	mux.Handle("/api/inngest", h)

	// Root endpoint for ALB health check
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"service":"visibly-workflows","status":"running"}`))
	})

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	mux.HandleFunc("/test/trigger-company", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		companyID := r.URL.Query().Get("company_id")
		if companyID == "" {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"company_id query parameter is required"}`))
			return
		}
		evt := inngestgo.Event{
			Name: "company.ingest",
			Data: map[string]interface{}{"company_id": companyID, "triggered_by": "manual_test"},
		}
		result, err := client.Send(r.Context(), evt)
		if err != nil {
			log.Printf("Failed to send test event: %v", err)
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(fmt.Sprintf(`{"error":"Failed to send event: %v"}`, err)))
			return
		}
		log.Printf("Test event sent successfully: %+v", result)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(fmt.Sprintf(`{"status":"success","message":"Test event sent for company %s","event_ids":["%s"]}`, companyID, result)))
	})

	// Read-time analytics for dashboards
	mux.HandleFunc("/api/analytics", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		companyID, err := uuid.Parse(r.URL.Query().Get("company_id"))
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"company_id query parameter must be a UUID"}`))
			return
		}
		days := 30
		if v := r.URL.Query().Get("days"); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
				days = parsed
			}
		}

		visibility, err := analyticsService.VisibilityReport(r.Context(), companyID, days)
		if err != nil {
			log.Printf("Failed to build visibility report: %v", err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		sentiment, err := analyticsService.SentimentReport(r.Context(), companyID, days)
		if err != nil {
			log.Printf("Failed to build sentiment report: %v", err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		competitors, err := analyticsService.CompetitorReport(r.Context(), companyID, days)
		if err != nil {
			log.Printf("Failed to build competitor report: %v", err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"company_id":  companyID,
			"days":        days,
			"visibility":  visibility,
			"sentiment":   sentiment,
			"competitors": competitors,
		})
	})

	port := cfg.Port
	log.Printf("Starting Visibly Workflows service on port %s", port)
	if err := http.ListenAndServe(":"+port, mux); err != nil {
		log.Fatal(err)
	}
}
