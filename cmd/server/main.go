package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/nuamhub/taxqual-backend/internal/adapter/httpapi"
	"github.com/nuamhub/taxqual-backend/internal/adapter/repository/postgres"
	"github.com/nuamhub/taxqual-backend/internal/domain"
	"github.com/nuamhub/taxqual-backend/internal/usecase/ingest"
	"github.com/nuamhub/taxqual-backend/internal/usecase/records"
	"github.com/nuamhub/taxqual-backend/internal/usecase/seeder"
)

const (
	defaultAPIToken = "dev-token"
	defaultPort     = "8080"
	shutdownTimeout = 10 * time.Second
)

func main() {
	// Local .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	// 1. Setup Database
	dbConnStr := os.Getenv("DB_CONN_STR")
	if dbConnStr == "" {
		dbConnStr = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			envOr("DB_HOST", "localhost"),
			envOr("DB_PORT", "5432"),
			envOr("DB_USER", "postgres"),
			envOr("DB_PASSWORD", "postgres"),
			envOr("DB_NAME", "taxqual"),
		)
	}

	// Give Postgres a moment to come up when both start together
	time.Sleep(2 * time.Second)

	db, err := postgres.NewDB(dbConnStr)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// 2. Initialize Repositories (Postgres)
	recordRepo := postgres.NewRecordRepository(db)
	brokerRepo := postgres.NewBrokerRepository(db)

	// 3. Initialize Services (Use Cases)
	recordService := records.NewService(recordRepo)
	ingestService := ingest.NewService(recordService)

	// Optionally seed a broker scope for local environments:
	// SEED_BROKER="Name|CODE|<acting user uuid>"
	if spec := os.Getenv("SEED_BROKER"); spec != "" {
		if err := seedBroker(context.Background(), brokerRepo, spec); err != nil {
			log.Fatalf("Failed to seed broker: %v", err)
		}
		log.Println("Broker scope seeded successfully")
	}

	// 4. Start HTTP server
	apiToken := envOr("API_TOKEN", defaultAPIToken)
	port := envOr("PORT", defaultPort)

	router := httpapi.NewRouter(recordService, ingestService, brokerRepo, apiToken)
	server := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	go func() {
		log.Printf("HTTP server listening on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to serve HTTP: %v", err)
		}
	}()

	waitForShutdown(server)
}

func seedBroker(ctx context.Context, repo domain.BrokerRepository, spec string) error {
	parts := strings.Split(spec, "|")
	if len(parts) != 3 {
		return fmt.Errorf("SEED_BROKER must be \"Name|CODE|user-uuid\", got %q", spec)
	}
	userID, err := uuid.Parse(parts[2])
	if err != nil {
		return fmt.Errorf("SEED_BROKER user ID: %w", err)
	}

	_, err = seeder.NewBrokerSeeder(repo).Seed(ctx, parts[0], parts[1], userID)
	return err
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// waitForShutdown waits for SIGTERM or SIGINT and gracefully shuts down the server
func waitForShutdown(server *http.Server) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigChan
	log.Printf("Received signal: %v. Shutting down gracefully...", sig)

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
	log.Println("HTTP server stopped")
}
