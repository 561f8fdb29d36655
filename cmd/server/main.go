package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/homelens/homelens/internal/ai"
	"github.com/homelens/homelens/internal/analyze"
	"github.com/homelens/homelens/internal/api"
	"github.com/homelens/homelens/internal/db"
	"github.com/homelens/homelens/internal/enrich"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Print("No .env file found; using process environment")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8081"
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	if err := db.ApplyMigrations(ctx, pool); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	pipeline := buildPipeline()
	store := db.NewStore(pool)
	pipeline.AreaPrices = store

	// Refresh the land-registry analytics cache every night.
	if pipeline.LandRegistry != nil {
		scheduler := cron.New()
		_, err := scheduler.AddFunc("30 3 * * *", func() {
			outcodes, err := store.ListOutcodes(ctx)
			if err != nil {
				log.Printf("Scheduled land-registry refresh: listing outcodes failed: %v", err)
				return
			}
			runID, err := store.StartRefreshRun(ctx)
			if err != nil {
				log.Printf("Scheduled land-registry refresh: run record failed: %v", err)
			}
			refreshed, rowsScanned := pipeline.LandRegistry.Refresh(outcodes)
			if runID != "" {
				_ = store.FinishRefreshRun(ctx, runID, "ok", "scheduled", refreshed, rowsScanned)
			}
			log.Printf("Scheduled land-registry refresh: %d districts, %d sales scanned", refreshed, rowsScanned)
		})
		if err != nil {
			log.Fatalf("Failed to schedule land-registry refresh: %v", err)
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	srv := api.NewServer(pool, pipeline)
	log.Printf("Server starting on port %s...", port)
	if err := srv.Start(port); err != nil {
		log.Fatal(err)
	}
}

// buildPipeline wires the analysis pipeline from the enrichment source
// registry and the environment. Missing sources leave their report
// sections empty rather than failing startup.
func buildPipeline() *analyze.Pipeline {
	pipeline := analyze.NewPipeline()

	registry, err := enrich.LoadRegistry("internal/enrich/config/sources.yaml")
	if err != nil {
		log.Printf("Enrichment registry unavailable: %v", err)
		registry = &enrich.Registry{}
	}

	if registry.LandRegistry.DataDir != "" {
		cache := enrich.NewCache(ttlOrDefault(registry.LandRegistry.CacheTTL, 24*time.Hour))
		pipeline.LandRegistry = enrich.NewLandRegistry(registry.LandRegistry.DataDir, cache)
	} else {
		log.Print("LAND_REGISTRY_DATA_DIR not set; area stats disabled")
	}

	if registry.EPC.APIKey != "" {
		cache := enrich.NewCache(ttlOrDefault(registry.EPC.CacheTTL, 6*time.Hour))
		pipeline.EPC = enrich.NewEPCClient(registry.EPC, cache)
	}

	if registry.Places.APIKey != "" {
		cache := enrich.NewCache(ttlOrDefault(registry.Places.CacheTTL, 12*time.Hour))
		pipeline.Places = enrich.NewPlacesClient(registry.Places, cache)
	}

	ollamaHost := os.Getenv("OLLAMA_HOST")
	if ollamaHost != "" || os.Getenv("AI_ENABLED") == "true" {
		pipeline.AI = ai.NewOllamaClient(ollamaHost, "", os.Getenv("OLLAMA_GEN_MODEL"))
	} else {
		log.Print("OLLAMA_HOST not set; AI analysis disabled")
	}

	return pipeline
}

func ttlOrDefault(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	ttl, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("Invalid cache TTL %q, using %s", raw, fallback)
		return fallback
	}
	return ttl
}
