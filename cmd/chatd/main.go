// Command chatd runs the multi-agent e-commerce chat backend: it wires
// configuration, logging, the catalog, cache, LLM client, policy vector
// index, specialized agents, the orchestrator, and the HTTP Chat Endpoint,
// then serves until interrupted.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"shopfront/internal/agent"
	"shopfront/internal/cache"
	"shopfront/internal/catalog"
	"shopfront/internal/config"
	"shopfront/internal/httpapi"
	"shopfront/internal/llm/openai"
	"shopfront/internal/observability"
	"shopfront/internal/orchestrator"
	"shopfront/internal/session"
	"shopfront/internal/vectorindex"
)

const serviceVersion = "0.1.0"

func main() {
	observability.InitLogger("", "")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	observability.InitLogger("", cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cat, closeCatalog := mustCatalog(ctx, cfg)
	defer closeCatalog()

	llmClient := openai.New(cfg.LLM.APIKey, cfg.LLM.ChatModel, cfg.LLM.EmbeddingModel, cfg.LLM.EmbeddingDim)

	sessionCache := cache.Handle("session", cache.Namespace{
		RedisURL: cfg.Cache.RedisURL, KeyPrefix: "session:", MaxEntries: cfg.Cache.MaxEntries,
	})
	priceCache := cache.Handle("price", cache.Namespace{
		RedisURL: cfg.Cache.RedisURL, KeyPrefix: "price:", MaxEntries: cfg.Cache.MaxEntries,
	})
	reviewCache := cache.Handle("review_summary", cache.Namespace{
		RedisURL: cfg.Cache.RedisURL, KeyPrefix: "review_summary:", MaxEntries: cfg.Cache.MaxEntries,
	})

	mem := session.New(sessionCache, cfg.Session.TTL)

	policyIndex := mustPolicyIndex(ctx, cfg, cat, llmClient)

	deps := &agent.Deps{
		Catalog:     cat,
		LLM:         llmClient,
		Embedder:    llmClient,
		VectorIndex: policyIndex,
		MaxTurns:    cfg.Agent.MaxTurns,
		Model:       cfg.LLM.ChatModel,
		TurnTimeout: cfg.Agent.Timeout,
		ReviewCache: reviewCache,
		PriceCache:  priceCache,
	}

	classifier := &agent.IntentClassifier{Provider: llmClient, Model: cfg.LLM.ChatModel}
	agents := map[string]agent.Agent{
		"recommendation": &agent.RecommendationAgent{},
		"review":         &agent.ReviewAgent{},
		"price":          &agent.PriceAgent{},
		"policy":         &agent.PolicyAgent{},
		"general":        &agent.GeneralAgent{},
	}
	orch := orchestrator.New(classifier, agents)

	srv := httpapi.New(mem, orch, deps, cfg.HTTP.CORSOrigins, "shopfront-chatd", serviceVersion)

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("chatd: listening")
		serverErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("chatd: server failed")
		}
	case <-ctx.Done():
		log.Info().Msg("chatd: shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("chatd: graceful shutdown failed")
		}
	}
}

// mustCatalog opens the Postgres catalog if DATABASE_URL is set, falling
// back to an empty in-memory catalog otherwise (useful for local dev and
// the end-to-end tests' boundary scenarios around an empty catalog).
func mustCatalog(ctx context.Context, _ config.Config) (catalog.Catalog, func()) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Warn().Msg("chatd: DATABASE_URL not set, using empty in-memory catalog")
		return &catalog.MemoryCatalog{}, func() {}
	}
	pool, err := catalog.OpenPool(ctx, dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("chatd: failed to open catalog database")
	}
	return catalog.NewPostgresCatalog(pool), pool.Close
}

// mustPolicyIndex loads the on-disk Policy Vector Index snapshot if it is
// still fresh against the catalog's current policy rows, otherwise rebuilds
// it from scratch and persists the result.
func mustPolicyIndex(ctx context.Context, cfg config.Config, cat catalog.Catalog, embedder *openai.Client) *vectorindex.Index {
	policies, err := cat.ListPolicies(ctx)
	if err != nil {
		log.Error().Err(err).Msg("chatd: failed to list policies, starting with an empty policy index")
		return vectorindex.New(cfg.VectorIndex.Dimension)
	}

	if idx, ok, err := vectorindex.Load(cfg.VectorIndex.StorePath, policies); err == nil && ok {
		log.Info().Int("chunks", len(policies)).Msg("chatd: loaded policy index from disk")
		return idx
	}

	idx := vectorindex.New(cfg.VectorIndex.Dimension)
	if err := idx.Build(ctx, policies, embedder); err != nil {
		log.Error().Err(err).Msg("chatd: failed to build policy index, continuing with an empty index")
		return idx
	}
	if err := idx.Save(cfg.VectorIndex.StorePath); err != nil {
		log.Warn().Err(err).Msg("chatd: failed to persist policy index")
	}
	return idx
}
