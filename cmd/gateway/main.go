package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/kevin-toles/llm-gateway/circuit"
	"github.com/kevin-toles/llm-gateway/downstream"
	"github.com/kevin-toles/llm-gateway/gwconfig"
	"github.com/kevin-toles/llm-gateway/gwlog"
	"github.com/kevin-toles/llm-gateway/httpapi"
	"github.com/kevin-toles/llm-gateway/metrics"
	"github.com/kevin-toles/llm-gateway/orchestrator"
	"github.com/kevin-toles/llm-gateway/provider"
	"github.com/kevin-toles/llm-gateway/provider/adapters"
	"github.com/kevin-toles/llm-gateway/ratelimit"
	"github.com/kevin-toles/llm-gateway/session"
	"github.com/kevin-toles/llm-gateway/tools"
	"github.com/redis/go-redis/v9"
)

// knownProviders is the set of provider names main knows how to construct
// an adapter for. gwconfig.Load uses this list to decide which
// <PROVIDER>_API_KEY environment variables to collect.
var knownProviders = []string{"openai", "anthropic", "gemini"}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	cfg, err := gwconfig.Load(os.Getenv("LLM_GATEWAY_CONFIG_PATH"), knownProviders)
	if err != nil {
		log.Fatalf("load configuration: %v", err)
	}

	logger := gwlog.NewStdLogger(logLevelFromString(cfg.LogLevel))
	ctx := context.Background()

	registryCfg, err := provider.LoadRegistryConfig(cfg.ModelRegistryPath)
	if err != nil {
		logger.Warn(ctx, "model registry load failed, starting with empty routing table", gwlog.F("error", err.Error()))
		registryCfg = &provider.RegistryConfig{Providers: map[string]provider.ProviderEntry{}}
	}

	adapterMap := buildAdapters(ctx, logger, registryCfg, cfg)
	router := provider.NewRouter(registryCfg, adapterMap, logger)

	redisClient := redis.NewClient(&redis.Options{Addr: os.Getenv("LLM_GATEWAY_REDIS_ADDR")})
	sessions := session.NewManager(session.NewRedisStore(redisClient, ""), cfg.SessionTTL())

	collector := metrics.NewCollector()

	toolRegistry := tools.NewRegistry()
	executor := tools.NewExecutor(toolRegistry, cfg.ToolExecutionTimeout, 8)
	executor.SetMetrics(collector)

	breakers := circuit.NewRegistry(cfg.CircuitFailureThreshold, cfg.CircuitRecoveryTimeout, cfg.CircuitHalfOpenMax)
	breakers.SetMetrics(collector)

	var cms *downstream.CMS
	if cfg.CMSEnabled && cfg.CMSURL != "" {
		cms = downstream.NewCMS(cfg.CMSURL)
	}

	orch := orchestrator.New(router, executor, sessions, cms, breakers, orchestrator.NoopCostTracker{}, logger)
	orch.MaxToolIterations = cfg.MaxToolIterations
	orch.CMSEnabled = cfg.CMSEnabled
	orch.SetMetrics(collector)

	limiter := ratelimit.NewLimiter(cfg.RateLimitRPM/60, cfg.RateLimitBurst, 10*time.Minute)
	defer limiter.Stop()

	server := httpapi.NewServer(httpapi.Config{
		Addr:            addrFromEnv(),
		Router:          router,
		Orch:            orch,
		Sessions:        sessions,
		Tools:           toolRegistry,
		Executor:        executor,
		Limiter:         limiter,
		Log:             logger,
		CMSEnabled:      cfg.CMSEnabled,
		JWTSecret:       []byte(os.Getenv("LLM_GATEWAY_JWT_SECRET")),
		Metrics:         collector.Handler(),
		MetricsRecorder: collector,
	})

	runCtx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := server.ListenAndServe(runCtx); err != nil {
		logger.Error(context.Background(), "server exited with error", gwlog.F("error", err.Error()))
		os.Exit(1)
	}
}

// buildAdapters constructs one adapter per provider name present in the
// model registry and for which an API key was collected. A provider listed
// in the registry with no key configured is skipped with a warning rather
// than failing startup, since the registry may list more providers than a
// given deployment actually uses.
func buildAdapters(ctx context.Context, logger gwlog.Logger, registryCfg *provider.RegistryConfig, cfg *gwconfig.Config) map[string]provider.Adapter {
	out := make(map[string]provider.Adapter)

	for name, entry := range registryCfg.Providers {
		apiKey := cfg.ProviderAPIKeys[name]
		if apiKey == "" && name != "gemini_compat" {
			logger.Warn(ctx, "no API key configured for provider, skipping", gwlog.F("provider", name))
			continue
		}

		switch name {
		case "openai":
			out[name] = adapters.NewOpenAI(name, apiKey, "", entry.Models)
		case "anthropic":
			out[name] = adapters.NewAnthropic(name, apiKey, "", entry.Models)
		case "gemini":
			gem, err := adapters.NewGemini(ctx, name, apiKey, entry.Models)
			if err != nil {
				logger.Error(ctx, "gemini adapter init failed, skipping", gwlog.F("error", err.Error()))
				continue
			}
			out[name] = gem
		default:
			logger.Warn(ctx, "unrecognized provider name in model registry, skipping", gwlog.F("provider", name))
		}
	}

	return out
}

func logLevelFromString(s string) gwlog.Level {
	switch s {
	case "debug":
		return gwlog.LevelDebug
	case "warn":
		return gwlog.LevelWarn
	case "error":
		return gwlog.LevelError
	case "none":
		return gwlog.LevelNone
	default:
		return gwlog.LevelInfo
	}
}

func addrFromEnv() string {
	if addr := os.Getenv("LLM_GATEWAY_ADDR"); addr != "" {
		return addr
	}
	return ":8080"
}
