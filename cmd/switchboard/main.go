// Command switchboard runs a terminal chat against a small agent team.
// It wires the full stack from switchboard.toml: provider middlewares,
// the configured storage backend, the classifier, and optional OTEL
// observability.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	"github.com/switchboardhq/switchboard"
	"github.com/switchboardhq/switchboard/config"
	"github.com/switchboardhq/switchboard/observer"
	"github.com/switchboardhq/switchboard/provider/openaicompat"
	"github.com/switchboardhq/switchboard/store/memory"
	"github.com/switchboardhq/switchboard/store/postgres"
	"github.com/switchboardhq/switchboard/store/redis"
	"github.com/switchboardhq/switchboard/store/sqlite"
)

func main() {
	ctx := context.Background()
	cfg := config.Load(os.Getenv("SWITCHBOARD_CONFIG"))
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	var inst *observer.Instruments
	if cfg.Observer.Enabled {
		pricing := make(map[string]observer.ModelPricing, len(cfg.Observer.Pricing))
		for model, p := range cfg.Observer.Pricing {
			pricing[model] = observer.ModelPricing{InputPerMillion: p.Input, OutputPerMillion: p.Output}
		}
		var shutdown func(context.Context) error
		var err error
		inst, shutdown, err = observer.Init(ctx, pricing)
		if err != nil {
			log.Fatalf("observer init: %v", err)
		}
		defer shutdown(ctx)
	}

	chatLLM := buildProvider(cfg.LLM, inst)
	classifierLLM := buildProvider(providerSettings(cfg.Classifier), inst)

	storage, cleanup, err := buildStorage(ctx, cfg.Storage, inst)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}
	defer cleanup()

	orch := switchboard.New(cfg.RouterConfig(),
		switchboard.WithStorage(storage),
		switchboard.WithLogger(logger),
	)

	tech := switchboard.NewLLMAgent("Tech Support",
		"Handles technical questions, troubleshooting, and product bugs", chatLLM)
	billing := switchboard.NewLLMAgent("Billing",
		"Handles invoices, payments, refunds, and subscription changes", chatLLM,
		switchboard.WithStreaming())
	general := switchboard.NewLLMAgent("General Assistant",
		"Handles everything that does not fit another agent", chatLLM)

	for _, a := range []switchboard.Agent{tech, billing, general} {
		if err := orch.AddAgent(a); err != nil {
			log.Fatalf("add agent: %v", err)
		}
	}
	if err := orch.SetDefaultAgent(general.ID()); err != nil {
		log.Fatalf("default agent: %v", err)
	}
	orch.SetClassifier(switchboard.NewLLMClassifier(classifierLLM, orch.Registry(),
		switchboard.WithClassifierMaxHistory(cfg.Classifier.MaxHistory)))

	fmt.Println("switchboard ready; ctrl-d to exit")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		resp, err := orch.RouteRequest(ctx, input, "local-user", "terminal", nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "route: %v\n", err)
			continue
		}

		fmt.Printf("[%s] ", resp.Metadata.AgentID)
		if resp.Streaming {
			for ev := range resp.Stream {
				switch ev.Type {
				case switchboard.EventToken:
					fmt.Print(ev.Token)
				case switchboard.EventError:
					fmt.Fprintf(os.Stderr, "\nstream: %v\n", ev.Err)
				}
			}
			fmt.Println()
		} else {
			fmt.Println(resp.Output.Text())
		}
	}
}

// providerSettings lifts classifier settings into the shared LLM shape.
func providerSettings(c config.ClassifierConfig) config.LLMConfig {
	return config.LLMConfig{Provider: c.Provider, Model: c.Model, BaseURL: c.BaseURL, APIKey: c.APIKey}
}

// buildProvider assembles an OpenAI-compatible provider with retry and rate
// limiting, instrumented when observability is enabled.
func buildProvider(c config.LLMConfig, inst *observer.Instruments) switchboard.Provider {
	var p switchboard.Provider = openaicompat.NewProvider(c.APIKey, c.Model, c.BaseURL,
		openaicompat.WithName(c.Provider))
	p = switchboard.WithRetry(p)
	p = switchboard.WithRateLimit(p, switchboard.RPM(120))
	if inst != nil {
		p = observer.WrapProvider(p, c.Model, inst)
	}
	return p
}

// buildStorage selects a ChatStorage backend from config. The returned
// cleanup func closes whatever the backend owns.
func buildStorage(ctx context.Context, c config.StorageConfig, inst *observer.Instruments) (switchboard.ChatStorage, func(), error) {
	var (
		storage switchboard.ChatStorage
		cleanup = func() {}
	)
	switch c.Backend {
	case "", "memory":
		storage = memory.New()
	case "sqlite":
		s := sqlite.New(c.SQLitePath)
		if err := s.Init(ctx); err != nil {
			return nil, nil, err
		}
		storage, cleanup = s, func() { s.Close() }
	case "postgres":
		pool, err := pgxpool.New(ctx, c.PostgresURL)
		if err != nil {
			return nil, nil, err
		}
		s := postgres.New(pool)
		if err := s.Init(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		storage, cleanup = s, pool.Close
	case "redis":
		client := goredis.NewClient(&goredis.Options{Addr: c.RedisAddr, DB: c.RedisDB})
		storage, cleanup = redis.New(client), func() { client.Close() }
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", c.Backend)
	}
	if inst != nil {
		backend := c.Backend
		if backend == "" {
			backend = "memory"
		}
		storage = observer.WrapStorage(storage, backend, inst)
	}
	return storage, cleanup, nil
}
