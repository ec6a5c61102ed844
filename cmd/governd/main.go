package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/danielpatrickdp/exergate/internal/challenge"
	"github.com/danielpatrickdp/exergate/internal/governance"
	"github.com/danielpatrickdp/exergate/internal/journal"
	"github.com/danielpatrickdp/exergate/internal/metrics"
	"github.com/danielpatrickdp/exergate/internal/policy"
	"github.com/danielpatrickdp/exergate/internal/roster"
	"github.com/danielpatrickdp/exergate/internal/transport"
	"github.com/danielpatrickdp/exergate/internal/zones"
)

// #region config
type config struct {
	ListenAddr    string        `env:"GOVERND_ADDR" envDefault:":8080"`
	ConfigPath    string        `env:"GOVERND_CONFIG" envDefault:"governance.json"`
	JournalPath   string        `env:"GOVERND_JOURNAL" envDefault:"governance_journal.db"`
	PulseInterval time.Duration `env:"GOVERND_PULSE" envDefault:"1s"`
	KafkaBrokers  []string      `env:"GOVERND_KAFKA_BROKERS"`
	KafkaTopic    string        `env:"GOVERND_KAFKA_TOPIC" envDefault:"governance.transitions"`
	SchedulerSeed int64         `env:"GOVERND_SEED"`
}

// #endregion config

// #region main
func main() {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("parse env: %v", err)
	}

	registry, err := policy.NewRegistryFromFile(cfg.ConfigPath)
	if err != nil {
		log.Fatalf("load governance config %s: %v", cfg.ConfigPath, err)
	}

	table := registry.Table()
	r := roster.New(table, zones.NewStabilizer(zones.DefaultStabilizerConfig()))

	engineConfig := governance.DefaultConfig()
	var engine *governance.Engine
	if cfg.SchedulerSeed != 0 {
		engine = governance.NewEngineSeeded(engineConfig, table, r, registry, cfg.SchedulerSeed)
	} else {
		engine = governance.NewEngine(engineConfig, table, r, registry)
	}

	// Transition sinks: the sqlite journal always, Kafka when configured.
	store, err := journal.NewStore(cfg.JournalPath)
	if err != nil {
		log.Fatalf("open journal %s: %v", cfg.JournalPath, err)
	}
	defer store.Close()

	sinks := transport.FanoutSink{store}
	if len(cfg.KafkaBrokers) > 0 {
		publisher, err := transport.NewTransitionPublisher(transport.PublisherConfig{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaTopic,
		})
		if err != nil {
			log.Fatalf("kafka publisher: %v", err)
		}
		defer publisher.Close()
		sinks = append(sinks, publisher)
		log.Printf("[MAIN] publishing transitions to kafka topic %s", cfg.KafkaTopic)
	}
	engine.SetTransitionSink(sinks)

	m := metrics.NewMetrics()
	hub := transport.NewHub()
	wirePublishing(engine, m, hub)

	router := mux.NewRouter()
	transport.NewAPI(engine, r, m).Register(router)
	router.Handle("/ws/sensor", transport.NewSensorServer(r, engine))
	router.Handle("/ws/state", hub)
	router.Handle("/metrics", m.Handler())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go runPulse(ctx, engine, m, cfg.PulseInterval)

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: handlers.LoggingHandler(os.Stdout, router),
	}
	go func() {
		log.Printf("[MAIN] listening on %s (config=%s journal=%s)", cfg.ListenAddr, cfg.ConfigPath, cfg.JournalPath)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("serve: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("[MAIN] shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("[MAIN] shutdown: %v", err)
	}
}

// #endregion main

// #region wiring
// wirePublishing connects the engine's subscriptions to the websocket hub
// and the metrics collectors.
func wirePublishing(engine *governance.Engine, m *metrics.Metrics, hub *transport.Hub) {
	engine.OnStateChange(func(st governance.State) {
		hub.Broadcast(st)
		m.ObserveState(st)
		if st.ChallengeEvent != challenge.EventNone {
			m.ObserveChallengeEvent(string(st.ChallengeEvent))
		}
	})

	lastPhase := governance.PhaseIdle
	engine.OnPhaseChange(func(st governance.State) {
		m.ObserveTransition(lastPhase, st.Phase)
		lastPhase = st.Phase
	})
}

// runPulse drives the periodic re-evaluation tick. Deadline expiries (grace,
// challenge, staleness) surface through this path even when no sensor frame
// arrives.
func runPulse(ctx context.Context, engine *governance.Engine, m *metrics.Metrics, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			start := time.Now()
			engine.Evaluate(governance.TriggerPulse)
			m.ObserveEvaluation(governance.TriggerPulse, time.Since(start))
		}
	}
}

// #endregion wiring
