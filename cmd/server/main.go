package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yanun0323/logs"

	"brokerd/internal/audit"
	"brokerd/internal/bus"
	"brokerd/internal/config"
	"brokerd/internal/dispatcher"
	"brokerd/internal/facade"
	"brokerd/internal/obs"
	"brokerd/internal/proto"
	"brokerd/internal/quote"
	"brokerd/internal/risk"
	"brokerd/internal/session"
	"brokerd/internal/stream"
	"brokerd/internal/upstream"
	"brokerd/libs/shared/metric"
	"brokerd/pkg/conn"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logs.Errorf("config: %+v", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	watcher, err := config.NewWatcher(cfg.RiskConfigPath)
	if err != nil {
		logs.Errorf("config: risk watcher, %+v", err)
		os.Exit(1)
	}
	go watcher.Run(ctx)

	metrics := obs.NewMetrics()

	if os.Getenv("BROKERD_PROFILE_ADDR") != "" {
		stopProfiler, err := obs.StartProfiler("brokerd", os.Getenv("BROKERD_PROFILE_ADDR"), map[string]string{"env": getenvDefault("BROKERD_ENV", "dev")})
		if err != nil {
			logs.Errorf("profiler: start, err: %+v", err)
		} else {
			defer stopProfiler()
		}
	}

	auditStore := mustAuditStore(ctx, cfg)

	client := mustUpstreamClient(cfg)
	sess := session.New(client, cfg.ReconnectMaxAttempts, metrics)
	if err := sess.Establish(ctx); err != nil {
		logs.Errorf("session: establish, err: %+v", err)
		os.Exit(1)
	}

	b := bus.New(cfg.BusQueueDepth)
	go b.RunReplyJanitor(ctx)

	catalog := quote.NewStaticCatalog(defaultProductFamilies())
	quotes := quote.New(sess, client, catalog, b, metrics)

	riskEngine := risk.NewEngine(func() config.RiskLimits { return watcher.Current().Risk })

	disp := dispatcher.New(b, sess, quotes, riskEngine, auditStore, metrics)
	go disp.Run(ctx)

	httpMux := http.NewServeMux()
	facade.New(b, cfg.AuthKey).Routes(httpMux)
	httpServer := &http.Server{Addr: cfg.HTTPAddr, Handler: httpMux}

	wsMux := http.NewServeMux()
	wsMux.Handle("/ws/quotes", stream.New(b, metrics, cfg.AuthKey))
	wsServer := &http.Server{Addr: cfg.WSAddr, Handler: wsMux}

	var memMetric metric.RuntimeMemoryMetric
	go memMetric.RunReportSchedule(ctx, time.Minute)

	go func() {
		logs.Infof("http facade listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logs.Errorf("http facade: %+v", err)
			os.Exit(1)
		}
	}()
	go func() {
		logs.Infof("streaming hub listening on %s", cfg.WSAddr)
		if err := wsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logs.Errorf("streaming hub: %+v", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logs.Infof("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
	_ = wsServer.Shutdown(shutdownCtx)
	if err := client.Logout(shutdownCtx); err != nil {
		logs.Errorf("session: logout, err: %+v", err)
	}
}

func mustUpstreamClient(cfg config.Config) upstream.Client {
	if os.Getenv("BROKERD_SIMULATION") == "true" {
		return upstream.NewSimulated(defaultSymbols())
	}
	return upstream.NewRESTClient(nil, os.Getenv("BROKERD_BROKER_BASE_URL"), upstream.Credentials{
		APIKey: cfg.BrokerAPIKey,
		Secret: cfg.BrokerSecret,
	})
}

func mustAuditStore(ctx context.Context, cfg config.Config) *audit.Store {
	if cfg.DatabaseDSN == "" {
		logs.Infof("audit: BROKERD_DATABASE_DSN unset, audit rows will be skipped")
		return nil
	}
	client, err := conn.New(conn.Option{ConnString: cfg.DatabaseDSN})
	if err != nil {
		logs.Errorf("audit: connect, err: %+v", err)
		os.Exit(1)
	}
	store := audit.New(client.DB())
	if err := store.Migrate(ctx); err != nil {
		logs.Errorf("audit: migrate, err: %+v", err)
		os.Exit(1)
	}
	return store
}

func defaultProductFamilies() []quote.ProductFamily {
	return []quote.ProductFamily{
		{Prefix: "TMF", NearMonth: "TMFR1", NextMonth: "TMFR2"},
		{Prefix: "MXF", NearMonth: "MXFR1", NextMonth: "MXFR2"},
	}
}

func defaultSymbols() []proto.SymbolInfo {
	return []proto.SymbolInfo{
		{Symbol: "TMFR1", ProductFamily: "TMF", IsAlias: true},
		{Symbol: "TMFR2", ProductFamily: "TMF", IsAlias: true},
		{Symbol: "MXFR1", ProductFamily: "MXF", IsAlias: true},
		{Symbol: "MXFR2", ProductFamily: "MXF", IsAlias: true},
		// Underlying exchange-code contracts the near/next-month aliases
		// above resolve to. Orders must be placed against these directly;
		// the pseudo-symbols are quote-only.
		{Symbol: "TMF202512", ExchangeCode: "TMF202512", ProductFamily: "TMF", IsAlias: false},
		{Symbol: "MXF202512", ExchangeCode: "MXF202512", ProductFamily: "MXF", IsAlias: false},
	}
}

func getenvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
