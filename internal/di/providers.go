package di

import (
	"fmt"

	"OptForge/internal/catalog"
	drepo "OptForge/internal/domain/repository"
	"OptForge/internal/handler"
	internalrepo "OptForge/internal/repository"
	"OptForge/internal/service/dividends"
	"OptForge/internal/service/divsource"
	"OptForge/internal/service/rates"
	"OptForge/internal/service/treasury"
	"OptForge/internal/usecase"
	"OptForge/pkg/cache"
	pkgch "OptForge/pkg/clickhouse"
	"OptForge/pkg/config"
	xhttp "OptForge/pkg/http"
	pkgkafka "OptForge/pkg/kafka"
	applogger "OptForge/pkg/logger"
	"OptForge/pkg/metrics"
	"OptForge/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() drepo.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient creates the shared ClickHouse client.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideCache selects the second-level cache backend. Redis when enabled,
// an in-process map otherwise.
func ProvideCache(cfg *config.Config) (cache.Service, error) {
	if !cfg.Cache.Redis.Enabled {
		return cache.NewMemoryCache(), nil
	}
	c, err := cache.NewRedisCache(cache.RedisConfig{
		Addr:     cfg.Cache.Redis.Addr,
		Password: cfg.Cache.Redis.Password,
		DB:       cfg.Cache.Redis.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return c, nil
}

// ProvideRateService wires the treasury feed into the rate curve service.
func ProvideRateService(cfg *config.Config, store cache.Service, m drepo.Metrics, l *applogger.Logger) *rates.Service {
	src := treasury.NewClient(cfg.Rates.BaseURL, cfg.Rates.Timeout, l)
	return rates.New(src,
		rates.WithLogger(l),
		rates.WithCache(store, cfg.Cache.TTL),
		rates.WithMetrics(m),
	)
}

// ProvideDividendService wires the dividend API into the dividend service.
func ProvideDividendService(cfg *config.Config, store cache.Service, m drepo.Metrics, l *applogger.Logger) *dividends.Service {
	src := divsource.NewClient(cfg.Dividends.BaseURL, cfg.Dividends.APIKey, cfg.Dividends.Timeout, l)
	return dividends.New(src,
		dividends.WithLogger(l),
		dividends.WithCache(store, cfg.Cache.TTL),
		dividends.WithMetrics(m),
	)
}

// ProvideAssembler creates the feature assembler for the configured mode.
func ProvideAssembler(cfg *config.Config, rateSvc *rates.Service, divSvc *dividends.Service, l *applogger.Logger) *usecase.Assembler {
	return usecase.NewAssembler(rateSvc, divSvc, cfg.Pipeline.OutputMode,
		usecase.WithAssemblerLogger(l))
}

// ProvideSource creates the ClickHouse source adapter.
func ProvideSource(ch *pkgch.Client, l *applogger.Logger) drepo.SourceDatabase {
	src := internalrepo.NewCHSource(ch)
	src.SetLogger(l)
	return src
}

// ProvideSink selects the sink backend.
func ProvideSink(cfg *config.Config, ch *pkgch.Client, m drepo.Metrics, l *applogger.Logger) (drepo.Sink, error) {
	switch cfg.Sink.Backend {
	case "kafka":
		producer, err := pkgkafka.NewProducer(
			pkgkafka.WithBrokers(cfg.Kafka.Brokers),
			pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
			pkgkafka.WithCompression(cfg.Kafka.Compression),
			pkgkafka.WithBatch(cfg.Kafka.BatchSize, cfg.Kafka.BatchTimeout),
			pkgkafka.WithWriteTimeout(cfg.Kafka.WriteTimeout),
		)
		if err != nil {
			return nil, fmt.Errorf("kafka producer: %w", err)
		}
		l.Info("kafka sink selected",
			applogger.Strings("brokers", cfg.Kafka.Brokers),
			applogger.String("topic", cfg.Kafka.Topic))
		sink := internalrepo.NewKafkaSink(producer, cfg.Kafka.Topic, cfg.Pipeline.OutputMode)
		sink.SetLogger(l)
		sink.SetMetrics(m)
		return sink, nil
	default:
		sink := internalrepo.NewCHSink(ch, cfg.Sink.Database, cfg.Pipeline.OutputMode)
		sink.SetLogger(l)
		sink.SetMetrics(m)
		return sink, nil
	}
}

// ProvideArtifactIndex pairs the index with the sink backend. The kafka
// backend keeps no manifest, so every run re-exports.
func ProvideArtifactIndex(cfg *config.Config, ch *pkgch.Client) drepo.ArtifactIndex {
	if cfg.Sink.Backend == "kafka" {
		return internalrepo.NoopArtifactIndex{}
	}
	return internalrepo.NewCHArtifactIndex(ch, cfg.Sink.Database, cfg.Pipeline.OutputMode)
}

// ProvidePlanner creates the ingestion planner.
func ProvidePlanner(cfg *config.Config, index drepo.ArtifactIndex, m drepo.Metrics, l *applogger.Logger) (*catalog.Planner, error) {
	start, err := cfg.StartDate()
	if err != nil {
		return nil, err
	}
	return catalog.New(catalog.Config{
		HistoryOnly:     cfg.Pipeline.HistoryOnly,
		StartDate:       start,
		GracePeriod:     cfg.Pipeline.GracePeriod,
		RefreshData:     cfg.Pipeline.RefreshData,
		IgnoreGroups:    cfg.Pipeline.IgnoreGroups,
		StockSkipTables: cfg.Pipeline.StockSkipTables,
	}, index,
		catalog.WithLogger(l),
		catalog.WithMetrics(m),
	), nil
}

// ProvideController wires the pipeline controller.
func ProvideController(cfg *config.Config, source drepo.SourceDatabase, sink drepo.Sink, planner *catalog.Planner, asm *usecase.Assembler, m drepo.Metrics, l *applogger.Logger) *usecase.Controller {
	return usecase.NewController(source, sink, planner, asm,
		usecase.WithControllerLogger(l),
		usecase.WithControllerMetrics(m),
		usecase.WithWorkers(cfg.Pipeline.Workers),
	)
}

// ProvideOpsHandler creates the ops routes for the HTTP server.
func ProvideOpsHandler(ctrl *usecase.Controller, ch *pkgch.Client) xhttp.Handler {
	return handler.NewOpsHandler(ctrl.Progress(), map[string]handler.HealthChecker{
		"clickhouse": ch,
	})
}

// ProvideApp assembles the application.
func ProvideApp(cfg *config.Config, ctrl *usecase.Controller, sink drepo.Sink, ch *pkgch.Client, l *applogger.Logger, h xhttp.Handler) *server.App {
	app := server.New(cfg, ctrl, sink, ch, l)
	app.SetHTTPHandler(h)
	return app
}
