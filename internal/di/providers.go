package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"RegimeTrader/internal/domain/repository"
	domsvc "RegimeTrader/internal/domain/service"
	"RegimeTrader/internal/handler/api"
	internalrepo "RegimeTrader/internal/repository"
	"RegimeTrader/internal/service/ratelimit"
	"RegimeTrader/internal/services/backtest"
	"RegimeTrader/internal/services/regime"
	"RegimeTrader/internal/usecase"
	"RegimeTrader/pkg/cache"
	pkgch "RegimeTrader/pkg/clickhouse"
	"RegimeTrader/pkg/config"
	xhttp "RegimeTrader/pkg/http"
	pkgkafka "RegimeTrader/pkg/kafka"
	applogger "RegimeTrader/pkg/logger"
	"RegimeTrader/pkg/metrics"
	"RegimeTrader/pkg/queue"
	"RegimeTrader/pkg/server"

	"github.com/prometheus/client_golang/prometheus"
)

// ProvideLogger builds the application logger from the log section.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New(prometheus.DefaultRegisterer)
}

// ProvideClickHouseClient creates a ClickHouse client and ensures the schema.
// Returns nil when ClickHouse is disabled.
func ProvideClickHouseClient(cfg *config.Config, l *applogger.Logger) (*pkgch.Client, func(), error) {
	if !cfg.ClickHouse.Enabled {
		return nil, func() {}, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithAddr(cfg.ClickHouse.Host, cfg.ClickHouse.Port),
		pkgch.WithAuth(cfg.ClickHouse.Database, cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithPool(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, true),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, pkgch.SchemaStatements(cfg.ClickHouse.Database)); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	l.Info("clickhouse ready", applogger.String("database", cfg.ClickHouse.Database))

	return client, func() {
		if err := client.Close(); err != nil {
			l.Warn("clickhouse close error", applogger.Error(err))
		}
	}, nil
}

// ProvideKafkaProducer creates a Kafka producer. Returns nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Producer, func(), error) {
	if !cfg.Kafka.Enabled {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers...),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithDelivery(cfg.Kafka.RequiredAcks, cfg.Kafka.MaxAttempts),
		pkgkafka.WithWriteTimeout(cfg.Kafka.WriteTimeout),
		pkgkafka.WithKeyedPartitioning(),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	l.Info("kafka producer ready", applogger.Strings("brokers", cfg.Kafka.Brokers))

	return producer, func() {
		if err := producer.Close(); err != nil {
			l.Warn("kafka producer close error", applogger.Error(err))
		}
	}, nil
}

// ProvideRedisCache connects to Redis. Returns nil when Redis is disabled.
// The connection is closed through the cache built on top of it.
func ProvideRedisCache(cfg *config.Config, l *applogger.Logger) (*cache.RedisCache, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisAddr(fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)),
		cache.WithRedisAuth(cfg.Redis.Password, cfg.Redis.DB),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
		// one blocking connection per job worker plus headroom
		cache.WithRedisPool(cfg.Jobs.Workers+8, 2),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	l.Info("redis ready", applogger.String("addr", rc.Client().Options().Addr))
	return rc, nil
}

// ProvideCache puts a memory layer in front of Redis when it is enabled,
// otherwise it returns a process-local memory cache.
func ProvideCache(cfg *config.Config, rc *cache.RedisCache, l *applogger.Logger) (cache.Service, func(), error) {
	var svc cache.Service
	if rc != nil {
		svc = cache.NewLayeredCache(rc, cache.WithMemoryTTL(cfg.Redis.ResultTTL))
	} else {
		svc = cache.NewMemoryCache(cache.WithMemoryTTL(cfg.Redis.ResultTTL))
	}
	return svc, func() {
		if err := svc.Close(); err != nil {
			l.Warn("cache close error", applogger.Error(err))
		}
	}, nil
}

// ProvideQueue returns the Redis job queue when Redis is enabled, otherwise
// an in-process queue. The App starts and stops it.
func ProvideQueue(cfg *config.Config, rc *cache.RedisCache, l *applogger.Logger) queue.Queue {
	qc := queue.Config{
		Workers:    cfg.Jobs.Workers,
		QueueSize:  cfg.Jobs.QueueSize,
		RetryLimit: cfg.Jobs.RetryLimit,
		RetryDelay: cfg.Jobs.RetryDelay,
	}
	if rc != nil {
		return queue.NewRedisQueue(l, qc, rc.Client(), queue.WithKeyPrefix(cfg.Redis.Prefix+":queue"))
	}
	return queue.NewMemoryQueue(l, qc)
}

// ProvideJobStore keeps job status in Redis directly when available so
// every process sees the worker's updates.
func ProvideJobStore(cfg *config.Config, rc *cache.RedisCache, svc cache.Service) *internalrepo.JobStore {
	if rc != nil {
		return internalrepo.NewJobStore(rc, cfg.Jobs.StatusTTL)
	}
	return internalrepo.NewJobStore(svc, cfg.Jobs.StatusTTL)
}

// ProvideBarStore selects the bar source. Remote sources sit behind a
// circuit breaker.
func ProvideBarStore(cfg *config.Config, ch *pkgch.Client, l *applogger.Logger) (repository.BarStore, error) {
	switch cfg.Data.Source {
	case "csv":
		return internalrepo.NewCSVBarStore(cfg.Data.CSVDir), nil
	case "clickhouse":
		if ch == nil {
			return nil, fmt.Errorf("bar store: clickhouse source needs clickhouse enabled")
		}
		s := internalrepo.NewCHBarStore(ch, cfg.ClickHouse.Database)
		s.SetLogger(l)
		return internalrepo.NewBreakerBarStore("clickhouse", s,
			cfg.ClickHouse.Breaker.MaxFailures, cfg.ClickHouse.Breaker.OpenTimeout, l), nil
	case "yahoo":
		client := xhttp.NewClient(xhttp.WithTimeout(cfg.Data.FetchTimeout))
		s := internalrepo.NewYahooBarStore(client, cfg.Data.YahooURL, l)
		return internalrepo.NewBreakerBarStore("yahoo", s,
			cfg.ClickHouse.Breaker.MaxFailures, cfg.ClickHouse.Breaker.OpenTimeout, l), nil
	default:
		return nil, fmt.Errorf("bar store: unknown source %q", cfg.Data.Source)
	}
}

// ProvideBarWriter returns the ClickHouse bar table writer used by imports.
// Returns nil when ClickHouse is disabled.
func ProvideBarWriter(cfg *config.Config, ch *pkgch.Client, l *applogger.Logger) *internalrepo.CHBarStore {
	if ch == nil {
		return nil
	}
	s := internalrepo.NewCHBarStore(ch, cfg.ClickHouse.Database)
	s.SetLogger(l)
	return s
}

// ProvideResultPublisher returns nil when Kafka is disabled.
func ProvideResultPublisher(cfg *config.Config, producer *pkgkafka.Producer) repository.ResultPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.ResultsTopic, cfg.Kafka.TradesTopic)
}

// ProvideResultStore returns nil when ClickHouse is disabled.
func ProvideResultStore(cfg *config.Config, ch *pkgch.Client) repository.ResultStore {
	if ch == nil {
		return nil
	}
	return internalrepo.NewCHResultStore(ch, cfg.ClickHouse.Database)
}

func ProvideResultCache(cfg *config.Config, svc cache.Service) *internalrepo.ResultCache {
	return internalrepo.NewResultCache(svc, cfg.Redis.ResultTTL)
}

// ProvideClassifierFactory returns a factory for untrained regime models.
// Every run trains its own model.
func ProvideClassifierFactory(cfg *config.Config, l *applogger.Logger) usecase.ClassifierFactory {
	rc := cfg.Regime
	return func() domsvc.RegimeClassifier {
		return regime.New(rc, regime.WithLogger(l))
	}
}

func ProvideDriver(cfg *config.Config, l *applogger.Logger) *backtest.Driver {
	return backtest.NewDriver(cfg.Backtest, cfg.Policy, backtest.WithLogger(l))
}

func ProvideBacktestUseCase(
	cfg *config.Config,
	bars repository.BarStore,
	newModel usecase.ClassifierFactory,
	driver *backtest.Driver,
	m repository.Metrics,
	pub repository.ResultPublisher,
	store repository.ResultStore,
	rc *internalrepo.ResultCache,
	l *applogger.Logger,
) *usecase.BacktestUseCase {
	return usecase.NewBacktestUseCase(bars, newModel, driver, m, l,
		usecase.WithPublisher(pub),
		usecase.WithResultStore(store),
		usecase.WithResultCache(rc, internalrepo.ResultKey),
		usecase.WithDefaults(cfg.Data.Days, repository.Timeframe(cfg.Data.Timeframe)),
		usecase.WithTimeout(cfg.Data.FetchTimeout+cfg.Server.WriteTimeout),
	)
}

func ProvideJobUseCase(cfg *config.Config, q queue.Queue, store *internalrepo.JobStore, bt *usecase.BacktestUseCase, l *applogger.Logger) *usecase.JobUseCase {
	return usecase.NewJobUseCase(q, store, bt, l,
		usecase.WithLease(cfg.Jobs.Lease),
		usecase.WithRetryable(cfg.Jobs.RetryLimit, func(err error) bool {
			return errors.Is(err, internalrepo.ErrSourceUnavailable) || errors.Is(err, context.DeadlineExceeded)
		}),
	)
}

func ProvideRegimeUseCase(bars repository.BarStore, newModel usecase.ClassifierFactory, l *applogger.Logger) *usecase.RegimeUseCase {
	return usecase.NewRegimeUseCase(bars, newModel, l)
}

func ProvideWatchlistUseCase(cfg *config.Config, bt *usecase.BacktestUseCase, l *applogger.Logger) *usecase.WatchlistUseCase {
	return usecase.NewWatchlistUseCase(bt, cfg.Watchlist.Symbols, cfg.Backtest.Workers, l)
}

func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(cfg.Server.RateLimit.PerSecond, cfg.Server.RateLimit.Burst)
}

func ProvideHTTPHandler(
	l *applogger.Logger,
	bt *usecase.BacktestUseCase,
	rg *usecase.RegimeUseCase,
	wl *usecase.WatchlistUseCase,
) *api.BacktestHandler {
	return api.NewBacktestHandler(l, bt, rg, wl)
}

func ProvideJobsHandler(l *applogger.Logger, jobs *usecase.JobUseCase) *api.JobsHandler {
	return api.NewJobsHandler(l, jobs)
}

// ProvideApp creates the application.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	bt *usecase.BacktestUseCase,
	rg *usecase.RegimeUseCase,
	wl *usecase.WatchlistUseCase,
	jobs *usecase.JobUseCase,
	q queue.Queue,
	h *api.BacktestHandler,
	jh *api.JobsHandler,
	limiter *ratelimit.Limiter,
	writer *internalrepo.CHBarStore,
) *server.App {
	return server.New(cfg, l, server.UseCases{
		Backtest:  bt,
		Regime:    rg,
		Watchlist: wl,
		Jobs:      jobs,
	}, q, []xhttp.Handler{h, jh}, limiter, writer)
}
