package main

import (
	"context"
	"fmt"
	"time"

	health_module "github.com/ethanbaker/storyvideo/internal/api/modules/health"
	"github.com/ethanbaker/storyvideo/internal/events"
	"github.com/ethanbaker/storyvideo/internal/ingest"
	contentstore "github.com/ethanbaker/storyvideo/internal/stores/content"
	"github.com/ethanbaker/storyvideo/internal/stores/delegation"
	"github.com/ethanbaker/storyvideo/internal/stores/uploads"
	"github.com/ethanbaker/storyvideo/internal/videohost"
	"github.com/ethanbaker/storyvideo/pkg/content"
	"github.com/ethanbaker/storyvideo/pkg/logging"
	"github.com/ethanbaker/storyvideo/pkg/retry"
	"github.com/ethanbaker/storyvideo/pkg/utils"
	"github.com/go-sql-driver/mysql"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
)

const defaultKafkaTopic = "storyvideo.video-events"

// application holds the wired service and what must be closed on exit
type application struct {
	pipeline  *ingest.Pipeline
	registry  *prometheus.Registry
	checks    map[string]health_module.Check
	store     *contentstore.Store
	access    *delegation.Store
	publisher events.Publisher
	redis     *goredis.Client
}

// mysqlDSN assembles the connection string from the MYSQL_* keys
func mysqlDSN(cfg *utils.Config) string {
	dbConfig := mysql.Config{
		User:                 cfg.Get("MYSQL_USER"),
		Passwd:               cfg.Get("MYSQL_ROOT_PASSWORD"),
		Net:                  "tcp",
		Addr:                 fmt.Sprintf("%s:%s", cfg.GetWithDefault("MYSQL_HOST", "127.0.0.1"), cfg.GetWithDefault("MYSQL_PORT", "3306")),
		DBName:               cfg.Get("MYSQL_DATABASE"),
		ParseTime:            true,
		AllowNativePasswords: true,
	}
	return dbConfig.FormatDSN()
}

// openStores connects the MySQL backed stores over one connection pool
func openStores(cfg *utils.Config) (*contentstore.Store, *delegation.Store, error) {
	store, err := contentstore.NewStore(mysqlDSN(cfg))
	if err != nil {
		return nil, nil, err
	}
	return store, delegation.NewStoreFromDB(store.GetDB()), nil
}

// transcriptPolicy reads the TRANSCRIPT_* keys
func transcriptPolicy(cfg *utils.Config) retry.Policy {
	defaults := retry.DefaultPolicy()
	return retry.Policy{
		MaxAttempts: cfg.GetIntWithDefault("TRANSCRIPT_MAX_ATTEMPTS", defaults.MaxAttempts),
		BaseDelay:   cfg.GetDurationWithDefault("TRANSCRIPT_BASE_DELAY", defaults.BaseDelay),
		MaxDelay:    cfg.GetDurationWithDefault("TRANSCRIPT_MAX_DELAY", defaults.MaxDelay),
	}
}

// uploadSettings reads the YAML settings file, then lets VIDEO_UPLOAD_TIMEOUT override the window
func uploadSettings(cfg *utils.Config) (utils.UploadSettings, error) {
	settings, err := utils.LoadUploadSettings(cfg.Get("VIDEO_SETTINGS_PATH"))
	if err != nil {
		return settings, err
	}
	settings.Timeout = cfg.GetDurationWithDefault("VIDEO_UPLOAD_TIMEOUT", settings.Timeout)
	return settings, nil
}

// newApplication wires every component from configuration
func newApplication(cfg *utils.Config, logger logging.Logger) (*application, error) {
	app := &application{
		registry: prometheus.NewRegistry(),
		checks:   make(map[string]health_module.Check),
	}
	app.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	settings, err := uploadSettings(cfg)
	if err != nil {
		return nil, err
	}

	app.store, app.access, err = openStores(cfg)
	if err != nil {
		return nil, err
	}
	app.checks["database"] = app.store.Ping

	// Upload sessions live in Redis when configured, otherwise in process
	var sessions content.UploadSessionStore
	if addr := cfg.Get("REDIS_ADDR"); addr != "" {
		app.redis = goredis.NewClient(&goredis.Options{
			Addr:     addr,
			Password: cfg.Get("REDIS_PASSWORD"),
			DB:       cfg.GetIntWithDefault("REDIS_DB", 0),
		})
		sessions = uploads.NewRedisStore(app.redis)
		app.checks["redis"] = func(ctx context.Context) error {
			return app.redis.Ping(ctx).Err()
		}
	} else {
		logger.Warn("REDIS_ADDR not set, upload sessions are kept in process memory")
		sessions = uploads.NewInMemoryStore()
	}

	// Domain events go to Kafka when brokers are configured
	if brokers := cfg.GetList("KAFKA_BROKERS"); len(brokers) > 0 {
		publisher, err := events.NewKafkaPublisher(brokers, cfg.GetWithDefault("KAFKA_TOPIC", defaultKafkaTopic), logger)
		if err != nil {
			app.Close()
			return nil, err
		}
		app.publisher = publisher
	} else {
		app.publisher = events.NopPublisher{}
	}

	videos := videohost.NewClient(videohost.Config{
		APIURL:      cfg.GetWithDefault("VIDEO_API_URL", videohost.DefaultAPIURL),
		StreamURL:   cfg.GetWithDefault("VIDEO_STREAM_URL", videohost.DefaultStreamURL),
		TokenID:     cfg.Get("VIDEO_TOKEN_ID"),
		TokenSecret: cfg.Get("VIDEO_TOKEN_SECRET"),
		MaxRetries:  cfg.GetIntWithDefault("VIDEO_API_MAX_RETRIES", 2),
		BaseDelay:   cfg.GetDurationWithDefault("VIDEO_API_BASE_DELAY", 200*time.Millisecond),
		MaxDelay:    cfg.GetDurationWithDefault("VIDEO_API_MAX_DELAY", 2*time.Second),
		Logger:      logger,
	})

	app.pipeline = ingest.NewPipeline(ingest.Dependencies{
		Store:            app.store,
		Sessions:         sessions,
		Access:           app.access,
		Videos:           videos,
		Publisher:        app.publisher,
		Settings:         settings,
		TranscriptPolicy: transcriptPolicy(cfg),
		Webhooks: ingest.RouterConfig{
			Secret:    cfg.Get("VIDEO_WEBHOOK_SECRET"),
			Tolerance: cfg.GetDurationWithDefault("VIDEO_WEBHOOK_TOLERANCE", ingest.DefaultSignatureTolerance),
		},
		SweepMinAge: cfg.GetDurationWithDefault("SWEEP_MIN_AGE", 30*time.Minute),
		Registerer:  app.registry,
		Logger:      logger,
	})

	return app, nil
}

// Close releases every connection
func (a *application) Close() {
	if a.publisher != nil {
		_ = a.publisher.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.store != nil {
		_ = a.store.Close()
	}
}
