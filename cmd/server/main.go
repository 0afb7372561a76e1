// Command server starts the cliptide API HTTP service.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"cliptide/internal/api"
	"cliptide/internal/media"
	"cliptide/internal/objectstore"
	"cliptide/internal/observability/logging"
	"cliptide/internal/server"
	"cliptide/internal/serverutil"
	"cliptide/internal/storage"
	"cliptide/internal/workflow"
)

// defaultCategories is seeded on startup when the categories table is empty.
var defaultCategories = []string{
	"Music",
	"Sports",
	"Gaming",
	"News",
	"Entertainment",
	"Education",
	"Science & Technology",
	"Travel & Events",
	"People & Blogs",
	"Comedy",
	"Howto & Style",
	"Film & Animation",
	"Pets & Animals",
	"Autos & Vehicles",
	"Nonprofits & Activism",
	"Shows",
	"Trailers",
	"Short Movies",
	"Documentary",
	"Action & Adventure",
	"Classics",
	"Cult Movies",
	"Horror",
	"Sci-Fi & Fantasy",
	"Thriller",
	"Anime/Animation",
	"Family",
	"Foreign Movies",
	"Music Videos",
}

func main() {
	addr := flag.String("addr", "", "HTTP listen address")
	logLevel := flag.String("log-level", "", "log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", "", "log format (json or text)")
	storageDriver := flag.String("storage-driver", "", "datastore driver (json or postgres)")
	dataPath := flag.String("data", "", "path to the JSON datastore")
	postgresDSN := flag.String("postgres-dsn", "", "Postgres connection string")
	postgresMaxConns := flag.Int("postgres-max-conns", 0, "maximum connections in the Postgres pool")
	postgresMinConns := flag.Int("postgres-min-conns", 0, "minimum idle connections maintained by the Postgres pool")
	postgresMaxConnLifetime := flag.Duration("postgres-max-conn-lifetime", 0, "maximum lifetime for a pooled Postgres connection")
	postgresMaxConnIdle := flag.Duration("postgres-max-conn-idle", 0, "maximum idle time for a pooled Postgres connection")
	postgresHealthInterval := flag.Duration("postgres-health-interval", 0, "interval between Postgres health checks")
	postgresConnectTimeout := flag.Duration("postgres-connect-timeout", 0, "timeout when dialing Postgres")
	postgresAppName := flag.String("postgres-app-name", "", "application_name reported to Postgres")
	tlsCert := flag.String("tls-cert", "", "path to TLS certificate file")
	tlsKey := flag.String("tls-key", "", "path to TLS private key file")
	globalRPS := flag.Float64("rate-global-rps", 0, "global request rate limit in requests per second")
	globalBurst := flag.Int("rate-global-burst", 0, "global rate limit burst allowance")
	mutationLimit := flag.Int("rate-mutation-limit", 0, "maximum mutations per window for a single caller")
	mutationWindow := flag.Duration("rate-mutation-window", 0, "window for counting caller mutations")
	redisAddr := flag.String("rate-redis-addr", "", "Redis address for distributed mutation throttling")
	redisUsername := flag.String("rate-redis-username", "", "Redis username for distributed mutation throttling")
	redisPassword := flag.String("rate-redis-password", "", "Redis password for distributed mutation throttling")
	redisTimeout := flag.Duration("rate-redis-timeout", 0, "timeout for Redis operations")
	mediaBaseURL := flag.String("media-base-url", "", "media pipeline API root")
	mediaToken := flag.String("media-token", "", "media pipeline API token")
	mediaImageBaseURL := flag.String("media-image-base-url", "", "media pipeline image host for thumbnails and previews")
	mediaPlaybackPolicy := flag.String("media-playback-policy", "", "playback policy requested for new uploads")
	workflowBaseURL := flag.String("workflow-base-url", "", "workflow runner API root")
	workflowToken := flag.String("workflow-token", "", "workflow runner API token")
	identityWebhookSecret := flag.String("identity-webhook-secret", "", "shared secret for identity webhooks")
	mediaWebhookSecret := flag.String("media-webhook-secret", "", "shared secret for media webhooks")
	workflowCallbackSecret := flag.String("workflow-callback-secret", "", "bearer token expected on workflow callbacks")
	objectEndpoint := flag.String("object-endpoint", "", "object storage endpoint for thumbnails")
	objectPublicEndpoint := flag.String("object-public-endpoint", "", "public endpoint used in stored thumbnail URLs")
	objectBucket := flag.String("object-bucket", "", "object storage bucket name")
	objectPrefix := flag.String("object-prefix", "", "object storage key prefix")
	objectRegion := flag.String("object-region", "", "object storage region")
	objectAccessKey := flag.String("object-access-key", "", "object storage access key")
	objectSecretKey := flag.String("object-secret-key", "", "object storage secret key")
	objectUseSSL := flag.Bool("object-use-ssl", false, "enable TLS for object storage requests")
	flag.Parse()

	logger := logging.Init(logging.Config{
		Level:  firstNonEmpty(*logLevel, os.Getenv("CLIPTIDE_LOG_LEVEL")),
		Format: firstNonEmpty(*logFormat, os.Getenv("CLIPTIDE_LOG_FORMAT")),
	})

	dsn := firstNonEmpty(*postgresDSN, os.Getenv("CLIPTIDE_POSTGRES_DSN"), os.Getenv("DATABASE_URL"))
	driver := resolveStorageDriver(*storageDriver, os.Getenv("CLIPTIDE_STORAGE_DRIVER"), dsn)

	var (
		store storage.Repository
		err   error
	)
	switch driver {
	case "json", "memory":
		dataFile := firstNonEmpty(*dataPath, os.Getenv("CLIPTIDE_DATA"), "data/cliptide.json")
		store, err = storage.NewStorage(dataFile)
	case "postgres":
		if dsn == "" {
			logger.Error("postgres storage selected without DSN")
			os.Exit(1)
		}
		var opts []storage.Option
		maxConns := resolveInt(*postgresMaxConns, "CLIPTIDE_POSTGRES_MAX_CONNS")
		minConns := resolveInt(*postgresMinConns, "CLIPTIDE_POSTGRES_MIN_CONNS")
		if maxConns > 0 || minConns > 0 {
			opts = append(opts, storage.WithPostgresPoolLimits(int32(maxConns), int32(minConns)))
		}
		maxLifetime := resolveDuration(*postgresMaxConnLifetime, "CLIPTIDE_POSTGRES_MAX_CONN_LIFETIME", 0)
		maxIdle := resolveDuration(*postgresMaxConnIdle, "CLIPTIDE_POSTGRES_MAX_CONN_IDLE", 0)
		healthInterval := resolveDuration(*postgresHealthInterval, "CLIPTIDE_POSTGRES_HEALTH_INTERVAL", 0)
		if maxLifetime > 0 || maxIdle > 0 || healthInterval > 0 {
			opts = append(opts, storage.WithPostgresPoolDurations(maxLifetime, maxIdle, healthInterval))
		}
		if connectTimeout := resolveDuration(*postgresConnectTimeout, "CLIPTIDE_POSTGRES_CONNECT_TIMEOUT", 0); connectTimeout > 0 {
			opts = append(opts, storage.WithPostgresConnectTimeout(connectTimeout))
		}
		if appName := firstNonEmpty(*postgresAppName, os.Getenv("CLIPTIDE_POSTGRES_APP_NAME")); appName != "" {
			opts = append(opts, storage.WithPostgresApplicationName(appName))
		}
		store, err = storage.NewPostgresRepository(dsn, opts...)
		if err == nil {
			schemaCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			err = storage.EnsureSchema(schemaCtx, store)
			cancel()
		}
	default:
		logger.Error("unsupported storage driver", "driver", driver)
		os.Exit(1)
	}
	if err != nil {
		logger.Error("failed to open datastore", "error", err)
		os.Exit(1)
	}

	seedCtx, cancelSeed := context.WithTimeout(context.Background(), 30*time.Second)
	if err := store.SeedCategories(seedCtx, defaultCategories); err != nil {
		logger.Error("failed to seed categories", "error", err)
		cancelSeed()
		os.Exit(1)
	}
	cancelSeed()

	handler := api.NewHandler(store)
	handler.IdentityWebhookSecret = firstNonEmpty(*identityWebhookSecret, os.Getenv("CLIPTIDE_IDENTITY_WEBHOOK_SECRET"))
	handler.MediaWebhookSecret = firstNonEmpty(*mediaWebhookSecret, os.Getenv("CLIPTIDE_MEDIA_WEBHOOK_SECRET"))
	handler.WorkflowSecret = firstNonEmpty(*workflowCallbackSecret, os.Getenv("CLIPTIDE_WORKFLOW_CALLBACK_SECRET"))

	if baseURL := firstNonEmpty(*mediaBaseURL, os.Getenv("CLIPTIDE_MEDIA_BASE_URL")); baseURL != "" {
		controller, err := media.NewHTTPController(media.Config{
			BaseURL:        baseURL,
			Token:          firstNonEmpty(*mediaToken, os.Getenv("CLIPTIDE_MEDIA_TOKEN")),
			ImageBaseURL:   firstNonEmpty(*mediaImageBaseURL, os.Getenv("CLIPTIDE_MEDIA_IMAGE_BASE_URL")),
			PlaybackPolicy: firstNonEmpty(*mediaPlaybackPolicy, os.Getenv("CLIPTIDE_MEDIA_PLAYBACK_POLICY")),
		})
		if err != nil {
			logger.Error("failed to configure media controller", "error", err)
			os.Exit(1)
		}
		handler.Media = controller
	}

	if baseURL := firstNonEmpty(*workflowBaseURL, os.Getenv("CLIPTIDE_WORKFLOW_BASE_URL")); baseURL != "" {
		trigger, err := workflow.NewHTTPTrigger(workflow.Config{
			BaseURL: baseURL,
			Token:   firstNonEmpty(*workflowToken, os.Getenv("CLIPTIDE_WORKFLOW_TOKEN")),
		})
		if err != nil {
			logger.Error("failed to configure workflow trigger", "error", err)
			os.Exit(1)
		}
		handler.Workflows = trigger
	}

	handler.Thumbnails = objectstore.New(objectstore.Config{
		Endpoint:       firstNonEmpty(*objectEndpoint, os.Getenv("CLIPTIDE_OBJECT_ENDPOINT")),
		PublicEndpoint: firstNonEmpty(*objectPublicEndpoint, os.Getenv("CLIPTIDE_OBJECT_PUBLIC_ENDPOINT")),
		Bucket:         firstNonEmpty(*objectBucket, os.Getenv("CLIPTIDE_OBJECT_BUCKET")),
		Prefix:         firstNonEmpty(*objectPrefix, os.Getenv("CLIPTIDE_OBJECT_PREFIX")),
		Region:         firstNonEmpty(*objectRegion, os.Getenv("CLIPTIDE_OBJECT_REGION")),
		AccessKey:      firstNonEmpty(*objectAccessKey, os.Getenv("CLIPTIDE_OBJECT_ACCESS_KEY")),
		SecretKey:      firstNonEmpty(*objectSecretKey, os.Getenv("CLIPTIDE_OBJECT_SECRET_KEY")),
		UseSSL:         resolveBool(*objectUseSSL, "CLIPTIDE_OBJECT_USE_SSL"),
	})

	listenAddr := firstNonEmpty(*addr, os.Getenv("CLIPTIDE_ADDR"), ":8080")
	srv := server.New(handler, server.Config{
		Addr:   listenAddr,
		Logger: logger,
		RateLimit: server.RateLimitConfig{
			GlobalRPS:      resolveFloat(*globalRPS, "CLIPTIDE_RATE_GLOBAL_RPS"),
			GlobalBurst:    resolveInt(*globalBurst, "CLIPTIDE_RATE_GLOBAL_BURST"),
			MutationLimit:  resolveInt(*mutationLimit, "CLIPTIDE_RATE_MUTATION_LIMIT"),
			MutationWindow: resolveDuration(*mutationWindow, "CLIPTIDE_RATE_MUTATION_WINDOW", time.Minute),
			RedisAddr:      firstNonEmpty(*redisAddr, os.Getenv("CLIPTIDE_RATE_REDIS_ADDR")),
			RedisUsername:  firstNonEmpty(*redisUsername, os.Getenv("CLIPTIDE_RATE_REDIS_USERNAME")),
			RedisPassword:  firstNonEmpty(*redisPassword, os.Getenv("CLIPTIDE_RATE_REDIS_PASSWORD")),
			RedisTimeout:   resolveDuration(*redisTimeout, "CLIPTIDE_RATE_REDIS_TIMEOUT", 2*time.Second),
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tlsCfg := serverutil.TLSConfig{
		CertFile: firstNonEmpty(*tlsCert, os.Getenv("CLIPTIDE_TLS_CERT")),
		KeyFile:  firstNonEmpty(*tlsKey, os.Getenv("CLIPTIDE_TLS_KEY")),
	}

	logger.Info("cliptide API listening", "addr", listenAddr, "driver", driver)
	if tlsCfg.CertFile != "" {
		logger.Info("TLS enabled", "cert_file", tlsCfg.CertFile)
	}
	runErr := serverutil.Run(ctx, serverutil.Config{Server: srv.HTTPServer(), TLS: tlsCfg})
	if runErr != nil {
		logger.Error("server error", "error", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", "error", err)
	}
	if err := store.Close(shutdownCtx); err != nil {
		logger.Warn("failed to close datastore", "error", err)
	}
	logger.Info("server stopped")
	if runErr != nil {
		os.Exit(1)
	}
}

func resolveStorageDriver(flagValue, envValue, dsn string) string {
	if driver := strings.ToLower(strings.TrimSpace(flagValue)); driver != "" {
		return driver
	}
	if driver := strings.ToLower(strings.TrimSpace(envValue)); driver != "" {
		return driver
	}
	if strings.TrimSpace(dsn) != "" {
		return "postgres"
	}
	return "json"
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func resolveFloat(flagValue float64, envKey string) float64 {
	if flagValue > 0 {
		return flagValue
	}
	if env := os.Getenv(envKey); env != "" {
		if value, err := strconv.ParseFloat(strings.TrimSpace(env), 64); err == nil {
			return value
		}
	}
	return 0
}

func resolveInt(flagValue int, envKey string) int {
	if flagValue > 0 {
		return flagValue
	}
	if env := os.Getenv(envKey); env != "" {
		if value, err := strconv.Atoi(strings.TrimSpace(env)); err == nil {
			return value
		}
	}
	return 0
}

func resolveDuration(flagValue time.Duration, envKey string, fallback time.Duration) time.Duration {
	if flagValue > 0 {
		return flagValue
	}
	if env := os.Getenv(envKey); env != "" {
		if value, err := time.ParseDuration(env); err == nil {
			return value
		}
	}
	return fallback
}

func resolveBool(flagValue bool, envKey string) bool {
	if flagValue {
		return true
	}
	if env, ok := os.LookupEnv(envKey); ok {
		if value, err := strconv.ParseBool(strings.TrimSpace(env)); err == nil {
			return value
		}
	}
	return false
}
