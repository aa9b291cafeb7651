// Command server starts the StreamNest API HTTP service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"streamnest/internal/api"
	"streamnest/internal/auth"
	"streamnest/internal/observability/logging"
	"streamnest/internal/server"
	"streamnest/internal/storage"
)

func main() {
	addr := flag.String("addr", "", "HTTP listen address")
	mode := flag.String("mode", "", "server runtime mode (development or production)")
	dataPath := flag.String("data", "", "path to JSON datastore")
	credentialStore := flag.String("credential-store", "", "credential store driver (json or postgres)")
	postgresDSN := flag.String("postgres-dsn", "", "Postgres connection string for the credential store")
	accessSecret := flag.String("access-secret", "", "HMAC secret for access tokens")
	refreshSecret := flag.String("refresh-secret", "", "HMAC secret for refresh tokens")
	accessTTL := flag.Duration("access-ttl", 0, "access token lifetime")
	refreshTTL := flag.Duration("refresh-ttl", 0, "refresh token lifetime")
	bcryptCost := flag.Int("bcrypt-cost", 0, "bcrypt cost for password hashing")
	redisAddr := flag.String("redis-addr", "", "Redis address for login throttling")
	redisUsername := flag.String("redis-username", "", "Redis username for login throttling")
	redisPassword := flag.String("redis-password", "", "Redis password for login throttling")
	corsOrigins := flag.String("cors-origins", "", "comma separated origins allowed to call the API")
	tlsCert := flag.String("tls-cert", "", "path to TLS certificate file")
	tlsKey := flag.String("tls-key", "", "path to TLS private key file")
	logLevel := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", "", "log format (json or text)")
	secureCookies := flag.Bool("secure-cookies", false, "always mark session cookies Secure")
	objectEndpoint := flag.String("object-endpoint", "", "object storage endpoint (e.g. http://127.0.0.1:9000)")
	objectRegion := flag.String("object-region", "", "object storage region")
	objectAccessKey := flag.String("object-access-key", "", "object storage access key")
	objectSecretKey := flag.String("object-secret-key", "", "object storage secret key")
	objectBucket := flag.String("object-bucket", "", "object storage bucket name")
	objectUseSSL := flag.Bool("object-use-ssl", false, "enable TLS for object storage requests")
	objectPrefix := flag.String("object-prefix", "", "object storage key prefix for uploaded media")
	objectPublicEndpoint := flag.String("object-public-endpoint", "", "public endpoint used for media URLs")
	flag.Parse()

	logger := logging.Init(logging.Config{
		Level:  firstNonEmpty(*logLevel, os.Getenv("STREAMNEST_LOG_LEVEL")),
		Format: firstNonEmpty(*logFormat, os.Getenv("STREAMNEST_LOG_FORMAT")),
	})
	auditLogger := logging.WithComponent(logger, "audit")

	serverMode := modeValue(*mode, os.Getenv("STREAMNEST_MODE"))
	listenAddr := resolveListenAddr(*addr, serverMode, os.Getenv("STREAMNEST_ADDR"))

	var options []storage.Option
	objectCfg := storage.ObjectStorageConfig{
		Endpoint:       firstNonEmpty(*objectEndpoint, os.Getenv("STREAMNEST_OBJECT_ENDPOINT")),
		Region:         firstNonEmpty(*objectRegion, os.Getenv("STREAMNEST_OBJECT_REGION")),
		AccessKey:      firstNonEmpty(*objectAccessKey, os.Getenv("STREAMNEST_OBJECT_ACCESS_KEY")),
		SecretKey:      firstNonEmpty(*objectSecretKey, os.Getenv("STREAMNEST_OBJECT_SECRET_KEY")),
		Bucket:         firstNonEmpty(*objectBucket, os.Getenv("STREAMNEST_OBJECT_BUCKET")),
		UseSSL:         resolveBool(*objectUseSSL, "STREAMNEST_OBJECT_USE_SSL"),
		Prefix:         firstNonEmpty(*objectPrefix, os.Getenv("STREAMNEST_OBJECT_PREFIX")),
		PublicEndpoint: firstNonEmpty(*objectPublicEndpoint, os.Getenv("STREAMNEST_OBJECT_PUBLIC_ENDPOINT")),
	}
	if objectCfg.Endpoint != "" || objectCfg.Bucket != "" {
		options = append(options, storage.WithObjectStorage(objectCfg))
	}

	dataFile := resolveDataPath(*dataPath, os.Getenv("STREAMNEST_DATA"))
	store, err := storage.NewStorage(dataFile, options...)
	if err != nil {
		logger.Error("failed to open datastore", "error", err)
		os.Exit(1)
	}

	tokenCfg := auth.TokenConfig{
		AccessSecret:  []byte(firstNonEmpty(*accessSecret, os.Getenv("STREAMNEST_ACCESS_TOKEN_SECRET"))),
		RefreshSecret: []byte(firstNonEmpty(*refreshSecret, os.Getenv("STREAMNEST_REFRESH_TOKEN_SECRET"))),
		AccessTTL:     resolveDuration(*accessTTL, "STREAMNEST_ACCESS_TOKEN_TTL"),
		RefreshTTL:    resolveDuration(*refreshTTL, "STREAMNEST_REFRESH_TOKEN_TTL"),
	}
	tokens, err := auth.NewTokenManager(tokenCfg)
	if err != nil {
		logger.Error("failed to configure token manager", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	credentials, credentialCloser, err := resolveCredentialStore(ctx, *credentialStore, *postgresDSN, store)
	if err != nil {
		logger.Error("failed to open credential store", "error", err)
		os.Exit(1)
	}

	var sessionOpts []auth.SessionOption
	cost := resolveInt(*bcryptCost, "STREAMNEST_BCRYPT_COST")
	if cost > 0 {
		sessionOpts = append(sessionOpts, auth.WithPasswordHasher(auth.NewPasswordHasher(cost)))
	}
	sessions, err := auth.NewSessionManager(credentials, tokens, sessionOpts...)
	if err != nil {
		logger.Error("failed to configure session manager", "error", err)
		os.Exit(1)
	}

	var limiter *auth.LoginLimiter
	if redisEndpoint := firstNonEmpty(*redisAddr, os.Getenv("STREAMNEST_REDIS_ADDR")); redisEndpoint != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     redisEndpoint,
			Username: firstNonEmpty(*redisUsername, os.Getenv("STREAMNEST_REDIS_USERNAME")),
			Password: firstNonEmpty(*redisPassword, os.Getenv("STREAMNEST_REDIS_PASSWORD")),
		})
		limiter = auth.NewLoginLimiter(client)
		defer client.Close()
	}

	handler := api.NewHandler(store, sessions)
	handler.LoginLimiter = limiter
	handler.Logger = logging.WithComponent(logger, "api")
	handler.SessionCookiePolicy = api.DefaultSessionCookiePolicy()
	if resolveBool(*secureCookies, "STREAMNEST_SECURE_COOKIES") || serverMode == "production" {
		handler.SessionCookiePolicy.SecureMode = api.SessionCookieSecureAlways
	}

	srv, err := server.New(handler, server.Config{
		Addr: listenAddr,
		TLS: server.TLSConfig{
			CertFile: firstNonEmpty(*tlsCert, os.Getenv("STREAMNEST_TLS_CERT")),
			KeyFile:  firstNonEmpty(*tlsKey, os.Getenv("STREAMNEST_TLS_KEY")),
		},
		CORS: server.CORSConfig{
			AllowedOrigins: splitAndTrim(firstNonEmpty(*corsOrigins, os.Getenv("STREAMNEST_CORS_ORIGINS"))),
		},
		Logger:      logger,
		AuditLogger: auditLogger,
	})
	if err != nil {
		logger.Error("failed to initialise server", "error", err)
		os.Exit(1)
	}

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(runCtx)
	group.Go(func() error {
		logger.Info("StreamNest API listening", "addr", listenAddr, "mode", serverMode)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		logger.Error("server error", "error", err)
	}

	if credentialCloser != nil {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := credentialCloser(closeCtx); err != nil {
			logger.Warn("failed to close credential store", "error", err)
		}
	}

	logger.Info("server stopped")
}

// resolveCredentialStore picks the backend the session manager reads accounts
// from. The JSON datastore doubles as a credential store by default; a
// Postgres DSN switches credentials to a dedicated pool so accounts survive
// outside the content dataset.
func resolveCredentialStore(ctx context.Context, flagDriver, flagDSN string, store *storage.Storage) (auth.CredentialStore, func(context.Context) error, error) {
	driver := strings.ToLower(strings.TrimSpace(firstNonEmpty(flagDriver, os.Getenv("STREAMNEST_CREDENTIAL_STORE"))))
	dsn := firstNonEmpty(flagDSN, os.Getenv("STREAMNEST_POSTGRES_DSN"), os.Getenv("DATABASE_URL"))

	if driver == "" {
		if dsn != "" {
			driver = "postgres"
		} else {
			driver = "json"
		}
	}

	switch driver {
	case "json":
		return store, nil, nil
	case "postgres":
		if dsn == "" {
			return nil, nil, fmt.Errorf("postgres credential store selected without DSN")
		}
		pgStore, err := auth.NewPostgresCredentialStore(ctx, dsn)
		if err != nil {
			return nil, nil, err
		}
		return pgStore, pgStore.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported credential store driver %q", driver)
	}
}

func resolveListenAddr(flagValue, mode, envAddr string) string {
	listenAddr := strings.TrimSpace(flagValue)
	if listenAddr == "" {
		listenAddr = strings.TrimSpace(envAddr)
	}
	if listenAddr == "" {
		listenAddr = defaultListenForMode(mode)
	}
	return listenAddr
}

func modeValue(flagMode, envMode string) string {
	mode := strings.ToLower(strings.TrimSpace(flagMode))
	if mode == "" {
		mode = strings.ToLower(strings.TrimSpace(envMode))
	}
	if mode == "" {
		mode = "development"
	}
	return mode
}

func defaultListenForMode(mode string) string {
	if mode == "production" {
		return ":80"
	}
	return ":8080"
}

func resolveDataPath(flagValue, envValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := strings.TrimSpace(envValue); env != "" {
		return env
	}
	return "data/store.json"
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func splitAndTrim(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
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

func resolveDuration(flagValue time.Duration, envKey string) time.Duration {
	if flagValue > 0 {
		return flagValue
	}
	if env := os.Getenv(envKey); env != "" {
		if value, err := time.ParseDuration(env); err == nil {
			return value
		}
	}
	return 0
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
