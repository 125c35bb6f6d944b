package main

import (
	"context"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"go.uber.org/zap"

	"societyadmin"
	"societyadmin/societyapi"
)

const loginWindow = time.Minute

type Server struct {
	config    societyadmin.Config
	client    societyapi.Client
	dashboard *societyadmin.Dashboard
	sessions  *societyadmin.SessionStore
	snapshots societyadmin.SnapshotRepository
	audit     societyadmin.AuditRepository
	pages     map[string]*template.Template
	limiter   *RateLimiter
	clientIPs ClientIPs
	logger    *zap.Logger
	closers   []func()
}

// NewServer connects the backing services named in config. Redis and Postgres are
// optional: without Redis sessions and cached responses live in memory, without Postgres
// revenue history and auditing are disabled.
func NewServer(ctx context.Context, config societyadmin.Config, logger *zap.Logger) (*Server, error) {
	client, err := societyapi.NewClient(config.APIBaseURL)
	if err != nil {
		return nil, fmt.Errorf("unable to create backend client: %w", err)
	}
	client.SetLogger(logger.Named("societyapi"))

	var (
		cache   societyadmin.CacheRepository = societyadmin.NewMemoryCache()
		closers []func()
	)
	if config.RedisAddr != "" {
		redisCache := societyadmin.NewRedisCache(config.RedisAddr, config.RedisPassword, config.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			return nil, fmt.Errorf("unable to reach redis at \"%s\": %w", config.RedisAddr, err)
		}
		cache = redisCache
		closers = append(closers, func() { _ = redisCache.Close() })
	}

	var (
		snapshots societyadmin.SnapshotRepository
		audit     societyadmin.AuditRepository
		pool      *pgxpool.Pool
	)
	if config.PostgresUrl != "" {
		pool, err = societyadmin.Connect(ctx, config.PostgresUrl)
		if err != nil {
			return nil, err
		}
		closers = append(closers, pool.Close)
		snapshots = societyadmin.PostgresSnapshotRepository{Conn: pool}
		audit = societyadmin.PostgresAuditRepository{Conn: pool}
	} else {
		logger.Warn("POSTGRES_URL is not set, revenue history and auditing are disabled")
	}

	s, err := newServer(config, client, cache, snapshots, audit, logger)
	if err != nil {
		for _, c := range closers {
			c()
		}
		return nil, err
	}
	s.closers = append(s.closers, closers...)

	return s, nil
}

func newServer(
	config societyadmin.Config,
	client societyapi.Client,
	cache societyadmin.CacheRepository,
	snapshots societyadmin.SnapshotRepository,
	audit societyadmin.AuditRepository,
	logger *zap.Logger,
) (*Server, error) {
	pages, err := parsePages()
	if err != nil {
		return nil, err
	}

	dashboard := societyadmin.NewDashboard(client, cache, config, logger.Named("dashboard"))
	if audit != nil {
		dashboard.SetAuditRepository(audit)
	}

	clientIPs, err := NewClientIPs(config.TrustedProxies)
	if err != nil {
		return nil, err
	}

	limiter := NewRateLimiter(config.LoginRateLimit, loginWindow)

	return &Server{
		config:    config,
		client:    client,
		dashboard: dashboard,
		sessions:  societyadmin.NewSessionStore(cache, config.SessionTTL),
		snapshots: snapshots,
		audit:     audit,
		pages:     pages,
		limiter:   limiter,
		clientIPs: clientIPs,
		logger:    logger,
		closers:   []func(){limiter.Stop},
	}, nil
}

func (s *Server) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func (s *Server) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
