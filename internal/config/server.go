package config

import (
	"context"
	"fmt"
	"net"

	"FaceGrouping/database"
	groupingHandler "FaceGrouping/internal/api/grouping/handler"
	groupingRepository "FaceGrouping/internal/api/grouping/repository"
	groupingService "FaceGrouping/internal/api/grouping/service"
	runtimeHandler "FaceGrouping/internal/api/runtime/handler"
	runtimeService "FaceGrouping/internal/api/runtime/service"
	"FaceGrouping/internal/launcher"
	"FaceGrouping/internal/middleware"
	"FaceGrouping/pkg/deepface"
	"FaceGrouping/pkg/redis"
	"FaceGrouping/pkg/s3"
	"FaceGrouping/pkg/utils"
	websocketPkg "FaceGrouping/pkg/websocket"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/netutil"
)

type ServerOption func(*Server) error

type Server struct {
	engine         *fiber.App
	env            *Env
	db             *sqlx.DB
	log            *logrus.Logger
	middleware     middleware.Middleware
	validator      *validator.Validate
	utils          utils.IUtils
	handlers       []handler
	redisServer    redis.IRedis
	s3Client       s3.ItfS3
	deepfaceClient deepface.IDeepFace
	launcher       *launcher.Launcher
	logHub         websocketPkg.IHub
	registry       *prometheus.Registry
}

type handler interface {
	Start(srv fiber.Router)
}

func NewServer(options ...ServerOption) (*Server, error) {
	server := &Server{}

	for _, option := range options {
		if err := option(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if server.engine == nil {
		return nil, fmt.Errorf("fiber app is required")
	}
	if server.log == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if server.env == nil {
		return nil, fmt.Errorf("environment is required")
	}
	if server.launcher == nil {
		return nil, fmt.Errorf("launcher is required")
	}
	if server.middleware == nil {
		return nil, fmt.Errorf("middleware is required")
	}
	if server.validator == nil {
		server.validator = NewValidator()
	}
	if server.utils == nil {
		server.utils = utils.New()
	}
	if server.redisServer == nil {
		server.redisServer = redis.NewMemory()
	}
	if server.deepfaceClient == nil {
		server.deepfaceClient = deepface.New()
	}
	if server.logHub == nil {
		server.logHub = websocketPkg.NewHub(0)
	}

	return server, nil
}

func WithFiber(fiberApp *fiber.App) ServerOption {
	return func(s *Server) error {
		s.engine = fiberApp
		return nil
	}
}

func WithLogger(logger *logrus.Logger) ServerOption {
	return func(s *Server) error {
		s.log = logger
		return nil
	}
}

func WithValidator(validator *validator.Validate) ServerOption {
	return func(s *Server) error {
		s.validator = validator
		return nil
	}
}

func WithEnv(env *Env) ServerOption {
	return func(s *Server) error {
		s.env = env
		return nil
	}
}

func WithDatabase() ServerOption {
	return func(s *Server) error {
		if s.env == nil {
			return fmt.Errorf("environment must be loaded before database")
		}
		db, err := database.New(s.env.DBDriver, s.env.DBDSN, s.log)
		if err != nil {
			if s.log != nil {
				s.log.Errorf("Failed to connect to database: %v", err)
			}
			return fmt.Errorf("failed to create database connection: %w", err)
		}
		s.db = db
		return nil
	}
}

func WithRedisServer(redisServer redis.IRedis) ServerOption {
	return func(s *Server) error {
		s.redisServer = redisServer
		return nil
	}
}

// WithS3Client enables s3:// photo references. It is a no-op unless a region
// or endpoint is configured.
func WithS3Client() ServerOption {
	return func(s *Server) error {
		if s.env == nil {
			return fmt.Errorf("environment must be loaded before S3 client")
		}
		if s.env.AWSRegion == "" && s.env.AWSEndpoint == "" {
			return nil
		}

		client, err := s3.New(s3.Options{
			Region:     s.env.AWSRegion,
			Endpoint:   s.env.AWSEndpoint,
			AccessKey:  s.env.AWSAccessKey,
			SecretKey:  s.env.AWSSecretKey,
			StagingDir: s.env.StagingDir,
		}, s.log)
		if err != nil {
			if s.log != nil {
				s.log.Errorf("Failed to initialize S3 client: %v", err)
			}
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		s.s3Client = client
		return nil
	}
}

func WithDeepfaceClient(client deepface.IDeepFace) ServerOption {
	return func(s *Server) error {
		s.deepfaceClient = client
		return nil
	}
}

func WithLauncher(l *launcher.Launcher) ServerOption {
	return func(s *Server) error {
		s.launcher = l
		return nil
	}
}

func WithLogHub(hub websocketPkg.IHub) ServerOption {
	return func(s *Server) error {
		s.logHub = hub
		return nil
	}
}

func WithMetricsRegistry(registry *prometheus.Registry) ServerOption {
	return func(s *Server) error {
		s.registry = registry
		return nil
	}
}

func WithMiddleware() ServerOption {
	return func(s *Server) error {
		if s.log == nil {
			return fmt.Errorf("logger must be initialized before middleware")
		}
		if s.env == nil {
			return fmt.Errorf("environment must be loaded before middleware")
		}
		s.middleware = middleware.New(s.log, middleware.Options{
			RateLimitRPS:   s.env.RateLimitRPS,
			RateLimitBurst: s.env.RateLimitBurst,
			JWTSecret:      s.env.JWTSecret,
		})
		return nil
	}
}

func WithUtils() ServerOption {
	return func(s *Server) error {
		s.utils = utils.New()
		return nil
	}
}

func (s *Server) RegisterHandler() {
	s.engine.Use(s.middleware.NewRequestIDMiddleware())
	s.engine.Use(s.middleware.NewLoggingMiddleware())

	s.setupMetrics()

	// Runtime
	runtimeServices := runtimeService.NewRuntimeService(s.log, s.launcher, s.logHub)
	runtimeHandlers := runtimeHandler.New(s.log, s.validator, s.middleware, runtimeServices)

	// Grouping
	var groupingRepo groupingRepository.Repository
	if s.db != nil {
		groupingRepo = groupingRepository.New(s.db, s.log)
	}
	groupingServices := groupingService.NewGroupingService(
		s.log,
		groupingRepo,
		s.launcher,
		s.deepfaceClient,
		s.redisServer,
		s.s3Client,
		s.utils,
		groupingService.Options{
			Model:          s.env.FaceModel,
			DistanceMetric: s.env.FaceDistanceMetric,
			Threshold:      s.env.FaceThreshold,
			CacheTTL:       s.env.FaceCacheTTL,
		},
	)
	groupingHandlers := groupingHandler.New(s.log, s.validator, s.middleware, groupingServices)

	s.handlers = append(s.handlers, runtimeHandlers, groupingHandlers)

	s.engine.Use(s.middleware.NewRateLimiter)
	for _, h := range s.handlers {
		h.Start(s.engine)
	}
}

// setupMetrics is registered ahead of the rate limiter so scrapes are never
// throttled.
func (s *Server) setupMetrics() {
	if s.registry == nil {
		return
	}
	s.engine.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))
}

// Run serves until Shutdown. MAX_CONNECTIONS caps concurrent TCP connections.
func (s *Server) Run() error {
	ln, err := net.Listen("tcp", s.env.Address())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.env.Address(), err)
	}

	if s.env.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, s.env.MaxConnections)
	}

	s.log.WithFields(logrus.Fields{
		"address":         s.env.Address(),
		"max_connections": s.env.MaxConnections,
	}).Info("HTTP server listening")

	return s.engine.Listener(ln)
}

// Shutdown stops accepting requests, waits for in-flight ones and closes
// the database.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.engine.ShutdownWithContext(ctx)

	if s.db != nil {
		if closeErr := s.db.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}

	return err
}
