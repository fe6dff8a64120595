package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"FaceGrouping/internal/launcher"

	"github.com/mattn/go-shellwords"
)

const defaultWorkerCommand = "gunicorn --workers 1 --timeout 0 --bind 127.0.0.1:{port} {app}"

// Env is the typed process environment.
type Env struct {
	AppHost string `validate:"required"`
	AppPort int    `validate:"min=1,max=65535"`

	AppModule     string        `validate:"required"`
	Unbuffered    bool
	WorkerCount   int           `validate:"min=1,max=64"`
	WorkerTimeout time.Duration `validate:"min=0"`
	WorkerCommand []string      `validate:"min=1"`
	WorkerBase    int           `validate:"min=1,max=65535"`
	WorkerReady   time.Duration `validate:"gt=0"`
	WorkerGrace   time.Duration `validate:"gt=0"`
	WorkerQueue   int           `validate:"min=0"`
	WorkerWorkDir string

	MaxConnections int `validate:"min=0"`

	FaceModel          string  `validate:"required"`
	FaceDistanceMetric string  `validate:"oneof=cosine euclidean euclidean_l2"`
	FaceThreshold      float64 `validate:"gt=0"`
	FaceCacheTTL       time.Duration

	StagingDir string `validate:"required"`

	RateLimitRPS   float64 `validate:"gt=0"`
	RateLimitBurst int     `validate:"min=1"`

	DBDriver string `validate:"oneof=sqlite postgres"`
	DBDSN    string `validate:"required"`

	RedisAddress  string
	RedisPassword string
	RedisDB       int

	AWSRegion    string
	AWSEndpoint  string
	AWSAccessKey string
	AWSSecretKey string

	JWTSecret string
}

// LoadEnv reads the environment, applying defaults for unset variables.
func LoadEnv() (*Env, error) {
	p := &envParser{}

	env := &Env{
		AppHost:            p.str("APP_HOST", "0.0.0.0"),
		AppPort:            p.integer("APP_PORT", 5000),
		AppModule:          p.str("APP_MODULE", "deepface_worker:app"),
		Unbuffered:         p.flag("PYTHONUNBUFFERED", true),
		WorkerCount:        p.integer("WORKER_COUNT", 1),
		WorkerTimeout:      p.duration("WORKER_TIMEOUT", 24*time.Hour),
		WorkerCommand:      p.command("WORKER_COMMAND", defaultWorkerCommand),
		WorkerBase:         p.integer("WORKER_BASE_PORT", 5001),
		WorkerReady:        p.duration("WORKER_READY_TIMEOUT", 5*time.Minute),
		WorkerGrace:        p.duration("WORKER_GRACE_PERIOD", 10*time.Second),
		WorkerQueue:        p.integer("WORKER_QUEUE_SIZE", 64),
		WorkerWorkDir:      p.str("WORKER_WORKDIR", ""),
		MaxConnections:     p.integer("MAX_CONNECTIONS", 0),
		FaceModel:          p.str("FACE_MODEL", "VGG-Face"),
		FaceDistanceMetric: p.str("FACE_DISTANCE_METRIC", "cosine"),
		FaceThreshold:      p.number("FACE_THRESHOLD", 0.6),
		FaceCacheTTL:       p.duration("FACE_CACHE_TTL", 24*time.Hour),
		StagingDir:         p.str("STAGING_DIR", "./storage/photos"),
		RateLimitRPS:       p.number("RATE_LIMIT_RPS", 50),
		RateLimitBurst:     p.integer("RATE_LIMIT_BURST", 100),
		DBDriver:           p.str("DB_DRIVER", "sqlite"),
		DBDSN:              p.str("DB_DSN", "file:./storage/facegroupd.db"),
		RedisAddress:       p.str("REDIS_ADDRESS", ""),
		RedisPassword:      p.str("REDIS_PASSWORD", ""),
		RedisDB:            p.integer("REDIS_DB", 0),
		AWSRegion:          p.str("AWS_REGION", ""),
		AWSEndpoint:        p.str("AWS_S3_ENDPOINT", ""),
		AWSAccessKey:       p.str("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:       p.str("AWS_SECRET_ACCESS_KEY", ""),
		JWTSecret:          p.str("JWT_ACCESS_TOKEN_SECRET", ""),
	}

	if p.err != nil {
		return nil, p.err
	}

	if err := NewValidator().Struct(env); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}

	return env, nil
}

// Address is the host:port the HTTP server binds.
func (e *Env) Address() string {
	return fmt.Sprintf("%s:%d", e.AppHost, e.AppPort)
}

// LauncherConfig maps the environment onto the worker supervisor settings.
func (e *Env) LauncherConfig() launcher.Config {
	return launcher.Config{
		Command:      e.WorkerCommand,
		AppModule:    e.AppModule,
		WorkDir:      e.WorkerWorkDir,
		BasePort:     e.WorkerBase,
		Workers:      e.WorkerCount,
		QueueSize:    e.WorkerQueue,
		Timeout:      e.WorkerTimeout,
		ReadyTimeout: e.WorkerReady,
		GracePeriod:  e.WorkerGrace,
		Unbuffered:   e.Unbuffered,
	}
}

// envParser keeps the first parse error so LoadEnv reads as a flat list.
type envParser struct {
	err error
}

func (p *envParser) lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (p *envParser) fail(key, raw string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("%s=%q: %w", key, raw, err)
	}
}

func (p *envParser) str(key, def string) string {
	if v, ok := p.lookup(key); ok {
		return v
	}
	return def
}

func (p *envParser) integer(key string, def int) int {
	raw, ok := p.lookup(key)
	if !ok {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.fail(key, raw, err)
		return def
	}
	return v
}

func (p *envParser) number(key string, def float64) float64 {
	raw, ok := p.lookup(key)
	if !ok {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		p.fail(key, raw, err)
		return def
	}
	return v
}

// flag treats any value other than 0 or false as set.
func (p *envParser) flag(key string, def bool) bool {
	raw, ok := p.lookup(key)
	if !ok {
		return def
	}
	switch strings.ToLower(raw) {
	case "0", "false", "no", "off":
		return false
	}
	return true
}

// duration accepts Go durations ("90s") and bare seconds ("86400").
func (p *envParser) duration(key string, def time.Duration) time.Duration {
	raw, ok := p.lookup(key)
	if !ok {
		return def
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		p.fail(key, raw, err)
		return def
	}
	return v
}

func (p *envParser) command(key, def string) []string {
	raw, ok := p.lookup(key)
	if !ok {
		raw = def
	}
	argv, err := shellwords.Parse(raw)
	if err != nil {
		p.fail(key, raw, err)
		return nil
	}
	return argv
}
