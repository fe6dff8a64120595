package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const faceCountPrefix = "facegroupd:faces:"

// IRedis caches per-photo face counts.
type IRedis interface {
	GetFaceCount(ctx context.Context, photo string) (int, bool, error)
	SetFaceCount(ctx context.Context, photo string, count int, expiration time.Duration) error
}

type redisClient struct {
	client *redis.Client
	log    *logrus.Logger
}

type Options struct {
	Address  string
	Password string
	DB       int
}

// New connects to Redis. With no address the cache lives in process.
func New(opts Options, logger *logrus.Logger) IRedis {
	if opts.Address == "" {
		logger.Info("Redis address not set, using in-process face cache")
		return NewMemory()
	}

	logger.Info(fmt.Sprintf("Connecting to Redis at %s...", opts.Address))

	client := redis.NewClient(&redis.Options{
		Addr:     opts.Address,
		Password: opts.Password,
		DB:       opts.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		logger.Error(fmt.Sprintf("Failed to connect to Redis: %v", err))
	} else {
		logger.Info("Successfully connected to Redis")
	}

	return &redisClient{client: client, log: logger}
}

func (r *redisClient) GetFaceCount(ctx context.Context, photo string) (int, bool, error) {
	val, err := r.client.Get(ctx, faceCountPrefix+photo).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	} else if err != nil {
		r.log.Error(fmt.Sprintf("Error getting face count for %s: %v", photo, err))
		return 0, false, err
	}

	count, err := strconv.Atoi(val)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt face count for %s: %w", photo, err)
	}
	return count, true, nil
}

func (r *redisClient) SetFaceCount(ctx context.Context, photo string, count int, expiration time.Duration) error {
	r.log.Debug(fmt.Sprintf("Caching face count %d for %s with expiration %v", count, photo, expiration))
	if err := r.client.Set(ctx, faceCountPrefix+photo, count, expiration).Err(); err != nil {
		r.log.Error(fmt.Sprintf("Error caching face count for %s: %v", photo, err))
		return err
	}
	return nil
}

type memoryEntry struct {
	count     int
	expiresAt time.Time
}

type memoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

func NewMemory() IRedis {
	return &memoryCache{entries: make(map[string]memoryEntry)}
}

func (m *memoryCache) GetFaceCount(_ context.Context, photo string) (int, bool, error) {
	m.mu.RLock()
	entry, ok := m.entries[photo]
	m.mu.RUnlock()

	if !ok {
		return 0, false, nil
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		m.mu.Lock()
		delete(m.entries, photo)
		m.mu.Unlock()
		return 0, false, nil
	}
	return entry.count, true, nil
}

func (m *memoryCache) SetFaceCount(_ context.Context, photo string, count int, expiration time.Duration) error {
	entry := memoryEntry{count: count}
	if expiration > 0 {
		entry.expiresAt = time.Now().Add(expiration)
	}

	m.mu.Lock()
	m.entries[photo] = entry
	m.mu.Unlock()
	return nil
}
