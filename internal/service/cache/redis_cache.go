package cache

import (
	"context"
	"errors"
	"net"
	"strconv"
	"time"

	pcache "LevelCast/pkg/cache"
)

// RedisCache adapts the layered cache (memory L1, Redis L2) to BytesCache.
type RedisCache struct {
	svc pcache.Service
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func NewRedisCache(cfg RedisConfig) (*RedisCache, error) {
	host, portStr, err := net.SplitHostPort(cfg.Addr)
	if err != nil {
		host = cfg.Addr
		portStr = "6379"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		port = 6379
	}

	redisCache, err := pcache.NewRedisCache(
		pcache.WithRedisHost(host),
		pcache.WithRedisPort(port),
		pcache.WithRedisPassword(cfg.Password),
		pcache.WithRedisDB(cfg.DB),
	)
	if err != nil {
		return nil, err
	}
	return &RedisCache{svc: pcache.NewLayeredCache(redisCache)}, nil
}

func (r *RedisCache) GetBytes(key string) ([]byte, bool, error) {
	var s string
	err := r.svc.Get(context.Background(), key, &s)
	if err != nil {
		if errors.Is(err, pcache.ErrCacheMiss) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return []byte(s), true, nil
}

func (r *RedisCache) SetBytes(key string, value []byte, ttl time.Duration) error {
	return r.svc.Set(context.Background(), key, string(value), ttl)
}
