package provider

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/nightwatch/nightwatch/pkg/log"
)

const defaultRedisTimeout = 5 * time.Second

// redisProvider observes a Redis instance: the size of the keyspace, the
// length of a list, or the value of a key.
type redisProvider struct {
	command string
	key     string
	client  *redis.Client
	logger  zerolog.Logger
}

func redisSpec() Spec {
	return Spec{
		New: newRedisProvider,
		Mandatory: []string{
			"addr",    // host:port of the Redis server
			"command", // "dbsize", "llen" or "get"
		},
		Optional: []string{
			"key",      // key operated on, mandatory for llen and get
			"db",       // database number, default 0
			"password", // server password
			"timeout",  // dial/read/write timeout in seconds, default 5
		},
	}
}

func newRedisProvider(cfg map[string]any) (Provider, error) {
	command := stringOption(cfg, "command", "")
	key := stringOption(cfg, "key", "")

	switch command {
	case "dbsize":
	case "llen", "get":
		if key == "" {
			return nil, configErrorf("redis", "parameter %q is mandatory for command %q", "key", command)
		}
	default:
		return nil, configErrorf("redis", "command %q is not allowed, expected dbsize, llen or get", command)
	}

	timeout := time.Duration(intOption(cfg, "timeout", int(defaultRedisTimeout/time.Second))) * time.Second
	client := redis.NewClient(&redis.Options{
		Addr:         stringOption(cfg, "addr", ""),
		Password:     stringOption(cfg, "password", ""),
		DB:           intOption(cfg, "db", 0),
		DialTimeout:  timeout,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	})

	return &redisProvider{
		command: command,
		key:     key,
		client:  client,
		logger:  log.WithProvider("redis"),
	}, nil
}

func (p *redisProvider) Process(ctx context.Context) (any, error) {
	var (
		value any
		err   error
	)
	switch p.command {
	case "dbsize":
		var n int64
		n, err = p.client.DBSize(ctx).Result()
		value = int(n)
	case "llen":
		var n int64
		n, err = p.client.LLen(ctx, p.key).Result()
		value = int(n)
	case "get":
		value, err = p.client.Get(ctx, p.key).Result()
	}
	if err != nil {
		return nil, err
	}

	p.logger.Debug().Str("command", p.command).Interface("value", value).Msg("command executed")
	return value, nil
}
