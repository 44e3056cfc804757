package counter

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/pincer/internal/config"
)

const (
	votesKey = "pincer:counter:votes"
	viewsKey = "pincer:counter:views"
)

var voteScript = goredis.NewScript(`
if redis.call('HEXISTS', KEYS[1], ARGV[1]) == 0 or ARGV[2] == '1' or ARGV[2] == '2' then
	redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
end
return 1
`)

var viewScript = goredis.NewScript(`
local current = redis.call('HGET', KEYS[1], ARGV[1])
if current then
	redis.call('HSET', KEYS[1], ARGV[1], current .. '+1')
else
	redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
end
return 1
`)

type redisStore struct {
	client *goredis.Client
}

func newRedisStore(lc fx.Lifecycle, cfg config.Redis, logger *zap.Logger) Store {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("ping redis counters: %w", err)
			}
			logger.Info("redis counters connected", zap.String("addr", cfg.Addr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})

	return &redisStore{client: client}
}

func (s *redisStore) Vote(ctx context.Context, key string, code int) error {
	return voteScript.Run(ctx, s.client, []string{votesKey}, key, strconv.Itoa(code)).Err()
}

func (s *redisStore) Votes(ctx context.Context) (map[string]int, error) {
	raw, err := s.client.HGetAll(ctx, votesKey).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(raw))
	for k, v := range raw {
		code, err := strconv.Atoi(v)
		if err != nil {
			code = -1
		}
		out[k] = code
	}
	return out, nil
}

func (s *redisStore) View(ctx context.Context, uid, name string, at time.Time) error {
	return viewScript.Run(ctx, s.client, []string{viewsKey}, uid, firstView(name, at)).Err()
}

func (s *redisStore) Views(ctx context.Context) (map[string]string, error) {
	return s.client.HGetAll(ctx, viewsKey).Result()
}
