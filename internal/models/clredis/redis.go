package clredis

import (
	"context"
	"errors"
	"fmt"
	"littlefolio/internal/models/clconfig"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

const (
	captchaPrefix = "captcha:"
	statsPrefix   = "stats:"
	uniquePrefix  = "visitors:"
	dayLayout     = "2006-01-02"
	dailyTTL      = 48 * time.Hour
)

// Client est nil quand redis n'est pas configuré, toutes les méthodes le tolèrent
type Client struct {
	rdb *redis.Client
}

func New(cfg clconfig.RedisConfig) *Client {
	if cfg.Addr == "" {
		return nil
	}
	return &Client{
		rdb: redis.NewClient(&redis.Options{
			Addr: cfg.Addr,
			DB:   cfg.Db,
		}),
	}
}

func (c *Client) Enabled() bool {
	return c != nil && c.rdb != nil
}

func (c *Client) Ping(ctx context.Context) error {
	if !c.Enabled() {
		return nil
	}
	return c.rdb.Ping(ctx).Err()
}

func (c *Client) Close() error {
	if !c.Enabled() {
		return nil
	}
	return c.rdb.Close()
}

// IncrDaily incrémente le compteur du jour pour kind et note le visiteur
func (c *Client) IncrDaily(ctx context.Context, kind, visitor string, now time.Time) error {
	if !c.Enabled() {
		return nil
	}

	day := now.Format(dayLayout)
	statsKey := statsPrefix + day
	uniqueKey := uniquePrefix + day

	pipe := c.rdb.TxPipeline()
	pipe.HIncrBy(ctx, statsKey, kind, 1)
	pipe.Expire(ctx, statsKey, dailyTTL)
	if visitor != "" {
		pipe.SAdd(ctx, uniqueKey, visitor)
		pipe.Expire(ctx, uniqueKey, dailyTTL)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Daily retourne les compteurs par type et le nombre de visiteurs uniques du jour
func (c *Client) Daily(ctx context.Context, now time.Time) (map[string]int64, int64, error) {
	counters := map[string]int64{}
	if !c.Enabled() {
		return counters, 0, nil
	}

	day := now.Format(dayLayout)
	raw, err := c.rdb.HGetAll(ctx, statsPrefix+day).Result()
	if err != nil {
		return counters, 0, err
	}
	for k, v := range raw {
		var n int64
		if _, err := fmt.Sscan(v, &n); err == nil {
			counters[k] = n
		}
	}

	unique, err := c.rdb.SCard(ctx, uniquePrefix+day).Result()
	if err != nil {
		return counters, 0, err
	}
	return counters, unique, nil
}

// GetJSON retourne false si la clé est absente ou redis désactivé
func (c *Client) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	if !c.Enabled() {
		return false, nil
	}
	data, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, err
	}
	return true, nil
}

func (c *Client) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	if !c.Enabled() {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key, data, ttl).Err()
}

// CaptchaStore implémente base64Captcha.Store
type CaptchaStore struct {
	client     *Client
	expiration time.Duration
}

func (c *Client) CaptchaStore(expiration time.Duration) *CaptchaStore {
	if expiration <= 0 {
		expiration = 5 * time.Minute
	}
	return &CaptchaStore{client: c, expiration: expiration}
}

func (s *CaptchaStore) Set(id string, value string) error {
	if !s.client.Enabled() {
		return errors.New("redis non configuré")
	}
	return s.client.rdb.Set(context.Background(), captchaPrefix+id, value, s.expiration).Err()
}

func (s *CaptchaStore) Get(id string, clear bool) string {
	if !s.client.Enabled() {
		return ""
	}
	ctx := context.Background()
	key := captchaPrefix + id
	val, _ := s.client.rdb.Get(ctx, key).Result()
	if clear {
		s.client.rdb.Del(ctx, key)
	}
	return val
}

func (s *CaptchaStore) Verify(id, answer string, clear bool) bool {
	v := s.Get(id, clear)
	return v != "" && v == answer
}
