package query

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/sanketb-14/Streamline-sub000/internal/config"
	"github.com/sanketb-14/Streamline-sub000/internal/models"
	"github.com/sanketb-14/Streamline-sub000/internal/repository"
)

// PageCache stores pages by Spec. Implementations swallow their own errors.
type PageCache interface {
	Load(ctx context.Context, spec *Spec) (*Page, bool)
	Store(ctx context.Context, spec *Spec, page *Page)
	// Invalidate makes every stored page unreachable.
	Invalidate(ctx context.Context)
}

const defaultCachePrefix = "streamline:query"

// RedisCache keeps pages in Redis. Keys embed a generation counter, so an
// invalidation is a single INCR and stale pages age out through their TTL.
type RedisCache struct {
	client goredis.UniversalClient
	ttl    time.Duration
	prefix string
	logger *slog.Logger
}

// NewRedisCache wraps an existing client.
func NewRedisCache(client goredis.UniversalClient, ttl time.Duration, logger *slog.Logger) *RedisCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisCache{client: client, ttl: ttl, prefix: defaultCachePrefix, logger: logger}
}

// NewRedisClient connects to the configured server and checks it answers.
func NewRedisClient(ctx context.Context, cfg config.CacheConfig) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.RedisAddr, err)
	}
	return client, nil
}

func (c *RedisCache) generationKey() string {
	return c.prefix + ":gen"
}

func (c *RedisCache) generation(ctx context.Context) (int64, error) {
	gen, err := c.client.Get(ctx, c.generationKey()).Int64()
	if errors.Is(err, goredis.Nil) {
		return 0, nil
	}
	return gen, err
}

func (c *RedisCache) pageKey(ctx context.Context, spec *Spec) (string, error) {
	gen, err := c.generation(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:page:%d:%s", c.prefix, gen, CacheKey(spec)), nil
}

// Load returns a cached page, or false on a miss or any Redis error.
func (c *RedisCache) Load(ctx context.Context, spec *Spec) (*Page, bool) {
	key, err := c.pageKey(ctx, spec)
	if err != nil {
		c.logger.WarnContext(ctx, "query cache unavailable", slog.String("error", err.Error()))
		return nil, false
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			c.logger.WarnContext(ctx, "query cache read failed", slog.String("error", err.Error()))
		}
		return nil, false
	}
	page, err := decodePage(data)
	if err != nil {
		c.logger.WarnContext(ctx, "discarding unreadable cache entry", slog.String("key", key), slog.String("error", err.Error()))
		return nil, false
	}
	return page, true
}

// Store writes page under the current generation.
func (c *RedisCache) Store(ctx context.Context, spec *Spec, page *Page) {
	key, err := c.pageKey(ctx, spec)
	if err != nil {
		c.logger.WarnContext(ctx, "query cache unavailable", slog.String("error", err.Error()))
		return
	}
	data, err := encodePage(page)
	if err != nil {
		c.logger.WarnContext(ctx, "encoding cache entry", slog.String("error", err.Error()))
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "query cache write failed", slog.String("error", err.Error()))
	}
}

// Invalidate bumps the generation.
func (c *RedisCache) Invalidate(ctx context.Context) {
	if err := c.client.Incr(ctx, c.generationKey()).Err(); err != nil {
		c.logger.WarnContext(ctx, "query cache invalidation failed", slog.String("error", err.Error()))
	}
}

// CacheKey is a stable digest of everything that affects a page.
func CacheKey(spec *Spec) string {
	tags := slices.Clone(spec.Tags)
	slices.Sort(tags)

	var b strings.Builder
	fmt.Fprintf(&b, "t=%s;", strings.Join(tags, ","))
	fmt.Fprintf(&b, "q=%s;", strings.ToLower(spec.Search))
	fmt.Fprintf(&b, "d=%s,%s;", formatTimeBound(spec.Date.From), formatTimeBound(spec.Date.To))
	fmt.Fprintf(&b, "v=%s,%s;", formatIntBound(spec.Views.Min), formatIntBound(spec.Views.Max))
	for _, k := range spec.Sort {
		if k.Desc {
			b.WriteByte('-')
		}
		b.WriteString(string(k.Field))
		b.WriteByte(',')
	}
	fmt.Fprintf(&b, ";p=%d;l=%d;f=", spec.Page, spec.Limit)
	for _, f := range spec.Fields {
		b.WriteString(string(f))
		b.WriteByte(',')
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:16])
}

func formatTimeBound(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func formatIntBound(n *int64) string {
	if n == nil {
		return ""
	}
	return strconv.FormatInt(*n, 10)
}

// cachedPage carries tags explicitly; they are hidden from Video's JSON.
type cachedPage struct {
	Items    []cachedVideo      `json:"items"`
	Total    int64              `json:"total"`
	Page     int                `json:"page"`
	PageSize int                `json:"page_size"`
	Fields   []repository.Field `json:"fields"`
}

type cachedVideo struct {
	Video *models.Video `json:"video"`
	Tags  []string      `json:"tags"`
}

func encodePage(p *Page) ([]byte, error) {
	cp := cachedPage{
		Items:    make([]cachedVideo, len(p.Items)),
		Total:    p.Total,
		Page:     p.Page,
		PageSize: p.PageSize,
		Fields:   p.Fields,
	}
	for i, v := range p.Items {
		cp.Items[i] = cachedVideo{Video: v, Tags: v.TagNames()}
	}
	return json.Marshal(cp)
}

func decodePage(data []byte) (*Page, error) {
	var cp cachedPage
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, err
	}
	p := &Page{
		Items:    make([]*models.Video, 0, len(cp.Items)),
		Total:    cp.Total,
		Page:     cp.Page,
		PageSize: cp.PageSize,
		Fields:   cp.Fields,
	}
	for _, item := range cp.Items {
		if item.Video == nil {
			continue
		}
		item.Video.SetTags(item.Tags)
		p.Items = append(p.Items, item.Video)
	}
	return p, nil
}
