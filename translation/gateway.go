// Package translation fronts the external translation capability.
// The Gateway adds language validation, a bounded-TTL cache, request
// collapsing, a timeout and error normalization around any backend.
package translation

import (
	"context"
	"fmt"
	"log/slog"
	"polyglot-chat/contract"
	"polyglot-chat/errors"
	"polyglot-chat/observability"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/text/language"
)

var _ contract.Translator = (*Gateway)(nil)

type Gateway struct {
	log        *slog.Logger
	backend    contract.Translator
	cache      contract.TranslationCache
	monitoring *observability.MonitoringManager
	timeout    time.Duration
	group      singleflight.Group
}

func NewGateway(log *slog.Logger, backend contract.Translator, cache contract.TranslationCache,
	monitoring *observability.MonitoringManager, timeout time.Duration) *Gateway {
	return &Gateway{
		log:        log,
		backend:    backend,
		cache:      cache,
		monitoring: monitoring,
		timeout:    timeout,
	}
}

// Translate returns text translated from source to target.
// Identical requests in flight share one backend call, and the backend call
// outlives a caller that gives up so other waiters still get the result.
func (g *Gateway) Translate(ctx context.Context, text, source, target string) (string, error) {
	src, err := canonical(source)
	if err != nil {
		return "", err
	}
	dst, err := canonical(target)
	if err != nil {
		return "", err
	}
	if src == dst || strings.TrimSpace(text) == "" {
		return text, nil
	}

	key := cacheKey(src, dst, text)
	if translated, ok := g.lookup(key); ok {
		g.monitoring.IncrCacheHits()
		return translated, nil
	}

	ch := g.group.DoChan(key, func() (any, error) {
		return g.call(context.WithoutCancel(ctx), key, text, src, dst)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", errors.Translation("translate", errors.ErrTimeout)
	}
}

func (g *Gateway) call(ctx context.Context, key, text, src, dst string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	g.monitoring.IncrTranslationCalls()
	start := time.Now()
	translated, err := g.backend.Translate(ctx, text, src, dst)
	if err != nil {
		return "", errors.Translation("translate", normalize(ctx, err))
	}
	translated = strings.TrimSpace(translated)
	if translated == "" {
		return "", errors.Translation("translate", fmt.Errorf("%w: empty translation", errors.ErrServiceUnavailable))
	}
	g.log.Debug("Translation done", "from", src, "to", dst, "latency_ms", time.Since(start).Milliseconds())

	if err := g.cache.Set(key, translated); err != nil {
		g.log.Warn("Translation cache write failed", "error", err)
	}
	return translated, nil
}

func (g *Gateway) lookup(key string) (string, bool) {
	translated, ok, err := g.cache.Get(key)
	if err != nil {
		g.log.Warn("Translation cache read failed", "error", err)
		return "", false
	}
	return translated, ok
}

// normalize maps any backend failure onto Timeout, InvalidLang or ServiceUnavailable.
func normalize(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, errors.ErrInvalidLang):
		return errors.ErrInvalidLang
	case errors.Is(err, errors.ErrTimeout),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(ctx.Err(), context.DeadlineExceeded):
		return errors.ErrTimeout
	case errors.Is(err, errors.ErrServiceUnavailable):
		return err
	default:
		return fmt.Errorf("%w: %v", errors.ErrServiceUnavailable, err)
	}
}

// canonical validates a language code and returns its BCP 47 form ("EN" -> "en").
func canonical(code string) (string, error) {
	tag, err := language.Parse(strings.TrimSpace(code))
	if err != nil {
		return "", errors.Translation("validate", fmt.Errorf("%w: %q", errors.ErrInvalidLang, code))
	}
	return tag.String(), nil
}

func cacheKey(src, dst, text string) string {
	return "tr:" + src + ":" + dst + ":" + text
}
