package completion

import (
	"context"
	"fmt"
	"time"

	"github.com/bz888/cognix/internal/logger"
	"github.com/bz888/cognix/internal/models"
	"golang.org/x/time/rate"
)

// Router sends each request to the backend registered for its model's provider.
type Router struct {
	backends map[models.Provider]Completer
	log      *logger.Logger
}

func NewRouter() *Router {
	return &Router{
		backends: make(map[models.Provider]Completer),
		log:      logger.NewLogger("completion router"),
	}
}

func (r *Router) Register(provider models.Provider, c Completer) {
	r.backends[provider] = c
}

func (r *Router) Has(provider models.Provider) bool {
	_, ok := r.backends[provider]
	return ok
}

func (r *Router) Complete(ctx context.Context, req Request) (string, error) {
	backend, ok := r.backends[req.Model.Provider]
	if !ok {
		return "", &Error{Kind: BadRequest, Detail: fmt.Sprintf("no backend configured for %s models", req.Model.Provider)}
	}

	start := time.Now()
	text, err := backend.Complete(ctx, req)
	if err != nil {
		r.log.Warn("completion with ", req.Model.ID, " failed after ", time.Since(start).Round(time.Millisecond), ": ", KindOf(err))
		return "", err
	}
	r.log.Debug("completion with ", req.Model.ID, " took ", time.Since(start).Round(time.Millisecond))
	return text, nil
}

type throttled struct {
	next      Completer
	limiter   *rate.Limiter
	perMinute int
}

// Throttle caps c at perMinute requests. Requests over the cap fail locally
// with RateLimited instead of being sent. perMinute <= 0 returns c unchanged.
func Throttle(c Completer, perMinute int) Completer {
	if perMinute <= 0 {
		return c
	}
	return &throttled{
		next:      c,
		limiter:   rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute),
		perMinute: perMinute,
	}
}

func (t *throttled) Complete(ctx context.Context, req Request) (string, error) {
	if !t.limiter.Allow() {
		return "", &Error{
			Kind:   RateLimited,
			Detail: fmt.Sprintf("local limit of %d requests per minute reached", t.perMinute),
		}
	}
	return t.next.Complete(ctx, req)
}
