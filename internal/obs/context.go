package obs

import (
	"context"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
)

type routePatternKey struct{}

type annotationsKey struct{}

// WithRoutePattern stores the matched router pattern on the context.
func WithRoutePattern(ctx context.Context, pattern string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, routePatternKey{}, pattern)
}

// RoutePatternFromContext extracts the route pattern from context if present.
func RoutePatternFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(routePatternKey{}).(string)
	return v
}

// routeOf resolves the route label after the handler ran. chi fills its
// route context while routing, so outer middleware sees the full pattern here.
func routeOf(r *http.Request, fallback string) string {
	if route := RoutePatternFromContext(r.Context()); route != "" {
		return route
	}
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if route := rc.RoutePattern(); route != "" {
			return route
		}
	}
	return fallback
}

// Annotations are request-scoped fields handlers add for the request log and span.
type Annotations struct {
	mu     sync.Mutex
	fields map[string]string
}

func withAnnotations(ctx context.Context) (context.Context, *Annotations) {
	if a, ok := ctx.Value(annotationsKey{}).(*Annotations); ok {
		return ctx, a
	}
	a := &Annotations{fields: map[string]string{}}
	return context.WithValue(ctx, annotationsKey{}, a), a
}

// Annotate records key=value on the current request, e.g. the checkout step
// a response left the shopper at. It is a no-op outside an instrumented request.
func Annotate(ctx context.Context, key, value string) {
	if ctx == nil {
		return
	}
	a, ok := ctx.Value(annotationsKey{}).(*Annotations)
	if !ok || key == "" {
		return
	}
	a.mu.Lock()
	a.fields[key] = value
	a.mu.Unlock()
}

// Each visits the recorded annotations.
func (a *Annotations) Each(fn func(key, value string)) {
	if a == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for k, v := range a.fields {
		fn(k, v)
	}
}
