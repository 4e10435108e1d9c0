package router

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"
)

// --- ANSI color codes ---
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
)

type HandlerFunc func(http.ResponseWriter, *http.Request)

type route struct {
	method   string
	pattern  string
	segments []string
	handler  HandlerFunc
}

type mount struct {
	prefix  string
	handler http.Handler
}

// Router matches routes in registration order, so register specific
// patterns before the generic ones they overlap with.
type Router struct {
	routes []route
	mounts []mount
	Logger *log.Logger
}

func New() *Router {
	return &Router{Logger: log.Default()}
}

type paramsKey struct{}

// Params returns the path segments matched by "*" in the route pattern.
func Params(r *http.Request) []string {
	params, _ := r.Context().Value(paramsKey{}).([]string)
	return params
}

// Param returns the i-th wildcard segment, or "" when there is none.
func Param(r *http.Request, i int) string {
	params := Params(r)
	if i < 0 || i >= len(params) {
		return ""
	}
	return params[i]
}

// ServeHTTP dispatches the request and writes a colored access log line.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	start := time.Now()
	lrw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

	r.dispatch(lrw, req)

	duration := time.Since(start)
	r.Logger.Printf("%s[%s]%s %s%s%s %s %s%d%s %s(%v)%s",
		colorCyan, start.Format("2006-01-02 15:04:05"), colorReset,
		methodColor(req.Method), req.Method, colorReset,
		req.URL.Path,
		statusColor(lrw.statusCode), lrw.statusCode, colorReset,
		colorBlue, duration, colorReset,
	)
}

func (r *Router) dispatch(w http.ResponseWriter, req *http.Request) {
	for _, m := range r.mounts {
		if req.URL.Path == strings.TrimSuffix(m.prefix, "/") || strings.HasPrefix(req.URL.Path, m.prefix) {
			m.handler.ServeHTTP(w, req)
			return
		}
	}

	requestSegments := splitPath(req.URL.Path)
	pathMatched := false
	for _, rt := range r.routes {
		params, ok := matchWildcardRoute(requestSegments, rt.segments)
		if !ok {
			continue
		}
		if rt.method != req.Method {
			pathMatched = true
			continue
		}
		ctx := context.WithValue(req.Context(), paramsKey{}, params)
		rt.handler(w, req.WithContext(ctx))
		return
	}

	if pathMatched {
		// Path exists but method not allowed
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	http.Error(w, "Not Found", http.StatusNotFound)
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

// matchWildcardRoute checks if a request path matches a route pattern and
// returns the segments captured by its wildcards. A trailing "*" matches
// one or more remaining segments, joined with "/".
func matchWildcardRoute(requestSegments, routeSegments []string) ([]string, bool) {
	var params []string
	for i, routeSegment := range routeSegments {
		if i >= len(requestSegments) {
			return nil, false
		}
		if routeSegment != "*" {
			if requestSegments[i] != routeSegment {
				return nil, false
			}
			continue
		}
		if i == len(routeSegments)-1 {
			return append(params, strings.Join(requestSegments[i:], "/")), true
		}
		params = append(params, requestSegments[i])
	}
	if len(requestSegments) != len(routeSegments) {
		return nil, false
	}
	return params, true
}

// --- Register paths ---
func (r *Router) register(method, path string, handler HandlerFunc) {
	r.routes = append(r.routes, route{
		method:   method,
		pattern:  path,
		segments: splitPath(path),
		handler:  handler,
	})
}

func (r *Router) GET(path string, handler HandlerFunc) { r.register(http.MethodGet, path, handler) }
func (r *Router) POST(path string, handler HandlerFunc) { r.register(http.MethodPost, path, handler) }

// Handle mounts handler for every method under prefix, e.g. "/swagger/".
func (r *Router) Handle(prefix string, handler http.Handler) {
	r.mounts = append(r.mounts, mount{prefix: prefix, handler: handler})
}

// Routes lists registered routes as "METHOD:PATTERN" in match order.
func (r *Router) Routes() []string {
	out := make([]string, len(r.routes))
	for i, rt := range r.routes {
		out[i] = rt.method + ":" + rt.pattern
	}
	return out
}

// --- Start server ---
func (r *Router) Start(addr string) error {
	r.Logger.Printf("🚀 Server started on %shttp://localhost%s%s", colorGreen, addr, colorReset)
	return http.ListenAndServe(addr, r)
}

// --- Logging response writer to capture status codes ---
type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

// --- Color helpers ---
func statusColor(code int) string {
	switch {
	case code >= 200 && code < 300:
		return colorGreen
	case code >= 300 && code < 400:
		return colorCyan
	case code >= 400 && code < 500:
		return colorYellow
	default:
		return colorRed
	}
}

func methodColor(method string) string {
	switch method {
	case http.MethodGet:
		return colorGreen
	case http.MethodPost:
		return colorBlue
	case http.MethodPut:
		return colorYellow
	case http.MethodDelete:
		return colorRed
	default:
		return colorCyan
	}
}
