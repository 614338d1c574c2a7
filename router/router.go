package router

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/wintermutant/anvil-composable-tutorial/config"
	"github.com/wintermutant/anvil-composable-tutorial/errors"
	"github.com/wintermutant/anvil-composable-tutorial/metric"
)

const serviceName = "edge-router"

type contextKey string

const targetKey contextKey = "upstream-target"

// Router matches incoming requests against the route table, resolves an
// upstream per request, and forwards through a shared reverse proxy.
// Resolution happens on every request so a replica that just left
// rotation stops receiving traffic immediately.
type Router struct {
	table   *Table
	config  config.RouterConfig
	logger  *slog.Logger
	metrics *metric.Metrics
	proxy   *httputil.ReverseProxy
}

// NewRouter creates a router over the given route table
func NewRouter(
	table *Table,
	cfg config.RouterConfig,
	logger *slog.Logger,
	metrics *metric.Metrics,
) (*Router, error) {
	if table == nil {
		return nil, errors.WrapFatal(errors.ErrMissingConfig, "Router", "NewRouter",
			"route table is required")
	}

	if logger == nil {
		logger = slog.Default()
	}

	r := &Router{
		table:   table,
		config:  cfg,
		logger:  logger,
		metrics: metrics,
	}

	r.proxy = &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			target := pr.In.Context().Value(targetKey).(*url.URL)
			pr.SetURL(target)
			pr.Out.URL.Path = pr.In.URL.Path
			pr.Out.URL.RawQuery = pr.In.URL.RawQuery
			pr.SetXForwarded()
		},
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout: cfg.ForwardTimeout,
			}).DialContext,
			ResponseHeaderTimeout: cfg.ForwardTimeout,
			IdleConnTimeout:       90 * time.Second,
			MaxIdleConnsPerHost:   16,
		},
		ErrorHandler: r.handleProxyError,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	return r, nil
}

// ServeHTTP implements http.Handler
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	route, ok := r.table.Match(req.URL.Path)
	if !ok {
		r.logger.Debug("No route for path", "path", req.URL.Path)
		r.writeError(w, http.StatusNotFound, "no route for path")
		r.countRequest(req.URL.Path, http.StatusNotFound)
		return
	}

	address, err := route.Resolver.Resolve()
	if err != nil {
		r.logger.Warn("Upstream resolution failed",
			"prefix", route.Prefix, "error", err)
		r.countError(err)
		r.writeError(w, http.StatusServiceUnavailable, "no healthy upstream available")
		r.countRequest(route.Prefix, http.StatusServiceUnavailable)
		return
	}

	target, err := url.Parse(address)
	if err != nil {
		r.logger.Error("Invalid upstream address",
			"prefix", route.Prefix, "address", address, "error", err)
		r.writeError(w, http.StatusBadGateway, "invalid upstream address")
		r.countRequest(route.Prefix, http.StatusBadGateway)
		return
	}
	ctx := context.WithValue(req.Context(), targetKey, target)

	r.logger.Debug("Forwarding request",
		"path", req.URL.Path, "upstream", address)
	r.countRequest(route.Prefix, http.StatusOK)

	r.proxy.ServeHTTP(w, req.WithContext(ctx))
}

// handleProxyError answers for upstreams that accepted resolution but
// failed mid-forward
func (r *Router) handleProxyError(w http.ResponseWriter, req *http.Request, err error) {
	r.logger.Error("Upstream forward failed",
		"path", req.URL.Path, "error", err)
	r.countError(errors.WrapTransient(errors.ErrReplicaUnreachable, "Router", "forward",
		"forward upstream request"))

	if req.Context().Err() != nil {
		// Client went away or the forward timed out on our side
		r.writeError(w, http.StatusGatewayTimeout, "upstream timed out")
		return
	}
	r.writeError(w, http.StatusBadGateway, "upstream request failed")
}

// writeError writes a JSON error response
func (r *Router) writeError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := map[string]any{
		"error":  message,
		"status": statusCode,
	}

	data, _ := json.Marshal(response)
	_, _ = w.Write(data)
}

func (r *Router) countRequest(route string, code int) {
	if r.metrics == nil {
		return
	}
	r.metrics.RequestsTotal.WithLabelValues(serviceName, route, httpStatusLabel(code)).Inc()
}

func (r *Router) countError(err error) {
	if r.metrics == nil {
		return
	}
	r.metrics.ErrorsTotal.WithLabelValues(serviceName, errors.Classify(err).String()).Inc()
}

func httpStatusLabel(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	default:
		return "2xx"
	}
}
