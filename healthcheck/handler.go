/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package healthcheck

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/acronis/go-botkit/log"
)

// ContentTypeAppJSON represents MIME media type for JSON.
const ContentTypeAppJSON = "application/json"

// StatusClientClosedRequest is a special HTTP status code used by Nginx to show that the client
// closed the request before the server could send a response
const StatusClientClosedRequest = 499

// HandlerOpts represents options for creating the status handler.
type HandlerOpts struct {
	// Logger is used for logging. No logging by default.
	Logger log.FieldLogger

	// MetricsHandler serves GET /metrics. promhttp.Handler() is used by default.
	MetricsHandler http.Handler

	// TimeNowProvider allows overriding the time source in tests.
	TimeNowProvider func() time.Time
}

// NewHandler creates an http.Handler serving the operational endpoints:
//
//	GET /healthz - liveness, always 200
//	GET /readyz  - runs component checks, 503 when any component is unhealthy
//	GET /status  - full component report with a timestamp, always 200
//	GET /metrics - Prometheus metrics
func NewHandler(checks map[string]Check) http.Handler {
	return NewHandlerWithOpts(checks, HandlerOpts{})
}

// NewHandlerWithOpts is a more configurable version of the NewHandler.
func NewHandlerWithOpts(checks map[string]Check, opts HandlerOpts) http.Handler {
	if opts.Logger == nil {
		opts.Logger = log.NewDisabledLogger()
	}
	if opts.MetricsHandler == nil {
		opts.MetricsHandler = promhttp.Handler()
	}
	if opts.TimeNowProvider == nil {
		opts.TimeNowProvider = time.Now
	}
	h := &handler{checks: checks, logger: opts.Logger, timeNow: opts.TimeNowProvider}
	router := chi.NewRouter()
	router.Get("/healthz", h.serveLiveness)
	router.Get("/readyz", h.serveReadiness)
	router.Get("/status", h.serveStatus)
	router.Method(http.MethodGet, "/metrics", opts.MetricsHandler)
	return router
}

type handler struct {
	checks  map[string]Check
	logger  log.FieldLogger
	timeNow func() time.Time
}

type livenessResponse struct {
	Status string `json:"status"`
}

type readinessResponse struct {
	Healthy    bool                       `json:"healthy"`
	Components map[string]ComponentStatus `json:"components"`
}

type statusResponse struct {
	Healthy    bool                       `json:"healthy"`
	Timestamp  time.Time                  `json:"timestamp"`
	Components map[string]ComponentStatus `json:"components"`
}

func (h *handler) serveLiveness(rw http.ResponseWriter, r *http.Request) {
	h.respondJSON(rw, http.StatusOK, livenessResponse{Status: "ok"})
}

func (h *handler) serveReadiness(rw http.ResponseWriter, r *http.Request) {
	components, healthy := h.runChecks(r.Context())
	if errors.Is(r.Context().Err(), context.Canceled) {
		rw.WriteHeader(StatusClientClosedRequest)
		return
	}
	code := http.StatusOK
	if !healthy {
		code = http.StatusServiceUnavailable
	}
	h.respondJSON(rw, code, readinessResponse{Healthy: healthy, Components: components})
}

func (h *handler) serveStatus(rw http.ResponseWriter, r *http.Request) {
	components, healthy := h.runChecks(r.Context())
	if errors.Is(r.Context().Err(), context.Canceled) {
		rw.WriteHeader(StatusClientClosedRequest)
		return
	}
	h.respondJSON(rw, http.StatusOK, statusResponse{
		Healthy:    healthy,
		Timestamp:  h.timeNow().UTC(),
		Components: components,
	})
}

func (h *handler) runChecks(ctx context.Context) (map[string]ComponentStatus, bool) {
	components := make(map[string]ComponentStatus, len(h.checks))
	healthy := true
	for name, check := range h.checks {
		st := h.runCheck(ctx, name, check)
		components[name] = st
		if !st.Healthy {
			healthy = false
		}
	}
	return components, healthy
}

// runCheck reports a panicking check as an unhealthy component,
// one broken probe must not take down the whole status surface.
func (h *handler) runCheck(ctx context.Context, name string, check Check) (st ComponentStatus) {
	defer func() {
		if p := recover(); p != nil {
			h.logger.Error("health check panicked",
				log.String("component", name), log.String("panic", fmt.Sprintf("%v", p)))
			st = ComponentStatus{Details: map[string]interface{}{"panic": fmt.Sprintf("%v", p)}}
		}
	}()
	return check(ctx)
}

func (h *handler) respondJSON(rw http.ResponseWriter, statusCode int, respData interface{}) {
	respJSON, err := jsonMarshal(respData)
	if err != nil {
		h.logger.Error("error while marshaling json for response body", log.Error(err))
		rw.WriteHeader(http.StatusInternalServerError)
		return
	}
	rw.Header().Set("Content-Type", ContentTypeAppJSON)
	rw.WriteHeader(statusCode)
	if _, err := rw.Write(respJSON); err != nil {
		h.logger.Error("error while writing response body", log.Error(err))
	}
}

// Does JSON marshaling with disabled HTML escaping
func jsonMarshal(v interface{}) ([]byte, error) {
	var buffer bytes.Buffer
	encoder := json.NewEncoder(&buffer)
	encoder.SetEscapeHTML(false)
	err := encoder.Encode(v)
	if err != nil {
		return nil, err
	}
	return buffer.Bytes()[:buffer.Len()-1], nil
}
