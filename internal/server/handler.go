package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/juju/loggo/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/torosent/streamsim/internal/dataset"
	"github.com/torosent/streamsim/internal/metrics"
	"github.com/torosent/streamsim/internal/replay"
	"github.com/torosent/streamsim/internal/tracing"
)

var logger = loggo.GetLogger("streamsim.server")

// Response headers describing the served batch.
const (
	HeaderBatchID     = "X-Batch-Id"
	HeaderBatchOffset = "X-Batch-Offset"
)

// BatchSource hands out the next batch for a request.
type BatchSource interface {
	Next(ctx context.Context) (replay.Batch, error)
}

// Options configure the HTTP routes.
type Options struct {
	// Path is the batch route, e.g. "/fetchdata".
	Path string
	// MetricsPath is the Prometheus route. Empty disables it.
	MetricsPath string
	// TimestampLayout formats time values in responses.
	TimestampLayout string
	Metrics         *metrics.ReplayMetrics
	Tracer          trace.Tracer
}

type errorResponse struct {
	Error string `json:"error"`
}

type handler struct {
	source BatchSource
	route  string
	layout string
	stats  *metrics.ReplayMetrics
	tracer trace.Tracer
}

// NewHandler returns the router serving batches from source.
func NewHandler(source BatchSource, opts Options) http.Handler {
	route := "/" + strings.Trim(strings.TrimSpace(opts.Path), "/")
	layout := opts.TimestampLayout
	if layout == "" {
		layout = dataset.CanonicalTimestampFormat
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("streamsim")
	}
	h := &handler{
		source: source,
		route:  route,
		layout: layout,
		stats:  opts.Metrics,
		tracer: tracer,
	}

	router := mux.NewRouter()
	var batch http.Handler = http.HandlerFunc(h.serveBatch)
	if h.stats != nil {
		batch = h.stats.InstrumentHandler(batch)
	}
	router.Handle(route, batch).Methods(http.MethodGet)
	router.HandleFunc("/healthz", handleHealth).Methods(http.MethodGet)
	if h.stats != nil && strings.TrimSpace(opts.MetricsPath) != "" {
		router.Handle(opts.MetricsPath, h.stats.Handler()).Methods(http.MethodGet)
	}
	router.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, route, http.StatusFound)
	})
	return router
}

func (h *handler) serveBatch(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.StartServerSpan(r, h.tracer, h.route)

	batch, err := h.source.Next(ctx)
	if err != nil {
		tracing.EndSpan(span, err, attribute.Int("http.response.status_code", http.StatusInternalServerError))
		h.fail(w, err)
		return
	}

	body, err := encodeBatch(batch, h.layout)
	if err != nil {
		tracing.EndSpan(span, err, attribute.Int("http.response.status_code", http.StatusInternalServerError))
		h.fail(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set(HeaderBatchID, batch.ID)
	w.Header().Set(HeaderBatchOffset, strconv.Itoa(batch.Offset))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		logger.Debugf("writing batch %s: %v", batch.ID, err)
	}

	tracing.EndSpan(span, nil,
		attribute.String("streamsim.batch.id", batch.ID),
		attribute.Int("streamsim.batch.size", len(batch.Records)),
		attribute.Int("http.response.status_code", http.StatusOK),
	)
}

func (h *handler) fail(w http.ResponseWriter, err error) {
	logger.Errorf("serving batch: %v", err)
	if h.stats != nil {
		h.stats.RequestFailed()
	}
	respondJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// encodeBatch renders the records as a JSON array with every time value
// formatted in UTC using layout.
func encodeBatch(batch replay.Batch, layout string) ([]byte, error) {
	out := make([]map[string]any, len(batch.Records))
	for i, rec := range batch.Records {
		row := make(map[string]any, len(rec))
		for k, v := range rec {
			if tv, ok := v.(time.Time); ok {
				row[k] = tv.UTC().Format(layout)
				continue
			}
			row[k] = v
		}
		out[i] = row
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(out); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
