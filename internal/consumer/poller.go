// Package consumer polls the replay server and hands each batch to user
// processing logic.
package consumer

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	jujuerrors "github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/torosent/streamsim/internal/dataset"
	"github.com/torosent/streamsim/internal/metrics"
	"github.com/torosent/streamsim/internal/output"
	"github.com/torosent/streamsim/internal/tracing"
)

var logger = loggo.GetLogger("streamsim.consumer")

// maxErrorBody caps how much of a failed response is kept for the error.
const maxErrorBody = 512

// Processor consumes one polled batch. Returning an error stops the poller.
type Processor interface {
	Process(ctx context.Context, records []dataset.Record) error
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx context.Context, records []dataset.Record) error

func (f ProcessorFunc) Process(ctx context.Context, records []dataset.Record) error {
	return f(ctx, records)
}

// PrintProcessor writes every batch to w as a table.
func PrintProcessor(w io.Writer, timestampField string) Processor {
	return ProcessorFunc(func(ctx context.Context, records []dataset.Record) error {
		return output.PrintRecords(w, timestampField, records)
	})
}

// RequestBuilder builds the request for one poll.
type RequestBuilder interface {
	Build(ctx context.Context) (*http.Request, error)
}

// Options configure a Poller.
type Options struct {
	Client          *http.Client
	Requests        RequestBuilder
	Interval        time.Duration
	MaxPolls        int // 0 polls until the context is done
	TimestampField  string
	TimestampLayout string // layout the server formats timestamps with
	Collector       *metrics.Collector
	Tracer          trace.Tracer
}

// Poller fetches a batch every interval.
type Poller struct {
	client    *http.Client
	requests  RequestBuilder
	interval  time.Duration
	maxPolls  int
	tsField   string
	tsLayout  string
	processor Processor
	collector *metrics.Collector
	tracer    trace.Tracer
}

func NewPoller(processor Processor, opts Options) (*Poller, error) {
	if processor == nil {
		return nil, jujuerrors.New("processor is required")
	}
	if opts.Requests == nil {
		return nil, jujuerrors.New("request builder is required")
	}
	if opts.Interval <= 0 {
		return nil, jujuerrors.NotValidf("poll interval %s", opts.Interval)
	}
	if opts.MaxPolls < 0 {
		return nil, jujuerrors.NotValidf("max polls %d", opts.MaxPolls)
	}
	client := opts.Client
	if client == nil {
		client = http.DefaultClient
	}
	collector := opts.Collector
	if collector == nil {
		collector = metrics.NewCollector()
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("streamsim")
	}
	return &Poller{
		client:    client,
		requests:  opts.Requests,
		interval:  opts.Interval,
		maxPolls:  opts.MaxPolls,
		tsField:   opts.TimestampField,
		tsLayout:  opts.TimestampLayout,
		processor: processor,
		collector: collector,
		tracer:    tracer,
	}, nil
}

// Collector returns the collector recording poll metrics.
func (p *Poller) Collector() *metrics.Collector {
	return p.collector
}

// Poll performs one round-trip and returns the decoded batch.
func (p *Poller) Poll(ctx context.Context) (records []dataset.Record, err error) {
	ctx, span := tracing.StartClientSpan(ctx, p.tracer, "")
	defer func() {
		tracing.EndSpan(span, err, attribute.Int("streamsim.batch.size", len(records)))
	}()

	req, err := p.requests.Build(ctx)
	if err != nil {
		return nil, jujuerrors.Annotate(err, "building request")
	}
	span.SetAttributes(attribute.String("url.full", req.URL.String()))

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	records, err = decodeBatch(resp.Body, p.tsField, p.tsLayout)
	if err != nil {
		return nil, err
	}
	logger.Debugf("batch %s offset=%s: %d records",
		resp.Header.Get("X-Batch-Id"), resp.Header.Get("X-Batch-Offset"), len(records))
	return records, nil
}

// Run polls immediately and then once per interval until ctx is done or
// MaxPolls is reached. A failed poll is logged and counted; the next tick
// tries again. A processor error stops Run and is returned.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for polls := 0; p.maxPolls == 0 || polls < p.maxPolls; polls++ {
		if polls > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
		}

		start := time.Now()
		records, err := p.Poll(ctx)
		if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			return nil
		}
		p.collector.RecordPoll(time.Since(start), len(records), err)
		if err != nil {
			logger.Warningf("poll %d failed: %v", polls+1, err)
			continue
		}

		if err := p.processor.Process(ctx, records); err != nil {
			return jujuerrors.Annotatef(err, "processing poll %d", polls+1)
		}
	}
	return nil
}
