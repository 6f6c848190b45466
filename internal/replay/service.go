package replay

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/torosent/streamsim/internal/dataset"
	"github.com/torosent/streamsim/internal/tracing"
)

var logger = loggo.GetLogger("streamsim.replay")

// ReloadPolicy decides when the Service loads its dataset again.
type ReloadPolicy string

const (
	// ReloadOnce loads a single dataset and replays it indefinitely.
	ReloadOnce ReloadPolicy = "once"
	// ReloadPerRequest loads a fresh dataset and cursor for every request,
	// so every response is the first batch.
	ReloadPerRequest ReloadPolicy = "per-request"
	// ReloadOnWrap replays one dataset and loads it again after each full
	// cycle, picking up rows added to the source in the meantime.
	ReloadOnWrap ReloadPolicy = "on-wrap"
)

// ParseReloadPolicy normalises a configured policy name. Empty means
// ReloadOnce.
func ParseReloadPolicy(value string) (ReloadPolicy, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	v = strings.ReplaceAll(v, "_", "-")
	switch ReloadPolicy(v) {
	case "":
		return ReloadOnce, nil
	case ReloadOnce, ReloadPerRequest, ReloadOnWrap:
		return ReloadPolicy(v), nil
	default:
		return "", &dataset.ConfigurationError{
			Field:  "replay.reload",
			Reason: fmt.Sprintf("reload policy must be 'once', 'per-request' or 'on-wrap', got %q", value),
		}
	}
}

// Observer receives replay events. Implementations must be safe for
// concurrent use.
type Observer interface {
	DatasetLoaded(records int, elapsed time.Duration, err error)
	BatchServed(batch Batch)
}

type nopObserver struct{}

func (nopObserver) DatasetLoaded(int, time.Duration, error) {}
func (nopObserver) BatchServed(Batch)                      {}

// Options configure a Service.
type Options struct {
	BatchSize int
	Reload    ReloadPolicy
	Observer  Observer
	Tracer    trace.Tracer
}

// Service serves batches from a dataset source. All calls are serialised,
// so the cursor never skips or repeats a batch under concurrent requests.
type Service struct {
	mu       sync.Mutex
	source   dataset.Source
	batch    int
	reload   ReloadPolicy
	observer Observer
	tracer   trace.Tracer
	cursor   *Cursor
}

// NewService validates opts and returns a Service with nothing loaded.
func NewService(source dataset.Source, opts Options) (*Service, error) {
	if source == nil {
		return nil, errors.New("replay: dataset source is required")
	}
	if opts.BatchSize <= 0 {
		return nil, &dataset.ConfigurationError{
			Field:  "replay.batch_size",
			Reason: "batch size must be a positive integer",
		}
	}
	reload, err := ParseReloadPolicy(string(opts.Reload))
	if err != nil {
		return nil, err
	}
	observer := opts.Observer
	if observer == nil {
		observer = nopObserver{}
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("streamsim")
	}
	return &Service{
		source:   source,
		batch:    opts.BatchSize,
		reload:   reload,
		observer: observer,
		tracer:   tracer,
	}, nil
}

// Reload returns the configured policy.
func (s *Service) Reload() ReloadPolicy {
	return s.reload
}

// Prime loads the dataset ahead of the first request so that load errors
// surface at startup. With ReloadPerRequest it only checks that the source
// loads.
func (s *Service) Prime(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.load(ctx)
	if err != nil {
		return err
	}
	if s.reload != ReloadPerRequest {
		s.cursor = cur
	}
	return nil
}

// Next returns the next batch. Load failures are returned as is; a failed
// load is attempted again on the next call.
func (s *Service) Next(ctx context.Context) (batch Batch, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, span := tracing.StartInternalSpan(ctx, s.tracer, "replay.next")
	defer func() {
		tracing.EndSpan(span, err,
			attribute.Int("streamsim.batch.offset", batch.Offset),
			attribute.Int("streamsim.batch.size", len(batch.Records)),
		)
	}()

	cur := s.cursor
	if cur == nil || s.reload == ReloadPerRequest {
		cur, err = s.load(ctx)
		if err != nil {
			return Batch{}, err
		}
		if s.reload != ReloadPerRequest {
			s.cursor = cur
		}
	}

	batch = cur.NextBatch()
	batch.ID = ulid.Make().String()

	if s.reload == ReloadOnWrap && batch.Wrapped {
		s.cursor = nil
	}

	logger.Debugf("batch %s offset=%d size=%d wrapped=%t: %v",
		batch.ID, batch.Offset, len(batch.Records), batch.Wrapped, batch.Records)
	s.observer.BatchServed(batch)
	return batch, nil
}

// Position reports the cursor position of the cached dataset, or -1 when
// nothing is cached.
func (s *Service) Position() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cursor == nil {
		return -1
	}
	return s.cursor.Position()
}

func (s *Service) load(ctx context.Context) (*Cursor, error) {
	ctx, span := tracing.StartInternalSpan(ctx, s.tracer, "replay.load")

	start := time.Now()
	ds, err := s.source.Load(ctx)
	elapsed := time.Since(start)
	s.observer.DatasetLoaded(ds.Len(), elapsed, err)
	tracing.EndSpan(span, err, attribute.Int("streamsim.dataset.records", ds.Len()))
	if err != nil {
		logger.Errorf("loading dataset: %v", err)
		return nil, errors.Annotate(err, "loading dataset")
	}

	logger.Infof("loaded dataset with %d records in %s", ds.Len(), elapsed)
	return NewCursor(ds, s.batch)
}
