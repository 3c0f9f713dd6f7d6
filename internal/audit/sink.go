package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Moadams/ProjectTracker/internal/ids"
	"github.com/Moadams/ProjectTracker/internal/obs"
	"github.com/Moadams/ProjectTracker/internal/worker"
)

const (
	taskName           = "audit.append"
	defaultSyncTimeout = 2 * time.Second
	defaultTaskTimeout = 30 * time.Second
)

// Sink appends audit records without ever failing the caller. Persistence
// errors go to the operator log and are not retried.
type Sink struct {
	store       Store
	dispatch    worker.Submitter
	now         func() time.Time
	syncTimeout time.Duration
	taskTimeout time.Duration
}

// SinkOption configures Sink behavior.
type SinkOption func(*Sink)

// WithClock overrides time source (useful for tests).
func WithClock(fn func() time.Time) SinkOption {
	return func(s *Sink) {
		if fn != nil {
			s.now = fn
		}
	}
}

// WithSyncTimeout bounds AppendNow.
func WithSyncTimeout(d time.Duration) SinkOption {
	return func(s *Sink) {
		if d > 0 {
			s.syncTimeout = d
		}
	}
}

// WithTaskTimeout bounds each detached append.
func WithTaskTimeout(d time.Duration) SinkOption {
	return func(s *Sink) {
		if d > 0 {
			s.taskTimeout = d
		}
	}
}

// NewSink builds a sink over store. A nil dispatch runs appends on their own goroutine.
func NewSink(store Store, dispatch worker.Submitter, opts ...SinkOption) *Sink {
	if dispatch == nil {
		dispatch = worker.Detached{}
	}
	s := &Sink{
		store:       store,
		dispatch:    dispatch,
		now:         time.Now,
		syncTimeout: defaultSyncTimeout,
		taskTimeout: defaultTaskTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Append snapshots e now and persists it in the background.
func (s *Sink) Append(ctx context.Context, e Entry) {
	if s == nil || s.store == nil {
		return
	}
	rec := s.snapshot(ctx, e)
	task := worker.Task{
		Name:    taskName,
		Timeout: s.taskTimeout,
		Run:     func(ctx context.Context) error { return s.persist(ctx, rec) },
		Fields:  recordFields(rec),
	}
	s.dispatch.Submit(task)
}

// AppendNow attempts the write before returning, bounded by the sync timeout.
// Failures are logged and swallowed.
func (s *Sink) AppendNow(ctx context.Context, e Entry) {
	if s == nil || s.store == nil {
		return
	}
	rec := s.snapshot(ctx, e)
	if ctx == nil {
		ctx = context.Background()
	}
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.syncTimeout)
	defer cancel()
	if err := s.persist(wctx, rec); err != nil {
		obs.Logger().Warn("audit append failed", append(recordFields(rec), zap.Error(err))...)
	}
}

func (s *Sink) persist(ctx context.Context, rec *Record) error {
	err := s.store.Append(ctx, rec)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	obs.ObserveAudit(string(rec.Action), outcome)
	return err
}

func (s *Sink) snapshot(ctx context.Context, e Entry) *Record {
	ts := s.now().UTC()
	rec := &Record{
		ID:         ids.NewAt(ts),
		Action:     e.Action,
		EntityType: e.EntityType,
		Actor:      strings.TrimSpace(e.Actor),
		RequestID:  requestIDFromContext(ctx),
		Timestamp:  ts,
	}
	if rec.Actor == "" {
		rec.Actor = ActorFromContext(ctx)
	}
	if id := strings.TrimSpace(e.EntityID); id != "" {
		rec.EntityID = &id
	}
	rec.Payload = encodePayload(e.Payload)
	return rec
}

func encodePayload(v any) json.RawMessage {
	switch p := v.(type) {
	case nil:
		return nil
	case json.RawMessage:
		return append(json.RawMessage(nil), p...)
	case []byte:
		if json.Valid(p) {
			return append(json.RawMessage(nil), p...)
		}
		v = string(p)
	}
	data, err := json.Marshal(v)
	if err != nil {
		obs.Logger().Warn("audit payload not serializable", zap.String("type", fmt.Sprintf("%T", v)), zap.Error(err))
		data, _ = json.Marshal(map[string]string{"unserializable": fmt.Sprintf("%T", v)})
	}
	return data
}

func recordFields(rec *Record) []zap.Field {
	fields := []zap.Field{
		zap.String("audit_id", rec.ID),
		zap.String("action", string(rec.Action)),
		zap.String("entity_type", string(rec.EntityType)),
		zap.String("actor", rec.Actor),
	}
	if rec.EntityID != nil {
		fields = append(fields, zap.String("entity_id", *rec.EntityID))
	}
	if rec.RequestID != "" {
		fields = append(fields, zap.String("request_id", rec.RequestID))
	}
	return fields
}
