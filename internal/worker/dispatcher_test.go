package worker

import (
	"context"
	"errors"
	"testing"

	"hucha/internal/events"
)

type stubSink struct {
	calls int
	err   error
}

func (s *stubSink) Notify(ctx context.Context, ev events.Event) error {
	s.calls++
	return s.err
}

func (s *stubSink) Export(ctx context.Context, ev events.Event) error {
	s.calls++
	return s.err
}

func TestDispatcherFanOut(t *testing.T) {
	notifier := &stubSink{}
	exporter := &stubSink{}
	d := NewDispatcher(notifier, exporter)

	ev := events.New(events.MovementCreated, 1)
	if err := d.Handle(context.Background(), ev); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if notifier.calls != 1 || exporter.calls != 1 {
		t.Fatalf("calls = %d/%d, want 1/1", notifier.calls, exporter.calls)
	}
}

func TestDispatcherNotifierFailureIsSwallowed(t *testing.T) {
	notifier := &stubSink{err: errors.New("discord down")}
	exporter := &stubSink{}
	d := NewDispatcher(notifier, exporter)

	if err := d.Handle(context.Background(), events.New(events.GoalReached, 1)); err != nil {
		t.Fatalf("Handle() error = %v, want nil", err)
	}
	if exporter.calls != 1 {
		t.Fatalf("exporter calls = %d, want 1", exporter.calls)
	}
}

func TestDispatcherExporterFailurePropagates(t *testing.T) {
	exporter := &stubSink{err: errors.New("sheets down")}
	d := NewDispatcher(nil, exporter)

	if err := d.Handle(context.Background(), events.New(events.MovementCreated, 1)); err == nil {
		t.Fatal("Handle() error = nil, want export failure")
	}
}

func TestDispatcherNoSinks(t *testing.T) {
	d := NewDispatcher(nil, nil)
	if err := d.Handle(context.Background(), events.New(events.MovementDeleted, 1)); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
}
