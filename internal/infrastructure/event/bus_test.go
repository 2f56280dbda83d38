package event

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/erp/directdebit/internal/domain/directdebit"
	"github.com/erp/directdebit/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testHandler struct {
	eventTypes []string
	handled    []shared.DomainEvent
	err        error
	panics     bool
	mu         sync.Mutex
}

func newTestHandler(eventTypes ...string) *testHandler {
	return &testHandler{eventTypes: eventTypes}
}

func (h *testHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handled = append(h.handled, event)
	if h.panics {
		panic("audit sink unavailable")
	}
	return h.err
}

func (h *testHandler) EventTypes() []string {
	return h.eventTypes
}

func (h *testHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.handled)
}

func testMandate(t *testing.T) *directdebit.Mandate {
	t.Helper()
	m, err := directdebit.NewMandate(uuid.New(), "MND-2025-001", "Jansen BV", directdebit.MandateTypeRecurrent)
	require.NoError(t, err)
	return m
}

func TestInMemoryEventBus_Publish(t *testing.T) {
	ctx := context.Background()
	m := testMandate(t)
	validated := directdebit.NewMandateValidatedEvent(m)
	cancelled := directdebit.NewMandateCancelledEvent(m)

	t.Run("delivers by event type", func(t *testing.T) {
		bus := NewInMemoryEventBus(zap.NewNop())
		onValidated := newTestHandler(directdebit.EventTypeMandateValidated)
		onCancelled := newTestHandler(directdebit.EventTypeMandateCancelled)
		bus.Subscribe(onValidated)
		bus.Subscribe(onCancelled)

		require.NoError(t, bus.Publish(ctx, validated, validated))
		assert.Equal(t, 2, onValidated.count())
		assert.Equal(t, 0, onCancelled.count())
	})

	t.Run("handler without types receives everything", func(t *testing.T) {
		bus := NewInMemoryEventBus(nil)
		all := newTestHandler()
		bus.Subscribe(all)

		require.NoError(t, bus.Publish(ctx, validated, cancelled))
		assert.Equal(t, 2, all.count())
	})

	t.Run("explicit types override the handler's own", func(t *testing.T) {
		bus := NewInMemoryEventBus(nil)
		h := newTestHandler(directdebit.EventTypeMandateValidated)
		bus.Subscribe(h, directdebit.EventTypeMandateCancelled)

		require.NoError(t, bus.Publish(ctx, validated, cancelled))
		assert.Equal(t, 1, h.count())
	})

	t.Run("failing and panicking handlers do not stop delivery", func(t *testing.T) {
		bus := NewInMemoryEventBus(nil)
		failing := newTestHandler(directdebit.EventTypeMandateValidated)
		failing.err = errors.New("disk full")
		panicking := newTestHandler(directdebit.EventTypeMandateValidated)
		panicking.panics = true
		healthy := newTestHandler(directdebit.EventTypeMandateValidated)
		bus.Subscribe(failing)
		bus.Subscribe(panicking)
		bus.Subscribe(healthy)

		require.NoError(t, bus.Publish(ctx, validated))
		assert.Equal(t, 1, healthy.count())
		assert.Equal(t, Stats{Published: 1, Delivered: 1, Failed: 2}, bus.Stats())
	})
}

func TestInMemoryEventBus_Unsubscribe(t *testing.T) {
	ctx := context.Background()
	bus := NewInMemoryEventBus(nil)
	h := newTestHandler(directdebit.EventTypeMandateValidated, directdebit.EventTypeMandateCancelled)
	all := newTestHandler()
	bus.Subscribe(h)
	bus.Subscribe(all)

	m := testMandate(t)
	require.NoError(t, bus.Publish(ctx, directdebit.NewMandateValidatedEvent(m)))
	bus.Unsubscribe(h)
	bus.Unsubscribe(all)
	require.NoError(t, bus.Publish(ctx, directdebit.NewMandateCancelledEvent(m)))

	assert.Equal(t, 1, h.count())
	assert.Equal(t, 1, all.count())
	assert.Empty(t, bus.handlers)
}

func TestInMemoryEventBus_StartStop(t *testing.T) {
	ctx := context.Background()
	bus := NewInMemoryEventBus(zap.NewNop())
	require.NoError(t, bus.Start(ctx))
	require.NoError(t, bus.Stop(ctx))
	require.NoError(t, bus.Stop(ctx))
}
