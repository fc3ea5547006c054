package app

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"courier-dispatch/internal/apperr"
	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/service/orders"
	"courier-dispatch/internal/transport/kafka"
)

type stubOrderDirectory struct {
	upsertErr   error
	canceledErr error
}

func (s *stubOrderDirectory) UpsertContext(context.Context, domain.OrderContext) error {
	return s.upsertErr
}

func (s *stubOrderDirectory) MarkCanceled(context.Context, string) error { return s.canceledErr }

func (s *stubOrderDirectory) MarkCompleted(context.Context, string) error { return nil }

type stubOrderDispatcher struct{ err error }

func (s *stubOrderDispatcher) TryReassign(context.Context, string) error { return s.err }

func readyEvent() orders.Event {
	return orders.Event{
		OrderID:    "ord-1",
		Status:     "ready_for_dispatch",
		PickupLat:  30.0444,
		PickupLng:  31.2357,
		DropoffLat: 30.0500,
		DropoffLng: 31.2400,
	}
}

func TestOrdersHandler_Success(t *testing.T) {
	t.Parallel()

	p := orders.NewProcessor(&stubOrderDirectory{}, &stubOrderDispatcher{}, nil)
	h := makeOrdersHandler(p)

	require.NoError(t, h(context.Background(), readyEvent()))
}

func TestOrdersHandler_ExpectedErrorComesBackPermanent(t *testing.T) {
	t.Parallel()

	dir := &stubOrderDirectory{canceledErr: apperr.ErrNotFound}
	p := orders.NewProcessor(dir, &stubOrderDispatcher{}, nil)
	h := makeOrdersHandler(p)

	err := h(context.Background(), orders.Event{OrderID: "ord-2", Status: "canceled"})
	require.Error(t, err)

	var perm kafka.PermanentError
	require.ErrorAs(t, err, &perm)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestOrdersHandler_InfrastructureErrorStaysRetryable(t *testing.T) {
	t.Parallel()

	sentinel := fmt.Errorf("db down")
	dir := &stubOrderDirectory{upsertErr: sentinel}
	p := orders.NewProcessor(dir, &stubOrderDispatcher{}, nil)
	h := makeOrdersHandler(p)

	err := h(context.Background(), readyEvent())
	require.ErrorIs(t, err, sentinel)

	var perm kafka.PermanentError
	require.False(t, errors.As(err, &perm))
}
