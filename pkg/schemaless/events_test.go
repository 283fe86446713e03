package schemaless

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ZuoMatthew/schemaless/pkg/domain"
)

func TestEventBusDispatchOrder(t *testing.T) {
	bus := newEventBus()

	var calls []string
	bus.register("users", func(int64, string, domain.Document) error {
		calls = append(calls, "users-1")
		return nil
	})
	bus.register("", func(int64, string, domain.Document) error {
		calls = append(calls, "global")
		return nil
	})
	bus.register("users", func(int64, string, domain.Document) error {
		calls = append(calls, "users-2")
		return nil
	})

	errs := bus.dispatch("users", 1, "col", "value")
	assert.Empty(t, errs)
	assert.Equal(t, []string{"users-1", "users-2", "global"}, calls)

	// A different keyspace only reaches the global handler.
	calls = nil
	bus.dispatch("pets", 1, "col", "value")
	assert.Equal(t, []string{"global"}, calls)
}

func TestEventBusCollectsFailures(t *testing.T) {
	bus := newEventBus()

	e1 := errors.New("first")
	e2 := errors.New("second")
	bus.register("users", func(int64, string, domain.Document) error { return e1 })
	bus.register("users", func(int64, string, domain.Document) error { return nil })
	bus.register("", func(int64, string, domain.Document) error { return e2 })

	errs := bus.dispatch("users", 1, "col", nil)
	assert.Equal(t, []error{e1, e2}, errs)
}
