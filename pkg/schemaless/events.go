package schemaless

import (
	"sync"

	"github.com/ZuoMatthew/schemaless/pkg/domain"
)

// eventBus keeps ordered handler lists per keyspace plus a global list.
// Dispatch is synchronous on the writer's goroutine; a failing handler never
// stops the remaining handlers, its error is collected instead.
type eventBus struct {
	mu     sync.RWMutex
	scoped map[string][]domain.HandlerFunc
	global []domain.HandlerFunc
}

func newEventBus() *eventBus {
	return &eventBus{
		scoped: make(map[string][]domain.HandlerFunc),
	}
}

// register appends fn to the handler list for keyspace; an empty keyspace
// name registers a global handler. Registration order is dispatch order
// within each list.
func (b *eventBus) register(keyspace string, fn domain.HandlerFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if keyspace == "" {
		b.global = append(b.global, fn)
		return
	}
	b.scoped[keyspace] = append(b.scoped[keyspace], fn)
}

// dispatch invokes every handler registered for keyspace, then every global
// handler, returning the collected failures.
func (b *eventBus) dispatch(keyspace string, rowKey int64, column string, value domain.Document) []error {
	b.mu.RLock()
	handlers := make([]domain.HandlerFunc, 0, len(b.scoped[keyspace])+len(b.global))
	handlers = append(handlers, b.scoped[keyspace]...)
	handlers = append(handlers, b.global...)
	b.mu.RUnlock()

	var errs []error
	for _, fn := range handlers {
		if err := fn(rowKey, column, value); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}
