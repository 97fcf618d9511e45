// Package hooks provides typed subscriptions to host record events.
package hooks

import (
	"context"
	"sync"

	"github.com/kilupskalvis/entryrev/internal/models"
)

// AfterUpdate is delivered once a record update has been written
type AfterUpdate struct {
	FormID   string
	RecordID string
	Previous *models.Record // state before the update
}

// AfterUpdateFunc handles an AfterUpdate event
type AfterUpdateFunc func(ctx context.Context, ev AfterUpdate)

// MetaColumnsFunc extends the list of metadata columns shown by the host
type MetaColumnsFunc func(cols []models.MetaColumn) []models.MetaColumn

// Bus dispatches host events to registered handlers in registration order.
type Bus struct {
	mu          sync.Mutex
	afterUpdate []AfterUpdateFunc
	metaColumns []MetaColumnsFunc
	suppressed  int
}

// NewBus creates an empty Bus
func NewBus() *Bus {
	return &Bus{}
}

// OnAfterUpdate registers fn for AfterUpdate events
func (b *Bus) OnAfterUpdate(fn AfterUpdateFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.afterUpdate = append(b.afterUpdate, fn)
}

// OnMetaColumns registers a metadata column contribution
func (b *Bus) OnMetaColumns(fn MetaColumnsFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.metaColumns = append(b.metaColumns, fn)
}

// EmitAfterUpdate calls every AfterUpdate handler unless delivery is suppressed
func (b *Bus) EmitAfterUpdate(ctx context.Context, ev AfterUpdate) {
	b.mu.Lock()
	if b.suppressed > 0 {
		b.mu.Unlock()
		return
	}
	handlers := make([]AfterUpdateFunc, len(b.afterUpdate))
	copy(handlers, b.afterUpdate)
	b.mu.Unlock()

	for _, fn := range handlers {
		fn(ctx, ev)
	}
}

// MetaColumns runs base through every registered contribution
func (b *Bus) MetaColumns(base []models.MetaColumn) []models.MetaColumn {
	b.mu.Lock()
	fns := make([]MetaColumnsFunc, len(b.metaColumns))
	copy(fns, b.metaColumns)
	b.mu.Unlock()

	cols := base
	for _, fn := range fns {
		cols = fn(cols)
	}
	return cols
}

// Suppress stops AfterUpdate delivery until the returned release func is
// called. Suppressions nest; release is safe to call more than once.
func (b *Bus) Suppress() (release func()) {
	b.mu.Lock()
	b.suppressed++
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			b.suppressed--
			b.mu.Unlock()
		})
	}
}

// Suppressed reports whether delivery is currently suppressed
func (b *Bus) Suppressed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.suppressed > 0
}
