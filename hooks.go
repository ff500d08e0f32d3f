package sawitdb

import "github.com/rs/zerolog"

// Hooks is the capability set of post-commit observers fired after each
// committed operation. Hooks are invoked synchronously after the mutation
// completes and before Query returns; implementations must not mutate
// database state, and any panic a hook raises is recovered and logged by
// the executor rather than allowed to corrupt the preceding mutation.
type Hooks interface {
	OnTableCreated(name string, entry CatalogEntry, rawQuery string)
	OnTableDropped(name string, entry CatalogEntry, rawQuery string)
	OnTableInserted(table string, records []Record, rawQuery string)
	OnTableUpdated(table string, records []Record, rawQuery string)
	OnTableDeleted(table string, records []Record, rawQuery string)
	OnTableSelected(table string, records []Record, rawQuery string)
}

// NoopHooks is the default Hooks implementation: it observes nothing.
type NoopHooks struct{}

func (NoopHooks) OnTableCreated(string, CatalogEntry, string) {}
func (NoopHooks) OnTableDropped(string, CatalogEntry, string) {}
func (NoopHooks) OnTableInserted(string, []Record, string)    {}
func (NoopHooks) OnTableUpdated(string, []Record, string)     {}
func (NoopHooks) OnTableDeleted(string, []Record, string)     {}
func (NoopHooks) OnTableSelected(string, []Record, string)    {}

// fireHook runs fn, recovering and logging a panic rather than letting it
// propagate past the mutation that already committed.
func fireHook(logger zerolog.Logger, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Warn().Interface("panic", r).Msg("hook panicked")
		}
	}()
	fn()
}
