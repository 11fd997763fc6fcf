package log

import "context"

// Noop discards everything. The zero value is ready to use.
type Noop struct{}

func (Noop) With(...any) Logger                           { return Noop{} }
func (Noop) Debug(context.Context, string, ...any)        {}
func (Noop) Info(context.Context, string, ...any)         {}
func (Noop) Warn(context.Context, string, ...any)         {}
func (Noop) Error(context.Context, error, string, ...any) {}
func (Noop) Sync() error                                  { return nil }

// Nop returns a no-op Logger.
func Nop() Logger { return Noop{} }
