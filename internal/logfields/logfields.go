package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyStoreID     = "store_id"
	KeyPath        = "path"
	KeyKind        = "kind"
	KeyPrevKind    = "previous_kind"
	KeyBatchSize   = "batch_size"
	KeyBatchID     = "batch_id"
	KeySubscribers = "subscribers"
	KeyPaths       = "paths"
	KeyComponent   = "component"
	KeyRenders     = "renders"
	KeyFile        = "file"
	KeyAddr        = "addr"
	KeySubject     = "subject"
	KeyDurationMS  = "duration_ms"
	KeyError       = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func StoreID(id string) slog.Attr     { return slog.String(KeyStoreID, id) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func Kind(k string) slog.Attr         { return slog.String(KeyKind, k) }
func PrevKind(k string) slog.Attr     { return slog.String(KeyPrevKind, k) }
func BatchSize(n int) slog.Attr       { return slog.Int(KeyBatchSize, n) }
func BatchID(id string) slog.Attr     { return slog.String(KeyBatchID, id) }
func Subscribers(n int) slog.Attr     { return slog.Int(KeySubscribers, n) }
func Paths(n int) slog.Attr           { return slog.Int(KeyPaths, n) }
func Component(c string) slog.Attr    { return slog.String(KeyComponent, c) }
func Renders(n uint64) slog.Attr      { return slog.Uint64(KeyRenders, n) }
func File(f string) slog.Attr         { return slog.String(KeyFile, f) }
func Addr(a string) slog.Attr         { return slog.String(KeyAddr, a) }
func Subject(s string) slog.Attr      { return slog.String(KeySubject, s) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
