package employee

import "context"

// Store is the storage contract shared by the memory, SQLite and Postgres
// engines. Implementations own atomicity: Update and ApplyIncrementRule must
// commit all of their writes or none of them.
type Store interface {
	// List returns every record. Order is engine-defined.
	List(ctx context.Context) ([]Record, error)
	// Insert adds rec or returns ErrConflict if the name is taken.
	Insert(ctx context.Context, rec Record) error
	// Update renames originalName to newName and sets its value. It returns
	// ErrNotFound when originalName is absent and ErrConflict when newName
	// belongs to a different record.
	Update(ctx context.Context, originalName, newName string, value int64) error
	// Delete removes name or returns ErrNotFound.
	Delete(ctx context.Context, name string) error
	// ApplyIncrementRule adds Classify(name).Delta() to every record and
	// reports how many rows changed.
	ApplyIncrementRule(ctx context.Context) (int64, error)
	// GroupedSum evaluates q against the stored rows.
	GroupedSum(ctx context.Context, q GroupQuery) ([]GroupTotal, error)
	// Ping reports whether the engine is reachable.
	Ping(ctx context.Context) error
	// Close releases engine resources.
	Close() error
}
