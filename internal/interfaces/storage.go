// -----------------------------------------------------------------------
// Last Modified: Tuesday, 14th July 2026 9:21:44 am
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package interfaces

import "context"

// StorageManager - composite interface for all storage operations
type StorageManager interface {
	KeyValueStorage() KeyValueStorage
	BenchmarkStorage() BenchmarkStorage

	// LoadEnvFile seeds the KV store from a .env file. Missing files are
	// skipped silently.
	LoadEnvFile(ctx context.Context, filePath string) error

	// Maintain runs a storage housekeeping pass. Long-running processes
	// call it periodically; one-shot runs can skip it.
	Maintain(ctx context.Context) error

	DB() interface{}
	Close() error
}
