// Package watchermodule detects filesystem changes under library roots,
// by native notification or by polling, and coalesces them into minimal
// scan requests.
package watchermodule

// ScanTarget describes the minimal scope of a rescan. An empty FolderPath
// denotes the entire library. Targets are ephemeral: constructed per scan
// request, never persisted.
type ScanTarget struct {
	LibraryID  uint32 `json:"library_id"`
	FolderPath string `json:"folder_path"`
}

// Dispatcher is the single write path through which coalesced change sets
// leave this package. The scan orchestrator implements it.
type Dispatcher interface {
	Dispatch(targets []ScanTarget)
}

// DispatcherFunc adapts a function to the Dispatcher interface.
type DispatcherFunc func(targets []ScanTarget)

// Dispatch calls f.
func (f DispatcherFunc) Dispatch(targets []ScanTarget) {
	f(targets)
}

// pendingChange identifies one detected change, held only in the
// debouncer's pending set between detection and flush.
type pendingChange struct {
	libraryID uint32
	relPath   string
}
