package chain

// Checkpointer is implemented by every component store. The engine
// checkpoints all stores before running an entry point and restores
// them if any step fails, which gives each call transactional
// semantics: every effect applies, or none does.
type Checkpointer interface {
	// Checkpoint returns an opaque deep copy of the store's state.
	Checkpoint() any

	// Restore replaces the store's state with a value previously
	// returned by Checkpoint on the same store.
	Restore(snapshot any)
}

// CheckpointAll snapshots a set of stores in order.
func CheckpointAll(stores []Checkpointer) []any {
	snaps := make([]any, len(stores))
	for i, s := range stores {
		snaps[i] = s.Checkpoint()
	}
	return snaps
}

// RestoreAll restores snapshots taken by CheckpointAll.
func RestoreAll(stores []Checkpointer, snaps []any) {
	for i, s := range stores {
		s.Restore(snaps[i])
	}
}
