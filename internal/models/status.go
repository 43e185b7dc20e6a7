package models

// SyncStatus is the connectivity/backlog snapshot exposed for UI display.
type SyncStatus struct {
	// PendingSync is the number of queued mutations not yet confirmed by
	// the remote store.
	PendingSync int `json:"pendingSync"`

	// Online reports the last observed connectivity state.
	Online bool `json:"isOnline"`
}
