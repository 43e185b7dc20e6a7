package models

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Operation classifies a queued local mutation.
type Operation string

const (
	OperationCreate Operation = "create"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
)

// Valid reports whether op is one of the known operations.
func (op Operation) Valid() bool {
	switch op {
	case OperationCreate, OperationUpdate, OperationDelete:
		return true
	}
	return false
}

// QueueItem is one pending outbound mutation in the sync queue.
//
// For create/update, Data is the full record payload; for delete it carries
// at minimum the record id. Items are processed in ascending Timestamp order.
type QueueItem struct {
	ID         string          `json:"id"`
	Collection string          `json:"collection"`
	Operation  Operation       `json:"operation"`
	RecordID   string          `json:"recordId"`
	Data       json.RawMessage `json:"data"`
	Timestamp  int64           `json:"timestamp"`
	Retries    int             `json:"retries"`
}

// DeadLetterItem is an abandoned queue item moved to the dead-letter
// partition after exhausting its retries. It stays inspectable and
// replayable instead of being destroyed.
type DeadLetterItem struct {
	QueueItem
	Reason      string `json:"reason"`
	AbandonedAt int64  `json:"abandonedAt"`
}

// NewQueueItemID builds a queue item identifier of the form
// {collection}_{operation}_{timestamp}_{random}: unique, and roughly
// chronologically orderable when sorted lexically within one collection.
func NewQueueItemID(collection string, op Operation, timestamp int64) string {
	random := strings.SplitN(uuid.NewString(), "-", 2)[0]
	return fmt.Sprintf("%s_%s_%d_%s", collection, op, timestamp, random)
}
