package models

import (
	"encoding/json"
	"time"
)

// BackupKind names an ordered backup list in the key-value store.
type BackupKind string

const (
	BackupRecordings BackupKind = "grabaciones"
	BackupClients    BackupKind = "clientes"
)

// BackupEnvelope is one record that failed to reach the structured store.
type BackupEnvelope struct {
	Payload json.RawMessage `json:"payload"`
	TS      time.Time       `json:"ts"`
}
