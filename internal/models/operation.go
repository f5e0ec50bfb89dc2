package models

import "time"

// OperationKind identifies which executor produced a journal entry.
type OperationKind string

const (
	OperationSplit     OperationKind = "split"
	OperationCombine   OperationKind = "combine"
	OperationAssemble  OperationKind = "assemble"
	OperationRasterize OperationKind = "rasterize"
)

type OperationStatus string

const (
	OperationSucceeded OperationStatus = "succeeded"
	OperationFailed    OperationStatus = "failed"
)

// Operation is one executed request, recorded in the journal.
type Operation struct {
	ID         string          `json:"id"`
	ChatID     int64           `json:"chat_id"`
	Kind       OperationKind   `json:"kind"`
	Inputs     int             `json:"inputs"`
	Outputs    int             `json:"outputs"`
	Status     OperationStatus `json:"status"`
	Error      string          `json:"error,omitempty"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
}

// OperationStats aggregates journal entries per kind and status.
type OperationStats struct {
	Kind   OperationKind   `json:"kind"`
	Status OperationStatus `json:"status"`
	Count  int64           `json:"count"`
}
