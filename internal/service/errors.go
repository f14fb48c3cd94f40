package service

import (
	"context"
	"errors"
	"fmt"
)

var ErrValidation = errors.New("validation failed")

type State string

const (
	StateReceived        State = "received"
	StateValidated       State = "validated"
	StateBlobWritten     State = "blob_written"
	StateURLIssued       State = "url_issued"
	StateRecordPersisted State = "record_persisted"
	StateCompleted       State = "completed"
	StateFailed          State = "failed"
)

type Reason string

const (
	ReasonMissingFile   Reason = "MissingFile"
	ReasonBlobWrite     Reason = "BlobWriteError"
	ReasonURLIssue      Reason = "URLIssueError"
	ReasonRecordPersist Reason = "RecordPersistError"
	ReasonTimeout       Reason = "Timeout"
	ReasonCanceled      Reason = "Canceled"
)

var reasonMessages = map[Reason]string{
	ReasonMissingFile:   "No s'ha rebut cap fitxer",
	ReasonBlobWrite:     "Error en desar el fitxer",
	ReasonURLIssue:      "Error en generar l'URL de descàrrega",
	ReasonRecordPersist: "Error en desar l'entorn",
	ReasonTimeout:       "Temps d'espera esgotat",
	ReasonCanceled:      "Petició cancel·lada",
}

// Message is the user-facing text for the reason.
func (r Reason) Message() string {
	if msg, ok := reasonMessages[r]; ok {
		return msg
	}
	return string(r)
}

// IngestionError reports which step failed. State is the last state the
// pipeline reached before failing.
type IngestionError struct {
	Reason        Reason
	State         State
	StorageKey    string
	// Indeterminate is set when the blob write was cut short by the context,
	// so the blob may or may not exist under StorageKey.
	Indeterminate bool
	Err           error
}

func (e *IngestionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("ingestion %s after %s", e.Reason, e.State)
	}
	return fmt.Sprintf("ingestion %s after %s: %v", e.Reason, e.State, e.Err)
}

func (e *IngestionError) Unwrap() error {
	return e.Err
}

// Orphan reports whether a blob was written but no record references it.
func (e *IngestionError) Orphan() bool {
	return e.State == StateBlobWritten || e.State == StateURLIssued
}

// reasonFor maps context errors to Timeout or Canceled, anything else to fallback.
func reasonFor(err error, fallback Reason) Reason {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ReasonTimeout
	case errors.Is(err, context.Canceled):
		return ReasonCanceled
	default:
		return fallback
	}
}
