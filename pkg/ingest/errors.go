package ingest

import "errors"

// ErrIngestFailed is returned when an ingest fails before its first
// successful chunk. A partial ingest — at least one chunk succeeded — is
// never reported this way; its Result is returned alongside a nil error
// instead.
var ErrIngestFailed = errors.New("ingest failed before first successful chunk")

// ErrInvalidPDF is returned when the uploaded file cannot be parsed as a
// PDF at all, distinct from ErrIngestFailed's later, extraction-stage
// failures.
var ErrInvalidPDF = errors.New("uploaded file is not a valid PDF")
