package textbook

import "errors"

var (
	// ErrNoChapter indicates no chapter heading could be detected in the
	// extracted text.
	ErrNoChapter = errors.New("no chapter detected")

	// ErrNotFound indicates the requested textbook record does not exist.
	ErrNotFound = errors.New("textbook not found")

	// ErrEmptyUpload indicates an upload with no content.
	ErrEmptyUpload = errors.New("empty upload")

	// ErrRetryUnsupported indicates the processing pipeline cannot requeue
	// work; retry only resets the record status.
	ErrRetryUnsupported = errors.New("retry does not requeue processing")
)
