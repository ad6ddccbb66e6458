package domain

import "errors"

var (
	// ErrNoOutput signals that an adapter returned without error but left no usable file.
	ErrNoOutput = errors.New("conversion produced no output")
	// ErrAllStrategiesFailed signals that every renderer in the chain failed.
	ErrAllStrategiesFailed = errors.New("all conversion strategies failed")
	// ErrUnsupportedMarkup signals that the document cannot be transformed into markup.
	ErrUnsupportedMarkup = errors.New("document cannot be converted to markup")
	// ErrUnsupportedType signals an upload whose MIME type is not accepted.
	ErrUnsupportedType = errors.New("unsupported file type")
	// ErrFileTooLarge signals an upload above the configured size limit.
	ErrFileTooLarge = errors.New("file too large")
	// ErrArtifactNotFound signals a download of an output that does not exist.
	ErrArtifactNotFound = errors.New("file not found")
	// ErrInvalidFilename signals a download name that is not a plain file name.
	ErrInvalidFilename = errors.New("invalid file name")

	// ErrTokenStoreNotReady signals that the token store has not been loaded yet.
	// This can happen during startup when the DB isn't ready.
	ErrTokenStoreNotReady = errors.New("token store not ready")
	// ErrInvalidAPIKey signals that the provided API key is not known.
	ErrInvalidAPIKey = errors.New("invalid api key")
)
