package domain

import "errors"

// Domain Errors
var (
	// ErrMalformedFrame is returned by the classifier for frames it cannot read.
	// Callers drop the frame and move on.
	ErrMalformedFrame = errors.New("malformed frame")

	// ErrInsufficientData means a batch step needs more observations before it
	// can run. It is not fatal; retry once more traffic has been seen.
	ErrInsufficientData = errors.New("not enough data yet")

	// ErrModelNotTrained is returned when scoring is attempted before a successful fit.
	ErrModelNotTrained = errors.New("anomaly model not trained")

	// ErrFeatureSchemaMismatch is returned when a restored model was trained on a
	// different feature column set than the one being scored.
	ErrFeatureSchemaMismatch = errors.New("feature columns do not match trained model")

	// ErrPersistence wraps load/save failures of model bundles and exports.
	ErrPersistence = errors.New("persistence failure")

	// ErrAcquisitionStart wraps failures to open the capture source.
	ErrAcquisitionStart = errors.New("acquisition start failure")

	// ErrBundleNotFound is returned by bundle stores when no bundle was saved under a name.
	ErrBundleNotFound = errors.New("model bundle not found")
)
