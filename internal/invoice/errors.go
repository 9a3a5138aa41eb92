package invoice

import "errors"

var (
	// ErrDownloadFailed indicates the document download did not succeed
	// within the bounded number of attempts.
	ErrDownloadFailed = errors.New("invoice download failed after all attempts")

	// ErrMissingDocument indicates a full submission was requested
	// without a downloaded document. This is an internal consistency
	// error, not a remote failure.
	ErrMissingDocument = errors.New("full submission requires a downloaded document")

	// errModalDetected and errPollTimeout classify a single failed
	// download attempt.
	errModalDetected = errors.New("error modal detected during download")
	errPollTimeout   = errors.New("download not detected within polling ceiling")
)
