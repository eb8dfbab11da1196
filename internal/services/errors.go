package services

import (
	"errors"

	"detectx-service/internal/capture"
)

var (
	// ErrPermissionDenied means the camera or image file could not be opened for lack of access.
	ErrPermissionDenied = capture.ErrPermissionDenied
	// ErrFrameUnavailable means the frame source has not produced a frame yet or is closed.
	ErrFrameUnavailable = capture.ErrFrameUnavailable
	// ErrNetworkFailure covers transport errors and non-200 backend responses.
	ErrNetworkFailure = errors.New("network failure")
	// ErrBackendUnavailable means the last health probe did not report the backend online.
	ErrBackendUnavailable = errors.New("backend unavailable")
	// ErrMalformedResponse means the backend answered with a payload of unexpected shape.
	ErrMalformedResponse = errors.New("malformed response")
	// ErrDetectionRejected means the backend answered success=false.
	ErrDetectionRejected = errors.New("detection rejected")
	// ErrInvalidImage means an uploaded payload is not a decodable image or is too large.
	ErrInvalidImage = errors.New("invalid image")
)

// IsCycleLocal reports whether err is a per-cycle detection failure that the next tick recovers from.
func IsCycleLocal(err error) bool {
	return errors.Is(err, ErrNetworkFailure) ||
		errors.Is(err, ErrMalformedResponse) ||
		errors.Is(err, ErrDetectionRejected) ||
		errors.Is(err, ErrFrameUnavailable)
}
