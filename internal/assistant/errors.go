package assistant

import "errors"

var (
	ErrTaskNotFound       = errors.New("assistant: task not found")
	ErrUnsupportedImage   = errors.New("assistant: unsupported image type")
	ErrEmptyImage         = errors.New("assistant: image is empty")
	ErrEmptyMessage       = errors.New("assistant: message is empty")
	ErrEmptyReply         = errors.New("assistant: model returned an empty reply")
	ErrMalformedAnalysis  = errors.New("assistant: model returned a malformed analysis")
	ErrModelNotConfigured = errors.New("assistant: no model configured")
)
