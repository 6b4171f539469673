package booking

import "errors"

var (
	ErrInvalidTransition = errors.New("booking: invalid transition")
	ErrSlotUnavailable   = errors.New("booking: time slot not offered by doctor")
	ErrInvalidDate       = errors.New("booking: date must be YYYY-MM-DD")
	ErrNotConfirmable    = errors.New("booking: doctor, date and time are required")
	ErrUnknownDoctor     = errors.New("booking: unknown doctor")
)
