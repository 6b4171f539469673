package queue

import "errors"

var (
	ErrConfirmationRequired = errors.New("queue: removal must be confirmed")
	ErrAppointmentNotFound  = errors.New("queue: appointment not found")
	ErrAlreadyActive        = errors.New("queue: view already active")
)
