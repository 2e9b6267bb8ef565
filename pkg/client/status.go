package client

import (
	"errors"
	"fmt"
)

// User-facing status messages.
const (
	MessageInvalidInput = "Please correct the errors above and try again."
	MessageConfirmed    = "Data submitted successfully! Saved as row #%d."
	MessageTimedOut     = "The server is taking longer than expected. Your submission was probably saved; please check the sheet before submitting again."
	MessageUnreachable  = "Submission failed: could not connect to the server. Please check your internet connection."
	MessageGeneric      = "There was an error submitting your information. Please try again."
)

// StatusMessage picks exactly one message for an attempt, most specific
// first: local validation, the server's own rejection, timeout, transport
// failure, then a generic fallback.
func StatusMessage(invalid bool, res *Result, err error) string {
	if invalid {
		return MessageInvalidInput
	}
	if res != nil {
		switch res.Outcome {
		case Confirmed:
			return fmt.Sprintf(MessageConfirmed, res.Row)
		case Rejected:
			if res.Message != "" {
				return res.Message
			}
		}
	}

	var te *TransportError
	if errors.As(err, &te) {
		if te.Timeout {
			return MessageTimedOut
		}
		return MessageUnreachable
	}
	return MessageGeneric
}
