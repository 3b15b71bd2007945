package generator

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is returned when the request carries nothing to generate from.
	ErrValidation = errors.New("validation failed")
	// ErrUpstream wraps transport or API failures of the generation call.
	ErrUpstream = errors.New("generation api call failed")
	// ErrNoImage matches *EmptyResultError.
	ErrNoImage = errors.New("no image in generation response")
)

// EmptyResultError reports a response that carried no image part. Text holds
// whatever explanation the model returned.
type EmptyResultError struct {
	Text         string
	FinishReason string
}

func (e *EmptyResultError) Error() string {
	if e.FinishReason != "" {
		return fmt.Sprintf("%v (finish reason %s)", ErrNoImage, e.FinishReason)
	}
	return ErrNoImage.Error()
}

func (e *EmptyResultError) Is(target error) bool {
	return target == ErrNoImage
}
