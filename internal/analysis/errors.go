package analysis

import "fmt"

// MalformedOutputError reports a completion that returned successfully but
// could not be parsed into the expected shape. It is never retried with the
// same prompt: resending an identical prompt to an identical model is
// unlikely to change the outcome.
type MalformedOutputError struct {
	Stage  string // which pipeline stage produced the output
	Reason string
}

func (e *MalformedOutputError) Error() string {
	return fmt.Sprintf("malformed model output in %s stage: %s", e.Stage, e.Reason)
}
