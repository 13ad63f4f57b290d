package profile

import "fmt"

// ValidationError reports a profile file violating structural
// requirements (missing required fields, unknown method, invalid
// version number).
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}
