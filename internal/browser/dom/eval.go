// browser/dom/eval.go
package dom

import (
	"encoding/json"
	"fmt"
)

// EvalResult is a script result as reported by the runtime.
type EvalResult struct {
	// Type is the result's typeof: "number", "string", "object", "undefined", ...
	Type string
	// Subtype refines objects: "null", "array", "error", ...
	Subtype string
	// JSON is the result serialized by value, empty when it was not serializable.
	JSON json.RawMessage
	// Description is the runtime's own string form.
	Description string
}

// EvalError is a script that threw (or rejected).
type EvalError struct {
	Message string
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("script error: %s", e.Message)
}
