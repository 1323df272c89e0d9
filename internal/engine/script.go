package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/webpilot/api/schemas"
	"github.com/xkilldash9x/webpilot/internal/browser/dom"
)

// The trailing newline keeps a final line comment in code from swallowing
// the closing tokens.
const (
	expressionWrapper = "(function(){ return (%s\n); })()"
	statementWrapper  = "(function(){ %s\n })()"
)

// ExecuteJS evaluates code first as an expression and, if that fails, as a
// statement block. A script error yields a result of type "error" alongside
// the returned error; transport failures return only the error.
func (e *Engine) ExecuteJS(ctx context.Context, page dom.Scripting, code string) (schemas.ScriptResult, error) {
	res, err := page.Evaluate(ctx, wrap(expressionWrapper, code))
	if err != nil {
		var evalErr *dom.EvalError
		if !errors.As(err, &evalErr) {
			return schemas.ScriptResult{}, err
		}
		e.logger.Debug("Expression form failed, retrying as statements.", zap.String("reason", evalErr.Message))
		res, err = page.Evaluate(ctx, wrap(statementWrapper, code))
	}
	if err != nil {
		if !errors.As(err, new(*dom.EvalError)) {
			return schemas.ScriptResult{}, err
		}
		return schemas.ScriptResult{Result: "", Type: "error", Error: err.Error()}, err
	}
	return schemas.ScriptResult{Result: stringify(res), Type: res.Type}, nil
}

// wrap avoids Sprintf, which would interpret % sequences inside code.
func wrap(format, code string) string {
	return strings.Replace(format, "%s", code, 1)
}

// stringify renders a script value as text. Strings come back bare, objects
// as JSON, and anything not serializable falls back to its description.
func stringify(res dom.EvalResult) string {
	switch res.Type {
	case "undefined":
		return "undefined"
	case "object":
		if res.Subtype == "null" {
			return "null"
		}
	case "string":
		var s string
		if err := json.Unmarshal(res.JSON, &s); err == nil {
			return s
		}
		return res.Description
	}
	if len(res.JSON) > 0 && string(res.JSON) != "null" {
		var buf bytes.Buffer
		if err := json.Compact(&buf, res.JSON); err == nil {
			return buf.String()
		}
		return string(res.JSON)
	}
	return res.Description
}
