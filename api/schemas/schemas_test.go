package schemas_test

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/webpilot/api/schemas"
)

// TestStructJSONTags uses reflection to verify the wire names of the event
// payloads. External callers depend on these exact spellings.
func TestStructJSONTags(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name         string
		structRef    interface{}
		expectedTags map[string]string
	}{
		{
			name:      "PositionRequest",
			structRef: schemas.PositionRequest{},
			expectedTags: map[string]string{
				"SelectorType":   "selectorType",
				"SelectorValue":  "selectorValue",
				"ShouldClick":    "shouldClick,omitempty",
				"RawCoordinates": "rawCoordinates,omitempty",
			},
		},
		{
			name:      "TypeRequest",
			structRef: schemas.TypeRequest{},
			expectedTags: map[string]string{
				"SelectorType":  "selectorType",
				"SelectorValue": "selectorValue",
				"Text":          "text",
				"DelayMs":       "delayMs,omitempty",
			},
		},
		{
			name:      "PositionResult",
			structRef: schemas.PositionResult{},
			expectedTags: map[string]string{
				"X":           "x",
				"Y":           "y",
				"Element":     "element",
				"Clicked":     "clicked",
				"ClickResult": "clickResult,omitempty",
				"Debug":       "debug",
			},
		},
		{
			name:      "PositionDebug",
			structRef: schemas.PositionDebug{},
			expectedTags: map[string]string{
				"ElementRect":    "elementRect",
				"ViewportCenter": "viewportCenter",
				"DocumentCenter": "documentCenter",
				"Window":         "window",
				"Diagnostics":    "diagnostics,omitempty",
			},
		},
		{
			name:      "TypedElement",
			structRef: schemas.TypedElement{},
			expectedTags: map[string]string{
				"Tag":        "tag",
				"Classes":    "classes",
				"ID":         "id",
				"Type":       "type,omitempty",
				"Text":       "text",
				"IsEditable": "isEditable",
			},
		},
		{
			name:      "PositionCommand",
			structRef: schemas.PositionCommand{},
			expectedTags: map[string]string{
				"SelectorType":   "selector_type",
				"SelectorValue":  "selector_value",
				"ShouldClick":    "should_click,omitempty",
				"RawCoordinates": "raw_coordinates,omitempty",
			},
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			typ := reflect.TypeOf(tc.structRef)
			for field, want := range tc.expectedTags {
				f, ok := typ.FieldByName(field)
				require.True(t, ok, "field %s missing", field)
				assert.Equal(t, want, f.Tag.Get("json"), "json tag for %s", field)
			}
		})
	}
}

func TestResponseEnvelope(t *testing.T) {
	t.Parallel()

	ok, err := json.Marshal(schemas.OK(map[string]string{}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true,"data":{}}`, string(ok))

	failed, err := json.Marshal(schemas.Fail(errors.New("boom")))
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":false,"error":"boom"}`, string(failed))

	assert.Equal(t, "unknown error occurred", schemas.Fail(nil).Error)

	withData := schemas.FailWithData(errors.New("x"), schemas.ScriptResult{Type: "error", Error: "x"})
	b, err := json.Marshal(withData)
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":false,"error":"x","data":{"result":"","type":"error","error":"x"}}`, string(b))

	tagged, err := json.Marshal(schemas.CommandResponse{Response: schemas.OK("pong"), RequestID: "r1"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true,"data":"pong","request_id":"r1"}`, string(tagged))
}

func TestRawResponseDecode(t *testing.T) {
	t.Parallel()
	var raw schemas.RawResponse
	require.NoError(t, json.Unmarshal([]byte(`{"success":true,"data":{"result":"2","type":"number"}}`), &raw))

	var res schemas.ScriptResult
	require.NoError(t, raw.DecodeInto(&res))
	assert.Equal(t, schemas.ScriptResult{Result: "2", Type: "number"}, res)

	assert.Error(t, schemas.RawResponse{}.DecodeInto(&res))
}

func TestParseSelectorKind(t *testing.T) {
	t.Parallel()
	for _, k := range schemas.SelectorKinds {
		got, err := schemas.ParseSelectorKind(string(k))
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}

	got, err := schemas.ParseSelectorKind("  TEXT ")
	require.NoError(t, err)
	assert.Equal(t, schemas.SelectorText, got)

	_, err = schemas.ParseSelectorKind("xpath")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "xpath")
}

func TestLooseString(t *testing.T) {
	t.Parallel()
	var req schemas.StorageRequest
	require.NoError(t, json.Unmarshal([]byte(`{"action":"set","key":"k","value":{"a": [1, 2]}}`), &req))
	require.NotNil(t, req.Key)
	require.NotNil(t, req.Value)
	assert.Equal(t, "k", string(*req.Key))
	assert.Equal(t, `{"a":[1,2]}`, string(*req.Value))

	var bare schemas.StorageRequest
	require.NoError(t, json.Unmarshal([]byte(`{"action":"get","key":null}`), &bare))
	assert.Nil(t, bare.Key)
	assert.Nil(t, bare.Value)
}

func TestParseWindowLabel(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name    string
		raw     string
		want    string
		wantErr string
	}{
		{name: "empty", raw: "", want: "main"},
		{name: "null", raw: "null", want: "main"},
		{name: "string", raw: `"settings"`, want: "settings"},
		{name: "object", raw: `{"window_label":"main"}`, want: "main"},
		{name: "object missing label", raw: `{"other":1}`, wantErr: "missing or invalid window_label"},
		{name: "number", raw: `42`, wantErr: "expected string or object"},
	}
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := schemas.ParseWindowLabel(json.RawMessage(tc.raw))
			if tc.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseDOMFormat(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "", schemas.ParseDOMFormat(nil))
	assert.Equal(t, "", schemas.ParseDOMFormat(json.RawMessage(`"main"`)))
	assert.Equal(t, "", schemas.ParseDOMFormat(json.RawMessage(`{"window_label":"main"}`)))
	assert.Equal(t, "markdown", schemas.ParseDOMFormat(json.RawMessage(`{"window_label":"main","format":"markdown"}`)))
}

func TestTypeCommandDelay(t *testing.T) {
	t.Parallel()
	var cmd schemas.TypeCommand
	require.NoError(t, json.Unmarshal([]byte(`{"window_label":"main","selector_type":"id","selector_value":"q","text":"hi"}`), &cmd))
	assert.Equal(t, schemas.DefaultDelayMs, cmd.Delay())
	assert.Equal(t, "main", cmd.Label())

	zero := 0
	cmd.DelayMs = &zero
	assert.Equal(t, 0, cmd.Delay())
}

func TestGeometryHelpers(t *testing.T) {
	t.Parallel()
	r := schemas.Rect{Left: 10, Top: 20, Width: 100, Height: 40, Right: 110, Bottom: 60}
	assert.Equal(t, schemas.Point{X: 60, Y: 40}, r.Center())
	w := schemas.WindowMetrics{ScrollX: -5, ScrollY: 300}
	assert.Equal(t, schemas.Point{X: 55, Y: 340}, r.Center().Add(w.Scroll()))
	assert.Equal(t, "get-dom-content-response", schemas.ResponseEvent(schemas.EventGetDOMContent))
}
