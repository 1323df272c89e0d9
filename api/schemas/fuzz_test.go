package schemas_test

import (
	"encoding/json"
	"testing"
	"unicode/utf8"

	fuzz "github.com/AdaLogics/go-fuzz-headers"
	"github.com/google/go-cmp/cmp"

	"github.com/xkilldash9x/webpilot/api/schemas"
)

// FuzzParseWindowLabel checks that any payload either yields a usable label
// or an error, and that string payloads are taken verbatim.
func FuzzParseWindowLabel(f *testing.F) {
	for _, seed := range []string{``, `null`, `"main"`, `""`, `{"window_label":"settings"}`, `{"window_label":1}`, `[1]`, `{`} {
		f.Add([]byte(seed))
	}
	f.Fuzz(func(t *testing.T, data []byte) {
		label, err := schemas.ParseWindowLabel(json.RawMessage(data))
		if err != nil {
			return
		}
		if label == "" {
			t.Fatalf("empty label for payload %q", data)
		}
		var s string
		if json.Unmarshal(data, &s) == nil && s != "" && label != s {
			t.Fatalf("string payload %q resolved to %q", s, label)
		}
	})
}

// FuzzTypeCommand_Structured fills a send_text_to_element payload from fuzzed
// bytes and checks that it survives the wire unchanged.
func FuzzTypeCommand_Structured(f *testing.F) {
	f.Fuzz(func(t *testing.T, data []byte) {
		consumer := fuzz.NewConsumer(data)
		var cmd schemas.TypeCommand
		if err := consumer.GenerateStruct(&cmd); err != nil {
			return
		}
		// encoding/json replaces invalid UTF-8, which is not a round trip.
		for _, s := range []string{cmd.WindowLabel, cmd.SelectorType, cmd.SelectorValue, cmd.Text} {
			if !utf8.ValidString(s) {
				return
			}
		}

		wire, err := json.Marshal(cmd)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		var got schemas.TypeCommand
		if err := json.Unmarshal(wire, &got); err != nil {
			t.Fatalf("unmarshal %s: %v", wire, err)
		}
		if diff := cmp.Diff(cmd, got); diff != "" {
			t.Errorf("payload changed on the wire (-sent +received):\n%s", diff)
		}
		if cmd.DelayMs == nil && got.Delay() != schemas.DefaultDelayMs {
			t.Errorf("missing delay_ms resolved to %d", got.Delay())
		}
	})
}
