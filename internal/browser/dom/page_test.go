// browser/dom/page_test.go
package dom

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xkilldash9x/webpilot/api/schemas"
)

func TestElementIsTextControl(t *testing.T) {
	testCases := []struct {
		tag, typ string
		want     bool
	}{
		{"input", "", true},
		{"input", "text", true},
		{"input", "email", true},
		{"input", "PASSWORD", true},
		{"input", "checkbox", false},
		{"input", "submit", false},
		{"textarea", "", true},
		{"div", "", false},
		{"TEXTAREA", "", true},
	}
	for _, tc := range testCases {
		el := Element{Tag: tc.tag, Type: tc.typ}
		assert.Equal(t, tc.want, el.IsTextControl(), "%s[type=%s]", tc.tag, tc.typ)
	}

	assert.True(t, Element{Tag: "input"}.AcceptsPlaceholder())
	assert.False(t, Element{Tag: "div"}.AcceptsPlaceholder())
}

func TestKeyboardEvents(t *testing.T) {
	down := KeyDown('a')
	assert.Equal(t, "keydown", down.Type)
	assert.Equal(t, "a", down.Key)
	assert.Equal(t, "KeyA", down.Code)
	assert.True(t, down.Bubbles)
	assert.True(t, down.Cancelable)

	assert.Equal(t, "Digit7", KeyUp('7').Code)
	assert.Equal(t, "Space", KeyUp(' ').Code)
	assert.Equal(t, "Enter", KeyDown('\n').Key)
	assert.Equal(t, "", KeyDown('é').Code)
	assert.Equal(t, `keydown("a")`, down.String())
}

func TestBeforeInputIsCancelable(t *testing.T) {
	ev := BeforeInput("x")
	assert.True(t, ev.Cancelable)
	assert.Equal(t, "insertText", ev.InputType)
	assert.Equal(t, ClassInput, ev.Class)
	assert.False(t, InputText("x").Cancelable)
}

func TestPointerSequence(t *testing.T) {
	seq := PointerSequence(schemas.Point{X: 12.5, Y: 40})
	var types []string
	for _, ev := range seq {
		types = append(types, ev.Type)
		assert.Equal(t, 12.5, ev.ClientX)
		assert.Equal(t, 40.0, ev.ClientY)
		assert.True(t, ev.Bubbles)
		assert.True(t, ev.Cancelable)
	}
	assert.Equal(t, []string{"pointerdown", "pointerup", "click"}, types)
}
