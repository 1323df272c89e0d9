// browser/dom/events.go
package dom

import (
	"fmt"

	"github.com/xkilldash9x/webpilot/api/schemas"
)

// EventClass selects the DOM event constructor used for a synthetic event.
type EventClass string

const (
	ClassEvent    EventClass = "Event"
	ClassKeyboard EventClass = "KeyboardEvent"
	ClassInput    EventClass = "InputEvent"
	ClassPointer  EventClass = "PointerEvent"
	ClassMouse    EventClass = "MouseEvent"
)

// Event is a synthetic DOM event description.
type Event struct {
	Type       string     `json:"type"`
	Class      EventClass `json:"class"`
	Key        string     `json:"key,omitempty"`
	Code       string     `json:"code,omitempty"`
	Data       string     `json:"data,omitempty"`
	InputType  string     `json:"inputType,omitempty"`
	ClientX    float64    `json:"clientX,omitempty"`
	ClientY    float64    `json:"clientY,omitempty"`
	Bubbles    bool       `json:"bubbles"`
	Cancelable bool       `json:"cancelable"`
}

func (e Event) String() string {
	if e.Key != "" {
		return fmt.Sprintf("%s(%q)", e.Type, e.Key)
	}
	return e.Type
}

// keyCode approximates KeyboardEvent.code for a printable character.
func keyCode(r rune) string {
	switch {
	case r >= 'a' && r <= 'z':
		return "Key" + string(r-'a'+'A')
	case r >= 'A' && r <= 'Z':
		return "Key" + string(r)
	case r >= '0' && r <= '9':
		return "Digit" + string(r)
	case r == ' ':
		return "Space"
	case r == '\n':
		return "Enter"
	case r == '\t':
		return "Tab"
	}
	return ""
}

func keyName(r rune) string {
	switch r {
	case '\n':
		return "Enter"
	case '\t':
		return "Tab"
	}
	return string(r)
}

// KeyDown builds a bubbling, cancelable keydown for r.
func KeyDown(r rune) Event {
	return Event{Type: "keydown", Class: ClassKeyboard, Key: keyName(r), Code: keyCode(r), Bubbles: true, Cancelable: true}
}

// KeyUp builds a bubbling, cancelable keyup for r.
func KeyUp(r rune) Event {
	return Event{Type: "keyup", Class: ClassKeyboard, Key: keyName(r), Code: keyCode(r), Bubbles: true, Cancelable: true}
}

// InputText builds the input event that follows a text insertion.
func InputText(data string) Event {
	return Event{Type: "input", Class: ClassInput, Data: data, InputType: "insertText", Bubbles: true}
}

// InputEvent builds a plain bubbling input event.
func InputEvent() Event {
	return Event{Type: "input", Class: ClassEvent, Bubbles: true}
}

// ChangeEvent builds a bubbling change event.
func ChangeEvent() Event {
	return Event{Type: "change", Class: ClassEvent, Bubbles: true}
}

// BeforeInput builds the cancelable pre-insertion event carrying data.
func BeforeInput(data string) Event {
	return Event{Type: "beforeinput", Class: ClassInput, Data: data, InputType: "insertText", Bubbles: true, Cancelable: true}
}

// PointerSequence is the pointerdown, pointerup, click triple at a viewport point.
func PointerSequence(at schemas.Point) []Event {
	return []Event{
		{Type: "pointerdown", Class: ClassPointer, ClientX: at.X, ClientY: at.Y, Bubbles: true, Cancelable: true},
		{Type: "pointerup", Class: ClassPointer, ClientX: at.X, ClientY: at.Y, Bubbles: true, Cancelable: true},
		{Type: "click", Class: ClassMouse, ClientX: at.X, ClientY: at.Y, Bubbles: true, Cancelable: true},
	}
}
