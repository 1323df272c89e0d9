// internal/browser/humanoid/interface.go
package humanoid

import (
	"context"
	"errors"
	"time"

	"github.com/xkilldash9x/webpilot/internal/browser/dom"
)

var (
	// ErrTyping is returned only when a strategy's direct-assignment fallback
	// itself failed, or the sequence was cancelled.
	ErrTyping = errors.New("typing failed")
	// ErrClickDispatch marks a failed synthetic click. It is reported inline
	// and never fails the surrounding operation.
	ErrClickDispatch = errors.New("click dispatch failed")
)

// Category is the closed set of editing substrates a node can belong to.
type Category int

const (
	// CategoryReadOnly nodes get a direct text assignment, no keystrokes.
	CategoryReadOnly Category = iota
	// CategoryControlledInput covers native inputs and textareas, which
	// virtual-DOM frameworks drive from their own state.
	CategoryControlledInput
	// CategoryGenericEditable is a contenteditable region with no known editor.
	CategoryGenericEditable
	// CategoryLexical is an editor that declares its marker attribute on the
	// editable node and vetoes insertions through beforeinput.
	CategoryLexical
	// CategoryDraft is an editor whose editable node contains its marker
	// element and accepts execCommand insertions.
	CategoryDraft
)

// Categories lists every category; the strategy table must cover all of them.
var Categories = []Category{
	CategoryReadOnly,
	CategoryControlledInput,
	CategoryGenericEditable,
	CategoryLexical,
	CategoryDraft,
}

func (c Category) String() string {
	switch c {
	case CategoryReadOnly:
		return "direct-assignment"
	case CategoryControlledInput:
		return "controlled-input"
	case CategoryGenericEditable:
		return "generic-editable"
	case CategoryLexical:
		return "rich-editor-lexical"
	case CategoryDraft:
		return "rich-editor-draft"
	}
	return "unknown"
}

// Pacer suspends between steps of an input sequence. Implementations must
// return early with ctx.Err() when ctx is done.
type Pacer interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// Job is one typing request against an already resolved element.
type Job struct {
	Page   dom.Page
	Target dom.Element
	Text   string
	Delay  time.Duration
}

// Outcome reports how a typing request concluded.
type Outcome struct {
	Category Category
	// Corrected is set when the direct-assignment fallback produced the final state.
	Corrected bool
	// Reason explains why the fallback ran.
	Reason string
}

// Strategy types text into one category of node.
type Strategy interface {
	Category() Category
	Type(ctx context.Context, job Job) (Outcome, error)
}
