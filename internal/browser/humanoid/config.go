// internal/browser/humanoid/config.go
package humanoid

import (
	"time"

	"github.com/xkilldash9x/webpilot/internal/config"
)

// Options tunes the typing strategies.
type Options struct {
	// FocusSettle is waited after focusing, before the first event. Editor
	// frameworks attach listeners asynchronously after focus and drop a
	// zero-delay burst.
	FocusSettle time.Duration
	// PostClearSettle is waited after clearing existing content.
	PostClearSettle time.Duration
	// LexicalMarker is an attribute name declared on the editable node.
	LexicalMarker string
	// DraftMarker is a CSS selector for an element inside the editable node.
	DraftMarker string
}

// DefaultOptions mirrors the engine defaults in config.SetDefaults.
func DefaultOptions() Options {
	return Options{
		FocusSettle:     100 * time.Millisecond,
		PostClearSettle: 50 * time.Millisecond,
		LexicalMarker:   "data-lexical-editor",
		DraftMarker:     `[data-contents="true"]`,
	}
}

// OptionsFromConfig builds Options from the engine configuration.
func OptionsFromConfig(cfg config.EngineConfig) Options {
	opts := DefaultOptions()
	opts.FocusSettle = cfg.FocusSettle
	opts.PostClearSettle = cfg.PostClearSettle
	if cfg.LexicalMarker != "" {
		opts.LexicalMarker = cfg.LexicalMarker
	}
	if cfg.DraftMarker != "" {
		opts.DraftMarker = cfg.DraftMarker
	}
	return opts
}
