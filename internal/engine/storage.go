package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/webpilot/api/schemas"
	"github.com/xkilldash9x/webpilot/internal/browser/dom"
)

// Storage performs one local storage action. Structured values are stored
// as compact JSON text and decoded again on the way out.
func (e *Engine) Storage(ctx context.Context, page dom.Storage, req schemas.StorageRequest) (any, error) {
	e.logger.Debug("Storage request.", zap.String("action", string(req.Action)))

	switch req.Action {
	case schemas.StorageGet:
		if req.Key == nil {
			items, err := page.StorageItems(ctx)
			if err != nil {
				return nil, fmt.Errorf("read storage: %w", err)
			}
			all := make(map[string]any, len(items))
			for _, it := range items {
				all[it.Key] = decodeStored(it.Value)
			}
			return all, nil
		}
		v, ok, err := page.StorageGet(ctx, string(*req.Key))
		if err != nil {
			return nil, fmt.Errorf("read storage key: %w", err)
		}
		if !ok {
			return nil, nil
		}
		return decodeStored(v), nil

	case schemas.StorageSet:
		if req.Key == nil {
			return nil, ErrMissingKey
		}
		if req.Value == nil {
			return nil, ErrMissingValue
		}
		key, value := string(*req.Key), normalizeStored(string(*req.Value))
		if err := page.StorageSet(ctx, key, value); err != nil {
			return nil, fmt.Errorf("write storage key: %w", err)
		}
		return map[string]any{"key": key, "value": decodeStored(value)}, nil

	case schemas.StorageRemove:
		if req.Key == nil {
			return nil, ErrMissingKey
		}
		key := string(*req.Key)
		if err := page.StorageRemove(ctx, key); err != nil {
			return nil, fmt.Errorf("remove storage key: %w", err)
		}
		return map[string]any{"key": key, "removed": true}, nil

	case schemas.StorageClear:
		if err := page.StorageClear(ctx); err != nil {
			return nil, fmt.Errorf("clear storage: %w", err)
		}
		return map[string]any{"cleared": true}, nil

	case schemas.StorageKeys:
		items, err := page.StorageItems(ctx)
		if err != nil {
			return nil, fmt.Errorf("read storage: %w", err)
		}
		keys := make([]string, 0, len(items))
		for _, it := range items {
			keys = append(keys, it.Key)
		}
		return keys, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedAction, req.Action)
}

// looksStructured reports whether s is a JSON object or array.
func looksStructured(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || (s[0] != '{' && s[0] != '[') {
		return false
	}
	return json.Valid([]byte(s))
}

// normalizeStored compacts structured text so equal objects store equal strings.
func normalizeStored(s string) string {
	if !looksStructured(s) {
		return s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(strings.TrimSpace(s))); err != nil {
		return s
	}
	return buf.String()
}

// decodeStored returns structured values as raw JSON so they embed in the
// response, and everything else as a string.
func decodeStored(s string) any {
	if looksStructured(s) {
		return json.RawMessage(normalizeStored(s))
	}
	return s
}
