// Package messages manages card messages for the deliveries of a plan, in either
// one-message-for-all or per-delivery mode.
package messages

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/and161185/bloomplan/internal/errs"
)

// Mode selects how messages are assigned to deliveries.
type Mode int

const (
	// ModeSingle applies one message to every delivery.
	ModeSingle Mode = iota
	// ModeMultiple keeps an independent message per delivery.
	ModeMultiple
)

func (m Mode) String() string {
	if m == ModeMultiple {
		return "multiple"
	}
	return "single"
}

// ParseMode accepts "single" or "multiple".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "single":
		return ModeSingle, nil
	case "multiple":
		return ModeMultiple, nil
	}
	return ModeSingle, fmt.Errorf("%w: unknown message mode %q", errs.ErrValidation, s)
}

// Editor holds the messages of an ordered key space. Keys are projected indices
// before payment and delivery event ids after.
type Editor struct {
	mode     Mode
	single   string
	keys     []string
	values   map[string]string
	baseline map[string]string
}

// Load builds an editor over keys with the currently stored messages and infers
// its mode: at most one distinct non-empty message means single mode.
func Load(keys []string, existing map[string]string) *Editor {
	e := &Editor{
		keys:     slices.Clone(keys),
		values:   make(map[string]string, len(keys)),
		baseline: make(map[string]string, len(keys)),
	}
	distinct := map[string]struct{}{}
	for _, k := range keys {
		v := existing[k]
		e.values[k] = v
		e.baseline[k] = v
		if v != "" {
			distinct[v] = struct{}{}
		}
	}
	if len(distinct) <= 1 {
		e.mode = ModeSingle
		for v := range distinct {
			e.single = v
		}
	} else {
		e.mode = ModeMultiple
	}
	return e
}

// Mode returns the current editing mode.
func (e *Editor) Mode() Mode { return e.mode }

// SetMode switches modes. Per-key values survive a round trip through single mode.
func (e *Editor) SetMode(m Mode) { e.mode = m }

// Single returns the message used in single mode.
func (e *Editor) Single() string { return e.single }

// SetSingle sets the message used in single mode.
func (e *Editor) SetSingle(text string) { e.single = text }

// Keys returns the key space in order.
func (e *Editor) Keys() []string { return slices.Clone(e.keys) }

// Message returns the per-key message of multiple mode.
func (e *Editor) Message(key string) string { return e.values[key] }

// Set edits the message of one key in multiple mode.
func (e *Editor) Set(key, text string) error {
	if _, ok := e.values[key]; !ok {
		return fmt.Errorf("%w: unknown delivery %q", errs.ErrValidation, key)
	}
	e.values[key] = text
	return nil
}

// Resolved returns the message of every key as it would be saved.
func (e *Editor) Resolved() map[string]string {
	out := make(map[string]string, len(e.keys))
	for _, k := range e.keys {
		if e.mode == ModeSingle {
			out[k] = e.single
		} else {
			out[k] = e.values[k]
		}
	}
	return out
}

// Changed returns the resolved messages that differ from what was loaded.
func (e *Editor) Changed() map[string]string {
	out := map[string]string{}
	for k, v := range e.Resolved() {
		if e.baseline[k] != v {
			out[k] = v
		}
	}
	return out
}

// Commit makes the given saved messages the new baseline.
func (e *Editor) Commit(saved map[string]string) {
	for k, v := range saved {
		if _, ok := e.baseline[k]; ok {
			e.baseline[k] = v
			e.values[k] = v
		}
	}
}

// Reindex replaces the key space, keeping values and baseline of surviving keys.
func (e *Editor) Reindex(keys []string) {
	values := make(map[string]string, len(keys))
	baseline := make(map[string]string, len(keys))
	for _, k := range keys {
		values[k] = e.values[k]
		baseline[k] = e.baseline[k]
	}
	e.keys = slices.Clone(keys)
	e.values = values
	e.baseline = baseline
}

// Baseline returns a copy of the loaded messages.
func (e *Editor) Baseline() map[string]string { return maps.Clone(e.baseline) }
