package oci

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/agnivade/levenshtein"
)

// LifecycleState is the closed set of lifecycle states shared by the listed resources.
type LifecycleState string

// Known lifecycle states. Anything else decodes to StateUnknown.
const (
	StateActive    LifecycleState = "ACTIVE"
	StateInactive  LifecycleState = "INACTIVE"
	StateDeleted   LifecycleState = "DELETED"
	StateCreating  LifecycleState = "CREATING"
	StateUpdating  LifecycleState = "UPDATING"
	StateDeleting  LifecycleState = "DELETING"
	StateAvailable LifecycleState = "AVAILABLE"
	StateUnknown   LifecycleState = "UNKNOWN"
)

// maxSuggestionDistance bounds how far a typo may be from a known state before no
// suggestion is offered.
const maxSuggestionDistance = 3

// ErrUnknownLifecycleState is returned by ParseLifecycleState for values outside the enum.
var ErrUnknownLifecycleState = errors.New("oci: unknown lifecycle state")

// LifecycleStates lists every known state in display order.
func LifecycleStates() []LifecycleState {
	return []LifecycleState{
		StateActive,
		StateInactive,
		StateDeleted,
		StateCreating,
		StateUpdating,
		StateDeleting,
		StateAvailable,
		StateUnknown,
	}
}

// NormalizeLifecycleState maps an API string onto the enum, falling back to StateUnknown.
func NormalizeLifecycleState(raw string) LifecycleState {
	candidate := LifecycleState(strings.ToUpper(strings.TrimSpace(raw)))
	for _, known := range LifecycleStates() {
		if candidate == known {
			return known
		}
	}

	return StateUnknown
}

// ParseLifecycleState validates user input such as a --state flag. Unlike
// NormalizeLifecycleState it rejects unknown values and suggests the closest match.
func ParseLifecycleState(raw string) (LifecycleState, error) {
	candidate := strings.ToUpper(strings.TrimSpace(raw))
	for _, known := range LifecycleStates() {
		if candidate == string(known) {
			return known, nil
		}
	}

	suggestion := SuggestLifecycleState(candidate)
	if suggestion == "" {
		return "", fmt.Errorf("%w: %q", ErrUnknownLifecycleState, raw)
	}

	return "", fmt.Errorf("%w: %q (did you mean %s?)", ErrUnknownLifecycleState, raw, suggestion)
}

// SuggestLifecycleState returns the known state closest to raw, or "" when none is close.
func SuggestLifecycleState(raw string) LifecycleState {
	best := LifecycleState("")
	bestDistance := maxSuggestionDistance + 1

	for _, known := range LifecycleStates() {
		distance := levenshtein.ComputeDistance(strings.ToUpper(raw), string(known))
		if distance < bestDistance {
			best = known
			bestDistance = distance
		}
	}

	return best
}

// IsActive reports whether the state counts as "active" in summaries.
func (s LifecycleState) IsActive() bool {
	return s == StateActive || s == StateAvailable
}

// IsInactive reports whether the state counts as "inactive" in summaries.
func (s LifecycleState) IsInactive() bool {
	return s == StateInactive
}

// UnmarshalJSON accepts any string and normalizes it.
func (s *LifecycleState) UnmarshalJSON(data []byte) error {
	var raw string

	err := json.Unmarshal(data, &raw)
	if err != nil {
		return fmt.Errorf("decode lifecycle state: %w", err)
	}

	*s = NormalizeLifecycleState(raw)

	return nil
}
