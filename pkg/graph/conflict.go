package graph

import (
	"fmt"
	"strings"
)

// ConflictPolicy governs how an incoming row merges with an existing node.
type ConflictPolicy uint8

const (
	// ConflictUpdate overwrites matching fields; fields present only on the
	// existing node are untouched.
	ConflictUpdate ConflictPolicy = iota
	// ConflictReplace discards the existing property set entirely.
	ConflictReplace
	// ConflictSkip leaves an existing node untouched.
	ConflictSkip
	// ConflictPreserve keeps existing values on overlapping fields and adds
	// fields present only in the incoming row.
	ConflictPreserve
)

// ParseConflictPolicy maps a configuration tag to a policy.
func ParseConflictPolicy(s string) (ConflictPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "update":
		return ConflictUpdate, nil
	case "replace":
		return ConflictReplace, nil
	case "skip":
		return ConflictSkip, nil
	case "preserve":
		return ConflictPreserve, nil
	}
	return 0, fmt.Errorf("unknown conflict policy: %q", s)
}

func (p ConflictPolicy) String() string {
	switch p {
	case ConflictUpdate:
		return "update"
	case ConflictReplace:
		return "replace"
	case ConflictSkip:
		return "skip"
	case ConflictPreserve:
		return "preserve"
	}
	return fmt.Sprintf("ConflictPolicy(%d)", uint8(p))
}

// MergeOutcome classifies one row's effect on the store.
type MergeOutcome uint8

const (
	OutcomeCreated MergeOutcome = iota
	OutcomeUpdated
	OutcomeSkipped
)

// mergeProperties is a pure function of the existing property set (when
// exists is true), the policy, and the incoming fields. It returns the
// property set to store and the outcome tally for the operation report.
// An absent node is always a creation, whatever the policy.
func mergeProperties(existing Properties, exists bool, policy ConflictPolicy, incoming Properties) (Properties, MergeOutcome) {
	if !exists {
		return incoming.Clone(), OutcomeCreated
	}
	switch policy {
	case ConflictSkip:
		return existing, OutcomeSkipped
	case ConflictReplace:
		return incoming.Clone(), OutcomeUpdated
	case ConflictUpdate:
		merged := existing.Clone()
		if merged == nil {
			merged = make(Properties, len(incoming))
		}
		for k, v := range incoming {
			merged[k] = v
		}
		return merged, OutcomeUpdated
	case ConflictPreserve:
		merged := existing.Clone()
		if merged == nil {
			merged = make(Properties, len(incoming))
		}
		changed := false
		for k, v := range incoming {
			if _, ok := merged[k]; !ok {
				merged[k] = v
				changed = true
			}
		}
		if !changed {
			return merged, OutcomeSkipped
		}
		return merged, OutcomeUpdated
	}
	// Unreachable with a parsed policy.
	return existing, OutcomeSkipped
}
