package device

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// Validation constants.
const (
	maxNameLength  = 256
	maxFieldLength = 1024

	// maxPairs bounds the set-valued fields to prevent oversized rows
	// from a misbehaving daemon.
	maxPairs = 64
)

// Pre-computed validation sets for O(1) lookups.
var (
	validEntryTypes map[EntryType]struct{}
	validDisabledBy map[DisabledBy]struct{}
)

func init() {
	validEntryTypes = make(map[EntryType]struct{}, len(AllEntryTypes()))
	for _, t := range AllEntryTypes() {
		validEntryTypes[t] = struct{}{}
	}

	validDisabledBy = make(map[DisabledBy]struct{}, len(AllDisabledBy()))
	for _, d := range AllDisabledBy() {
		validDisabledBy[d] = struct{}{}
	}
}

// NewID generates a unique device entry ID.
func NewID() string {
	return uuid.NewString()
}

// ValidateEntryType checks that an entry type is empty or recognised.
func ValidateEntryType(t EntryType) error {
	if t == "" {
		return nil
	}
	if _, ok := validEntryTypes[t]; !ok {
		return fmt.Errorf("%w: entry_type %q", ErrInvalidField, t)
	}
	return nil
}

// ValidateDisabledBy checks that a disabled_by value is empty or recognised.
func ValidateDisabledBy(d DisabledBy) error {
	if d == "" {
		return nil
	}
	if _, ok := validDisabledBy[d]; !ok {
		return fmt.Errorf("%w: disabled_by %q", ErrInvalidField, d)
	}
	return nil
}

// ValidateSeed checks a registration seed before GetOrCreate uses it.
// A seed must name its registering config entry, carry a display name,
// and provide at least one identity pair to match on.
func ValidateSeed(s *Seed) error {
	if s == nil {
		return ErrInvalidSeed
	}
	if s.ConfigEntryID == "" {
		return fmt.Errorf("%w: config_entry_id is required", ErrInvalidSeed)
	}
	if s.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidSeed)
	}
	if len(s.Name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidSeed, maxNameLength)
	}
	if len(s.Connections) == 0 && len(s.Identifiers) == 0 {
		return fmt.Errorf("%w: at least one connection or identifier is required", ErrInvalidSeed)
	}
	if len(s.Connections) > maxPairs || len(s.Identifiers) > maxPairs {
		return fmt.Errorf("%w: too many identity pairs (max %d)", ErrInvalidSeed, maxPairs)
	}
	if err := ValidateEntryType(s.EntryType); err != nil {
		return err
	}
	for _, p := range append(append([]Pair{}, s.Connections...), s.Identifiers...) {
		if p.Kind == "" || p.Value == "" {
			return fmt.Errorf("%w: identity pair elements must be non-empty", ErrInvalidSeed)
		}
		if len(p.Kind) > maxFieldLength || len(p.Value) > maxFieldLength {
			return fmt.Errorf("%w: identity pair element exceeds %d characters", ErrInvalidSeed, maxFieldLength)
		}
	}
	return nil
}

// normalizePairs deduplicates pairs and sorts them lexically so stored and
// projected output is deterministic.
func normalizePairs(pairs []Pair) []Pair {
	if len(pairs) == 0 {
		return nil
	}

	seen := make(map[Pair]struct{}, len(pairs))
	out := make([]Pair, 0, len(pairs))
	for _, p := range pairs {
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Value < out[j].Value
	})
	return out
}

// normalizeStrings deduplicates and sorts a string set.
func normalizeStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}

	sort.Strings(out)
	return out
}

// removeString returns the set without the given value, reporting whether
// it was present.
func removeString(values []string, target string) ([]string, bool) {
	out := make([]string, 0, len(values))
	found := false
	for _, v := range values {
		if v == target {
			found = true
			continue
		}
		out = append(out, v)
	}
	return out, found
}

// pairsOverlap reports whether the two sets share at least one pair.
func pairsOverlap(a, b []Pair) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	set := make(map[Pair]struct{}, len(a))
	for _, p := range a {
		set[p] = struct{}{}
	}
	for _, p := range b {
		if _, ok := set[p]; ok {
			return true
		}
	}
	return false
}
