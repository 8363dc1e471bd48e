package model

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// PropertyBoard maps keys to entries and keeps them in insertion order.
type PropertyBoard struct {
	entries []PropertyEntry
	index   map[string]int
}

// NewPropertyBoard creates a board seeded with entries. Later duplicates of a key are dropped.
func NewPropertyBoard(entries ...PropertyEntry) *PropertyBoard {
	b := &PropertyBoard{
		entries: make([]PropertyEntry, 0, len(entries)),
		index:   make(map[string]int, len(entries)),
	}
	for _, entry := range entries {
		if entry.Key == "" {
			continue
		}
		if _, ok := b.index[entry.Key]; ok {
			continue
		}
		b.insert(entry)
	}
	return b
}

// ApplyInterpretation replaces the value of known keys and inserts unknown ones.
// The Editable flag of an existing entry is left untouched.
func (b *PropertyBoard) ApplyInterpretation(interpretations []Interpretation) {
	for _, in := range interpretations {
		key := resolveKey(in)
		if key == "" {
			continue
		}
		if i, ok := b.index[key]; ok {
			b.entries[i].Value = in.Value
			if in.Unit != "" {
				b.entries[i].Unit = in.Unit
			}
			continue
		}
		displayName := in.DisplayName
		if displayName == "" {
			displayName = key
		}
		b.insert(
			PropertyEntry{
				Key:         key,
				DisplayName: displayName,
				Value:       in.Value,
				Unit:        in.Unit,
				Editable:    true,
			},
		)
	}
}

func (b *PropertyBoard) SetValue(key, value string) error {
	i, ok := b.index[key]
	if !ok {
		return fmt.Errorf("property %q: %w", key, ErrNotFound)
	}
	if !b.entries[i].Editable {
		return fmt.Errorf("property %q: %w", key, ErrReadOnly)
	}
	b.entries[i].Value = value
	return nil
}

func (b *PropertyBoard) Get(key string) (PropertyEntry, bool) {
	i, ok := b.index[key]
	if !ok {
		return PropertyEntry{}, false
	}
	return b.entries[i], true
}

func (b *PropertyBoard) Snapshot() []PropertyEntry {
	out := make([]PropertyEntry, len(b.entries))
	copy(out, b.entries)
	return out
}

func (b *PropertyBoard) Len() int {
	return len(b.entries)
}

func (b *PropertyBoard) insert(entry PropertyEntry) {
	b.index[entry.Key] = len(b.entries)
	b.entries = append(b.entries, entry)
}

var keylessNamespace = uuid.MustParse("5b0c3c1e-8f4a-4d57-9a5e-2f3d7c1b9e60")

var keyAliases = map[string]string{
	"band_gap":          "bandgap",
	"target_bandgap":    "bandgap",
	"formula":           "composition",
	"chemical_formula":  "composition",
	"crystal_structure": "crystal_system",
	"stability_label":   "stability",
}

// CanonicalKey folds the synonyms interpretation services use onto the board's keys.
func CanonicalKey(key string) string {
	if canonical, ok := keyAliases[key]; ok {
		return canonical
	}
	return key
}

func resolveKey(in Interpretation) string {
	if key := strings.TrimSpace(in.Key); key != "" {
		return CanonicalKey(key)
	}
	if key := PropertyKey(in.DisplayName); key != "" {
		return CanonicalKey(key)
	}
	value := strings.ToLower(strings.Join(strings.Fields(in.Value), " "))
	if value == "" {
		return ""
	}
	// The same unnamed value always lands on the same key.
	return "property_" + strings.ReplaceAll(uuid.NewSHA1(keylessNamespace, []byte(value)).String(), "-", "")[:12]
}

// PropertyKey turns a human label like "Bandgap (eV)" into a board key like "bandgap".
// Parenthesized units are dropped.
func PropertyKey(displayName string) string {
	name := displayName
	if i := strings.IndexByte(name, '('); i >= 0 {
		name = name[:i]
	}
	var sb strings.Builder
	pendingSep := false
	for _, r := range strings.TrimSpace(name) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if pendingSep && sb.Len() > 0 {
				sb.WriteByte('_')
			}
			pendingSep = false
			sb.WriteRune(unicode.ToLower(r))
		default:
			pendingSep = true
		}
	}
	return sb.String()
}
