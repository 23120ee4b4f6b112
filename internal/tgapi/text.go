package tgapi

import (
	"sort"
	"unicode/utf16"
)

// Utf16Substring returns the substring of text spanning [offset, offset+length)
// UTF-16 code units, as entity offsets are defined by the platform wire
// format. Out-of-range spans are clamped rather than panicking, since a
// malformed update must never crash a worker.
func Utf16Substring(text string, offset, length int) string {
	units := utf16.Encode([]rune(text))
	if offset < 0 {
		offset = 0
	}
	if offset > len(units) {
		return ""
	}
	end := offset + length
	if end > len(units) {
		end = len(units)
	}
	if end < offset {
		return ""
	}
	return string(utf16.Decode(units[offset:end]))
}

// StripEntitiesOfType removes, from text, every substring covered by an
// entity of the given type, using UTF-16 offsets. Overlapping entities are
// not expected from the platform; ranges are removed back-to-front so
// earlier offsets stay valid.
func StripEntitiesOfType(text string, entities []Entity, kind string) string {
	units := utf16.Encode([]rune(text))

	type span struct{ start, end int }
	var spans []span
	for _, e := range entities {
		if e.Type != kind {
			continue
		}
		start := e.Offset
		end := e.Offset + e.Length
		if start < 0 {
			start = 0
		}
		if end > len(units) {
			end = len(units)
		}
		if end > start {
			spans = append(spans, span{start, end})
		}
	}
	if len(spans) == 0 {
		return text
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })

	// Remove back-to-front so earlier offsets remain valid.
	for i := len(spans) - 1; i >= 0; i-- {
		s := spans[i]
		units = append(units[:s.start], units[s.end:]...)
	}
	return string(utf16.Decode(units))
}
