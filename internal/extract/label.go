package extract

import "strings"

// Region labels used by the archive's document viewer.
const (
	LabelSection     = "Sección"
	LabelPersons     = "Personas"
	LabelPlaces      = "Lugares"
	LabelKeywords    = "Palabras Clave"
	LabelTranslation = "Traducción"
)

// Boundary markers of the description paragraph.
const (
	MarkerContent = "Descripción:"
	MarkerNotes   = "NOTAS"
)

// RegionLabels lists every region a Fetcher must collect for BuildRecord.
// The description paragraph is located by its content marker.
func RegionLabels() []string {
	return []string{
		LabelSection,
		LabelPersons,
		LabelPlaces,
		LabelKeywords,
		LabelTranslation,
		MarkerContent,
	}
}

// Label extracts a single-label field. The fragments are trimmed and joined
// with single spaces, skipping empty ones. When label occurs in the joined
// text only the part after its last occurrence is kept, minus one leading
// colon and surrounding whitespace. When it never occurs the joined text is
// returned whole. Nil means absent.
func Label(fragments []string, label string) *string {
	joined := joinFragments(fragments)
	if joined == "" {
		return nil
	}
	if label == "" {
		return &joined
	}
	idx := strings.LastIndex(joined, label)
	if idx < 0 {
		return &joined
	}
	rest := strings.TrimSpace(joined[idx+len(label):])
	rest = strings.TrimSpace(strings.TrimPrefix(rest, ":"))
	return optional(rest)
}

func joinFragments(fragments []string) string {
	parts := make([]string, 0, len(fragments))
	for _, f := range fragments {
		if f = strings.TrimSpace(f); f != "" {
			parts = append(parts, f)
		}
	}
	return strings.Join(parts, " ")
}

// afterLast returns the trimmed text following the last occurrence of
// marker in s.
func afterLast(s, marker string) string {
	idx := strings.LastIndex(s, marker)
	if idx < 0 {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(s[idx+len(marker):])
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
