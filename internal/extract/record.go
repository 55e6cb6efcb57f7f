package extract

import (
	"strings"
	"time"

	"github.com/JakeFAU/archive-harvester/internal/crawler"
)

// BuildRecord assembles the field record of a successfully fetched document.
func BuildRecord(doc crawler.RawDocument, fetchedAt time.Time) crawler.FieldRecord {
	sections := Sections(doc.Fragments(MarkerContent))
	return crawler.FieldRecord{
		ID:          doc.ID,
		URL:         doc.URL,
		FetchedAt:   fetchedAt.Format(crawler.FetchedAtLayout),
		Title:       optional(strings.TrimSpace(doc.Title)),
		Section:     Label(doc.Fragments(LabelSection), LabelSection),
		Persons:     Label(doc.Fragments(LabelPersons), LabelPersons),
		Places:      Label(doc.Fragments(LabelPlaces), LabelPlaces),
		Keywords:    Label(doc.Fragments(LabelKeywords), LabelKeywords),
		Content:     sections.Content,
		Notes:       sections.Notes,
		Translation: Label(doc.Fragments(LabelTranslation), LabelTranslation),
	}
}
