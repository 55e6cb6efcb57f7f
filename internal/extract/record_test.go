package extract

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/archive-harvester/internal/crawler"
)

func TestBuildRecord(t *testing.T) {
	t.Parallel()

	doc := crawler.RawDocument{
		ID:    42,
		URL:   "https://archive.example/documento?id=42",
		Title: "  Carta a Santander \n",
		Regions: map[string][]string{
			LabelSection:  {"Sección:", "Correspondencia"},
			LabelPersons:  {"Personas: Francisco de Paula Santander"},
			LabelPlaces:   {"Lugares", ": Bogotá"},
			LabelKeywords: {"Palabras Clave: guerra, política ,guerra"},
			MarkerContent: {"Descripción: Mi estimado amigo", "le escribo", "NOTAS 1. Original", "en el archivo"},
		},
	}
	fetchedAt := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	rec := BuildRecord(doc, fetchedAt)

	assert.Equal(t, 42, rec.ID)
	assert.Equal(t, doc.URL, rec.URL)
	assert.Equal(t, "2024-01-02 03:04:05", rec.FetchedAt)
	assertOptional(t, strPtr("Carta a Santander"), rec.Title)
	assertOptional(t, strPtr("Correspondencia"), rec.Section)
	assertOptional(t, strPtr("Francisco de Paula Santander"), rec.Persons)
	assertOptional(t, strPtr("Bogotá"), rec.Places)
	assertOptional(t, strPtr("guerra, política ,guerra"), rec.Keywords)
	assertOptional(t, strPtr("Mi estimado amigo le escribo"), rec.Content)
	assertOptional(t, strPtr("1. Original en el archivo"), rec.Notes)
	assert.Nil(t, rec.Translation)
	assert.Nil(t, rec.Error)
	assert.Equal(t, []string{"guerra", "política"}, rec.KeywordTags())
}

func TestBuildRecordEmptyDocument(t *testing.T) {
	t.Parallel()

	rec := BuildRecord(crawler.RawDocument{ID: 7, URL: "u"}, time.Unix(0, 0).UTC())
	require.Equal(t, 7, rec.ID)
	assert.Nil(t, rec.Title)
	assert.Nil(t, rec.Section)
	assert.Nil(t, rec.Content)
	assert.Nil(t, rec.Notes)
	assert.Nil(t, rec.KeywordTags())
	assert.False(t, rec.Failed())
}
