package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raro-catalog/bibliofind/pkg/marc"
)

func sampleRecord(id string) *marc.CanonicalRecord {
	return &marc.CanonicalRecord{
		RecordID: id,
		Titles: []marc.Title{
			{Type: marc.TitleMain, Value: "De Revolutionibus", Sources: []marc.Source{{Tag: "245", Subfield: "a"}}},
		},
		Imprints: []marc.Imprint{
			{
				Occurrence: 0, DateRaw: "1543", PlaceRaw: "Norimbergae", PublisherRaw: "Ioh. Petreius",
				CountryCode: "gw", SourceTags: []marc.Source{{Tag: "260"}},
				Norm: &marc.ImprintNorm{
					DateStart: intPtr(1543), DateEnd: intPtr(1543), DateLabel: "1543", DateConfidence: 0.99, DateMethod: "exact_year",
					PlaceNorm: "norimbergae", PlaceDisplay: "Norimbergae", PlaceConfidence: 0.80, PlaceMethod: "base_clean",
					PublisherNorm: "ioh petreius", PublisherDisplay: "Ioh Petreius", PubConfidence: 0.80, PubMethod: "base_clean",
					CountryName: "Germany",
				},
			},
		},
		Agents: []marc.Agent{
			{
				AgentIndex: 0, AgentType: marc.AgentPersonal, Value: "Copernicus, Nicolaus",
				RoleSource: marc.RoleSourceRelatorTerm, Sources: []marc.Source{{Tag: "100"}},
				Norm: &marc.AgentNorm{AgentNorm: "copernicus nicolaus", AgentConf: 0.80, AgentMethod: "base_clean", RoleNorm: "author", RoleConf: 0.95, RoleMethod: "relator_term"},
			},
		},
		Subjects: []marc.Subject{
			{Value: "Astronomy--Early works to 1800", SourceTag: "650", Sources: []marc.Source{{Tag: "650"}}},
		},
		Languages: []marc.Language{{Code: "lat", Source: marc.Source{Tag: "008"}}},
		Notes:     []marc.TaggedText{{Tag: "500", Value: "First edition", Source: marc.Source{Tag: "500"}}},
		Physical:  []marc.TaggedText{{Tag: "300", Value: "10 leaves ; 30 cm", Source: marc.Source{Tag: "300"}}},
	}
}

func intPtr(n int) *int { return &n }

func TestIndexRecord_InsertsAllDependents(t *testing.T) {
	s, err := NewStore(":memory:")
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	require.NoError(t, s.IndexRecord(sampleRecord("rec-1")))

	count, err := s.RecordCount()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	var titleCount int
	require.NoError(t, s.DB().QueryRow(`SELECT COUNT(*) FROM titles WHERE record_id = ?`, "rec-1").Scan(&titleCount))
	assert.Equal(t, 1, titleCount)

	var placeNorm string
	require.NoError(t, s.DB().QueryRow(`SELECT place_norm FROM imprints WHERE record_id = ?`, "rec-1").Scan(&placeNorm))
	assert.Equal(t, "norimbergae", placeNorm)
}

func TestIndexRecord_ReindexCascadeDeletesAndReinserts(t *testing.T) {
	s, err := NewStore(":memory:")
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	require.NoError(t, s.IndexRecord(sampleRecord("rec-1")))

	updated := sampleRecord("rec-1")
	updated.Subjects = append(updated.Subjects, marc.Subject{Value: "Heliocentrism", SourceTag: "650"})
	require.NoError(t, s.IndexRecord(updated))

	var subjectCount int
	require.NoError(t, s.DB().QueryRow(`SELECT COUNT(*) FROM subjects WHERE record_id = ?`, "rec-1").Scan(&subjectCount))
	assert.Equal(t, 2, subjectCount)

	count, err := s.RecordCount()
	require.NoError(t, err)
	assert.Equal(t, 1, count, "reindexing the same record_id must not duplicate the records row")
}

func TestDeleteRecord_RemovesRecordAndDependents(t *testing.T) {
	s, err := NewStore(":memory:")
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	require.NoError(t, s.IndexRecord(sampleRecord("rec-1")))
	require.NoError(t, s.DeleteRecord("rec-1"))

	count, err := s.RecordCount()
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	var titleCount int
	require.NoError(t, s.DB().QueryRow(`SELECT COUNT(*) FROM titles WHERE record_id = ?`, "rec-1").Scan(&titleCount))
	assert.Equal(t, 0, titleCount)
}

func TestIndexRecord_TitlesFTSFindsValue(t *testing.T) {
	s, err := NewStore(":memory:")
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	require.NoError(t, s.IndexRecord(sampleRecord("rec-1")))

	var matched string
	err = s.DB().QueryRow(
		`SELECT t.value FROM titles_fts f JOIN titles t ON t.id = f.rowid WHERE titles_fts MATCH ?`,
		"Revolutionibus",
	).Scan(&matched)
	require.NoError(t, err)
	assert.Contains(t, matched, "Revolutionibus")
}
