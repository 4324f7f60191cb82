package marc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func field(tag string, occ int, ind1, ind2 byte, subs ...RawSubfield) RawField {
	return RawField{Tag: tag, Occurrence: occ, Indicator1: ind1, Indicator2: ind2, Subfields: subs}
}

func sf(code byte, v string) RawSubfield { return RawSubfield{Code: code, Value: v} }

func TestParse_MissingRecordIDFails(t *testing.T) {
	raw := &RawRecord{}
	_, err := Parse(raw)
	require.Error(t, err)
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, ErrMissingRecordID, pe.Kind)
}

func TestParse_PrinterScenario(t *testing.T) {
	raw := &RawRecord{
		Fields: []RawField{
			{Tag: recordIDTag, Value: "rare-0001"},
			{Tag: "008", Value: "150101s1505    it            000 0 ita d"},
			field("245", 0, '0', '0', sf('a', "Opera aldina"), sf('b', "de re publica")),
			field("264", 0, ' ', '1', sf('a', "Venetiis"), sf('b', "apud Aldum"), sf('c', "1505")),
			field("100", 0, '1', ' ', sf('a', "Manutius, Aldus"), sf('4', "prt")),
		},
	}

	rec, err := Parse(raw)
	require.NoError(t, err)
	require.Equal(t, "rare-0001", rec.RecordID)

	main, ok := rec.MainTitle()
	require.True(t, ok)
	assert.Equal(t, "Opera aldina de re publica", main.Value)
	require.Len(t, main.Sources, 1)
	assert.Equal(t, "245", main.Sources[0].Tag)

	require.Len(t, rec.Imprints, 1)
	imp := rec.Imprints[0]
	assert.Equal(t, "Venetiis", imp.PlaceRaw)
	assert.Equal(t, "apud Aldum", imp.PublisherRaw)
	assert.Equal(t, "1505", imp.DateRaw)
	assert.Equal(t, "it", imp.CountryCode) // trimmed fixed-field slice

	require.Len(t, rec.Agents, 1)
	ag := rec.Agents[0]
	assert.Equal(t, AgentPersonal, ag.AgentType)
	assert.Equal(t, "Manutius, Aldus", ag.Value)
	assert.Equal(t, "prt", ag.RoleRaw)
	assert.Equal(t, RoleSourceRelatorCode, ag.RoleSource)
}

func TestParse_AgentRolePriority(t *testing.T) {
	// $4 present should win over $e even if both exist.
	raw := &RawRecord{
		Fields: []RawField{
			{Tag: recordIDTag, Value: "rare-0002"},
			field("700", 0, '1', ' ', sf('a', "Doe, Jane"), sf('e', "editor"), sf('4', "edt")),
		},
	}
	rec, err := Parse(raw)
	require.NoError(t, err)
	require.Len(t, rec.Agents, 1)
	assert.Equal(t, "edt", rec.Agents[0].RoleRaw)
	assert.Equal(t, RoleSourceRelatorCode, rec.Agents[0].RoleSource)
}

func TestParse_AddedEntryNoRelatorYieldsUnknown(t *testing.T) {
	raw := &RawRecord{
		Fields: []RawField{
			{Tag: recordIDTag, Value: "rare-0003"},
			field("700", 0, '1', ' ', sf('a', "Roe, Richard")),
		},
	}
	rec, err := Parse(raw)
	require.NoError(t, err)
	require.Len(t, rec.Agents, 1)
	assert.Equal(t, RoleSourceUnknown, rec.Agents[0].RoleSource)
	assert.Equal(t, "", rec.Agents[0].RoleRaw)
}

func TestParse_MainEntryInfersRole(t *testing.T) {
	raw := &RawRecord{
		Fields: []RawField{
			{Tag: recordIDTag, Value: "rare-0004"},
			field("100", 0, '1', ' ', sf('a', "Smith, John")),
		},
	}
	rec, err := Parse(raw)
	require.NoError(t, err)
	require.Len(t, rec.Agents, 1)
	assert.Equal(t, "author", rec.Agents[0].RoleRaw)
	assert.Equal(t, RoleSourceInferredTag, rec.Agents[0].RoleSource)
}

func TestParse_SubjectParts(t *testing.T) {
	raw := &RawRecord{
		Fields: []RawField{
			{Tag: recordIDTag, Value: "rare-0005"},
			field("650", 0, ' ', '0', sf('a', "Astronomy"), sf('x', "Early works to 1800"), sf('2', "lcsh")),
		},
	}
	rec, err := Parse(raw)
	require.NoError(t, err)
	require.Len(t, rec.Subjects, 1)
	s := rec.Subjects[0]
	assert.Equal(t, "Astronomy Early works to 1800", s.Value)
	assert.Equal(t, []string{"Astronomy"}, s.Parts.A)
	assert.Equal(t, "lcsh", s.Scheme)
}

func TestParse_LanguagesFrom041And008(t *testing.T) {
	raw := &RawRecord{
		Fields: []RawField{
			{Tag: recordIDTag, Value: "rare-0006"},
			{Tag: "008", Value: "150101s1505    it            heb 0 heb d"},
			field("041", 0, '0', ' ', sf('a', "heb")),
		},
	}
	rec, err := Parse(raw)
	require.NoError(t, err)
	require.Len(t, rec.Languages, 1) // 008 dedups against the 041 value
	assert.Equal(t, "heb", rec.Languages[0].Code)
}

func TestParse_MultipleMainTitlesWarns(t *testing.T) {
	raw := &RawRecord{
		Fields: []RawField{
			{Tag: recordIDTag, Value: "rare-0007"},
			field("245", 0, '0', '0', sf('a', "First title")),
			field("245", 1, '0', '0', sf('a', "Second title")),
		},
	}
	rec, err := Parse(raw)
	require.NoError(t, err)
	main, ok := rec.MainTitle()
	require.True(t, ok)
	assert.Equal(t, "First title", main.Value)
	require.NotEmpty(t, rec.Warnings)
}

func TestReader_RoundTrip(t *testing.T) {
	data := buildTestRecord(t)
	rd := NewReader(bytesReader(data))
	raw, err := rd.Next()
	require.NoError(t, err)
	require.NotNil(t, raw)
	assert.Equal(t, "rt-0001", raw.ControlField(recordIDTag))

	titleFields := raw.AllFields("245")
	require.Len(t, titleFields, 1)
	assert.Equal(t, "A Title", titleFields[0].First('a'))

	_, err = rd.Next()
	assert.ErrorIs(t, err, errEOFSentinel())
}
