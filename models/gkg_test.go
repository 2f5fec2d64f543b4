package models_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gdeltkit/gdelt-go/models"
)

func gkgRow(t *testing.T, overrides map[int]string) []string {
	t.Helper()
	c := make([]string, models.GKGCols)
	c[0] = "20240115001500-215"
	c[1] = "20240115001500"
	c[2] = "1"
	c[3] = "example.org"
	c[4] = "https://example.org/news/1"
	for i, v := range overrides {
		c[i] = v
	}
	return c
}

func TestGKGFromRaw_NestedCells(t *testing.T) {
	raw := models.Raw{Cols: gkgRow(t, map[int]string{
		7:  "TAX_FNCACT;EPU_POLICY",
		8:  "TAX_FNCACT_POLICE,100;EPU_POLICY_GOVERNMENT,250",
		9:  "1#France#FR#FR00#46.0#2.0#-1456928",
		10: "4#Tel Aviv, Israel#IS#IS05#IS0505#32.0833#34.8#-1126160#210",
		15: "-3.5,2.1,5.6,7.7,21.2,0.5,320",
		16: "4#1#15#2024#88",
		17: "wc:320,c2.21:4,v10.1:3.5",
		22: "100#42#said#We will act|300#18#warned#Not yet",
		23: "Benjamin Netanyahu,95;Knesset,288",
		24: "2500,protesters,120;3,tanks,450",
	})}

	g, err := models.GKGFromRaw(raw)
	require.NoError(t, err)

	assert.Equal(t, "20240115001500-215", g.RecordID)
	assert.False(t, g.Translated)
	assert.Equal(t, 2, g.Version)
	assert.Equal(t, "https://example.org/news/1", g.DocumentID)

	assert.Equal(t, []string{"TAX_FNCACT", "EPU_POLICY"}, g.Themes)
	require.Len(t, g.EnhancedThemes, 2)
	assert.Equal(t, "TAX_FNCACT_POLICE", g.EnhancedThemes[0].Name)
	assert.Equal(t, 100, g.EnhancedThemes[0].Offset)

	require.Len(t, g.Locations, 1)
	assert.Equal(t, "France", g.Locations[0].FullName)
	assert.Equal(t, -1, g.Locations[0].Offset)

	require.Len(t, g.EnhancedLocations, 1)
	loc := g.EnhancedLocations[0]
	assert.Equal(t, "Tel Aviv, Israel", loc.FullName)
	assert.Equal(t, "IS0505", loc.ADM2Code)
	assert.Equal(t, 210, loc.Offset)
	require.NotNil(t, loc.Lat)
	assert.InDelta(t, 32.0833, *loc.Lat, 1e-9)

	assert.InDelta(t, -3.5, g.Tone.Tone, 1e-9)
	assert.Equal(t, 320, g.Tone.WordCount)

	require.Len(t, g.EnhancedDates, 1)
	assert.Equal(t, 2024, g.EnhancedDates[0].Year)

	require.Len(t, g.GCAM, 3)
	assert.InDelta(t, 320, g.GCAM["wc"], 1e-9)
	assert.InDelta(t, 3.5, g.GCAM["v10.1"], 1e-9)

	require.Len(t, g.Quotations, 2)
	assert.Equal(t, 100, g.Quotations[0].Offset)
	assert.Equal(t, 42, g.Quotations[0].Length)
	assert.Equal(t, "said", g.Quotations[0].Verb)
	assert.Equal(t, "We will act", g.Quotations[0].Quote)
	assert.Equal(t, "Not yet", g.Quotations[1].Quote)

	require.Len(t, g.AllNames, 2)
	assert.Equal(t, "Benjamin Netanyahu", g.AllNames[0].Name)

	require.Len(t, g.Amounts, 2)
	assert.InDelta(t, 2500, g.Amounts[0].Value, 1e-9)
	assert.Equal(t, "protesters", g.Amounts[0].Object)
	assert.Equal(t, 450, g.Amounts[1].Offset)
}

func TestGKGFromRaw_GCAMSemicolonVariant(t *testing.T) {
	raw := models.Raw{Cols: gkgRow(t, map[int]string{
		17: "wc:210;c2.21:7",
	})}

	g, err := models.GKGFromRaw(raw)
	require.NoError(t, err)
	assert.InDelta(t, 210, g.GCAM["wc"], 1e-9)
	assert.InDelta(t, 7, g.GCAM["c2.21"], 1e-9)
}

func TestGKGFromRaw_TranslatedID(t *testing.T) {
	raw := models.Raw{Cols: gkgRow(t, map[int]string{
		0:  "20240115001500-T215",
		25: "srclc:fra;eng:Moses 2.1.1 / MosesCore Europarl fr-en",
	})}

	g, err := models.GKGFromRaw(raw)
	require.NoError(t, err)

	assert.True(t, g.Translated)
	assert.Equal(t, "20240115001500", g.OriginalID)
	assert.Equal(t, "fra", g.Translation.SourceLang)
	assert.Contains(t, g.Translation.Engine, "Moses")
}

func TestGKGFromRaw_VersionOneWhenNoEnhancedCells(t *testing.T) {
	raw := models.Raw{Cols: gkgRow(t, map[int]string{
		7: "TAX_FNCACT",
		9: "1#France#FR#FR00#46.0#2.0#-1456928",
	})}

	g, err := models.GKGFromRaw(raw)
	require.NoError(t, err)
	assert.Equal(t, 1, g.Version)
}

func TestGKGFromRaw_WrongColumnCount(t *testing.T) {
	_, err := models.GKGFromRaw(models.Raw{Cols: make([]string, 12)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "want 27")
}

func TestGKG_ExtrasValue(t *testing.T) {
	raw := models.Raw{Cols: gkgRow(t, map[int]string{
		26: "<PAGE_TITLE>Breaking news &amp; more</PAGE_TITLE><PAGE_AUTHORS>A. Writer</PAGE_AUTHORS>",
	})}

	g, err := models.GKGFromRaw(raw)
	require.NoError(t, err)

	assert.Equal(t, "Breaking news & more", g.ExtrasValue("PAGE_TITLE"))
	assert.Equal(t, "A. Writer", g.ExtrasValue("PAGE_AUTHORS"))
	assert.Empty(t, g.ExtrasValue("NO_SUCH_KEY"))
}

func TestTVGKGFromRaw_TimecodeTOC(t *testing.T) {
	raw := models.Raw{Cols: gkgRow(t, map[int]string{
		0:  "20240115000000-CNN_20240115_000000",
		26: "<PAGE_TITLE>Newsroom</PAGE_TITLE><SPECIAL>CHARTIMECODEOFFSETTOC:0:20240115000000;520:20240115000030;1048:20240115000100</SPECIAL>",
	})}

	tv, err := models.TVGKGFromRaw(raw)
	require.NoError(t, err)

	require.Len(t, tv.Timecodes, 3)
	assert.Equal(t, 0, tv.Timecodes[0].Offset)
	assert.Equal(t, "20240115000000", tv.Timecodes[0].Timecode)
	assert.Equal(t, 520, tv.Timecodes[1].Offset)
	assert.Equal(t, "20240115000100", tv.Timecodes[2].Timecode)
}

func TestTVGKGFromRaw_NoTOCBlock(t *testing.T) {
	raw := models.Raw{Cols: gkgRow(t, map[int]string{
		26: "<PAGE_TITLE>Newsroom</PAGE_TITLE>",
	})}

	tv, err := models.TVGKGFromRaw(raw)
	require.NoError(t, err)
	assert.Empty(t, tv.Timecodes)
}
