package handelsregister

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

const resultsFixture = `<!DOCTYPE html>
<html><body>
<form name="ergebnissForm">
<table role="grid" id="ergebnissForm:selectedSuchErgebnisFormTable_data">
<thead><tr><th>Court</th><th>Name</th></tr></thead>
<tbody>
<tr data-ri="0">
  <td></td>
  <td>Amtsgericht Charlottenburg (Berlin) HRB 12345</td>
  <td>Gasag AG</td>
  <td>Berlin</td>
  <td> aktuell eingetragen </td>
  <td>AD CD HD DK UT VÖ SI</td>
  <td></td>
  <td></td>
  <td>GASAG Beteiligungs-AG</td>
  <td>Berlin</td>
  <td></td>
  <td>Gasag Aktiengesellschaft</td>
  <td>Berlin</td>
  <td></td>
  <td>Niederlassungen / Zweigniederlassungen</td>
  <td>Gasag Zweigstelle</td>
  <td>Potsdam</td>
</tr>
<tr data-ri="1">
  <td></td>
  <td>Amtsgericht Bremen HRA 999</td>
  <td>Weser Handel KG</td>
  <td>Bremen</td>
  <td> in Liquidation </td>
  <td>AD</td>
</tr>
<tr data-ri="2">
  <td></td>
  <td>Amtsgericht Charlottenburg (Berlin) HRB 99999 B</td>
  <td>Spree Verwaltungs GmbH</td>
  <td>Berlin</td>
  <td>aktuell eingetragen</td>
  <td>AD</td>
</tr>
<tr data-ri="3">
  <td></td>
  <td>Amtsgericht München</td>
  <td>Isar Consulting</td>
  <td>Bayern</td>
  <td>gelöscht</td>
  <td></td>
</tr>
<tr data-ri="4">
  <td></td>
  <td>broken row</td>
</tr>
<tr>
  <td>footer, no data-ri</td>
</tr>
</tbody>
</table>
</form>
</body></html>`

func strptr(s string) *string {
	return &s
}

func TestExtract(t *testing.T) {
	companies, err := Extract([]byte(resultsFixture))
	require.NoError(t, err)
	require.Len(t, companies, 4)

	expected := []Company{
		{
			Court:         "Amtsgericht Charlottenburg (Berlin) HRB 12345",
			RegisterNum:   strptr("HRB 12345 B"),
			Name:          "Gasag AG",
			State:         "Berlin",
			Status:        "aktuell eingetragen",
			StatusCurrent: "AKTUELL_EINGETRAGEN",
			Documents:     "AD CD HD DK UT VÖ SI",
			History: []HistoryEntry{
				{Name: "GASAG Beteiligungs-AG", Location: "Berlin"},
				{Name: "Gasag Aktiengesellschaft", Location: "Berlin"},
			},
		},
		{
			Court:         "Amtsgericht Bremen HRA 999",
			RegisterNum:   strptr("HRA 999 HB"),
			Name:          "Weser Handel KG",
			State:         "Bremen",
			Status:        "in Liquidation",
			StatusCurrent: "IN_LIQUIDATION",
			Documents:     "AD",
		},
		{
			Court:         "Amtsgericht Charlottenburg (Berlin) HRB 99999 B",
			RegisterNum:   strptr("HRB 99999 B"),
			Name:          "Spree Verwaltungs GmbH",
			State:         "Berlin",
			Status:        "aktuell eingetragen",
			StatusCurrent: "AKTUELL_EINGETRAGEN",
			Documents:     "AD",
		},
		{
			Court:         "Amtsgericht München",
			RegisterNum:   nil,
			Name:          "Isar Consulting",
			State:         "Bayern",
			Status:        "gelöscht",
			StatusCurrent: "GELÖSCHT",
			Documents:     "",
		},
	}

	diff := cmp.Diff(expected, companies)
	if diff != "" {
		t.Fatalf("unexpected extraction result:\n%s", diff)
	}
}

func TestExtractNoGrid(t *testing.T) {
	companies, err := Extract([]byte("<html><body><p>Ihre Suche ergab keine Treffer.</p></body></html>"))
	require.NoError(t, err)
	require.NotNil(t, companies)
	require.Empty(t, companies)
}

func TestExtractEmptyGrid(t *testing.T) {
	companies, err := Extract([]byte(`<html><body><table role="grid"><tr><th>Court</th></tr></table></body></html>`))
	require.NoError(t, err)
	require.NotNil(t, companies)
	require.Empty(t, companies)
}

func TestExtractRegisterNum(t *testing.T) {
	testCases := []struct {
		court    string
		expected string
	}{
		{"Amtsgericht Charlottenburg (Berlin) HRB 12345", "HRB 12345"},
		{"Amtsgericht Charlottenburg HRB 12345 B", "HRB 12345 B"},
		{"Amtsgericht Bremen VR 6789", "VR 6789"},
		{"Amtsgericht Köln GnR 42", "GnR 42"},
		{"Amtsgericht Hamburg PR 100", "PR 100"},
		// a capital that starts a word is not a suffix letter
		{"Amtsgericht Berlin HRB 86921 Formerly registered", "HRB 86921"},
		// digits running into a word match nothing at that position
		{"Amtsgericht HRB 123abc HRA 77", "HRA 77"},
		{"Amtsgericht München", ""},
		{"", ""},
	}

	for _, test := range testCases {
		require.Equal(
			t, test.expected, extractRegisterNum(test.court),
			"court: %q", test.court,
		)
	}
}

func TestNormalizeRegisterNum(t *testing.T) {
	require.Equal(t, "HRB 12345 B", normalizeRegisterNum("HRB 12345", "Berlin"))
	require.Equal(t, "HRB 12345 B", normalizeRegisterNum("HRB 12345 B", "Berlin"))
	require.Equal(t, "HRA 999 HB", normalizeRegisterNum("HRA 999", "Bremen"))
	require.Equal(t, "GnR 7 HB", normalizeRegisterNum("GnR 7", "Bremen"))
	// no override outside Berlin and Bremen
	require.Equal(t, "HRB 555", normalizeRegisterNum("HRB 555", "Bayern"))
	// HRA in Berlin has no conventional suffix either
	require.Equal(t, "HRA 321", normalizeRegisterNum("HRA 321", "Berlin"))
}

func TestHistoryStopsAtBranches(t *testing.T) {
	cells := []string{
		"", "court", "name", "state", "status", "docs", "", "",
		"Old Name 1", "Berlin", "",
		"Branches", "should not appear", "",
		"Old Name 2", "Hamburg", "",
	}
	history := parseHistory(cells)
	require.Equal(t, []HistoryEntry{{Name: "Old Name 1", Location: "Berlin"}}, history)
}

func TestHistoryJSONShape(t *testing.T) {
	raw, err := json.Marshal([]HistoryEntry{{Name: "Foo AG", Location: "Berlin"}})
	require.NoError(t, err)
	require.JSONEq(t, `[["Foo AG","Berlin"]]`, string(raw))

	var decoded []HistoryEntry
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Equal(t, []HistoryEntry{{Name: "Foo AG", Location: "Berlin"}}, decoded)
}
