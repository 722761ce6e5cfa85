package handelsregister

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// Company is one row of the portal's result grid.
type Company struct {
	Court         string         `json:"court"`
	RegisterNum   *string        `json:"register_num"`
	Name          string         `json:"name"`
	State         string         `json:"state"`
	Status        string         `json:"status"`
	StatusCurrent string         `json:"statusCurrent"`
	Documents     string         `json:"documents"`
	History       []HistoryEntry `json:"history"`
}

// HistoryEntry is a former (name, location) of a company. It marshals
// as a two-element array, the shape the portal consumers already expect.
type HistoryEntry struct {
	Name     string
	Location string
}

func (e HistoryEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{e.Name, e.Location})
}

func (e *HistoryEntry) UnmarshalJSON(raw []byte) error {
	var pair [2]string
	err := json.Unmarshal(raw, &pair)
	if err != nil {
		return err
	}
	e.Name = pair[0]
	e.Location = pair[1]
	return nil
}

// register identifiers as printed in the court cell, e.g. "HRB 12345"
// or "VR 6789 B"
var registerNumRegex = regexp.MustCompile(`(HRA|HRB|GnR|VR|PR)\s*\d+(\s+[A-Z])?`)

func isWordChar(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func runsIntoWord(s string, end int) bool {
	if end >= len(s) {
		return false
	}
	r, _ := utf8.DecodeRuneInString(s[end:])
	return isWordChar(r)
}

// extractRegisterNum pulls the register identifier out of the court
// cell text. The optional single-letter suffix must not be the start of
// a word (" Formerly" is not a suffix); the original pattern used a
// lookahead for that, which RE2 lacks, so the guard is checked manually.
func extractRegisterNum(court string) string {
	for _, m := range registerNumRegex.FindAllStringSubmatchIndex(court, -1) {
		if !runsIntoWord(court, m[1]) {
			return court[m[0]:m[1]]
		}
		// retry without the suffix group before giving up on this match
		if m[4] >= 0 && !runsIntoWord(court, m[4]) {
			return court[m[0]:m[4]]
		}
	}
	return ""
}

// some states leave their conventional register suffix implicit in the
// result grid; appending it keeps numbers comparable across sources
var registerSuffixes = map[string]map[string]string{
	"Berlin": {"HRB": " B"},
	"Bremen": {"HRA": " HB", "HRB": " HB", "GnR": " HB", "VR": " HB", "PR": " HB"},
}

func normalizeRegisterNum(registerNum, state string) string {
	fields := strings.Fields(registerNum)
	if len(fields) == 0 {
		return registerNum
	}
	suffix := registerSuffixes[state][fields[0]]
	if suffix != "" && !strings.HasSuffix(registerNum, suffix) {
		registerNum += suffix
	}
	return registerNum
}

// the history block starts at this cell index; each entry spans three
// cells of which only (name, location) carry content
const historyStart = 8

func parseHistory(cells []string) []HistoryEntry {
	var history []HistoryEntry
	for i := historyStart; i+1 < len(cells); i += 3 {
		// the branches section follows the history rows in the same
		// cell stream and must not leak into it
		if strings.Contains(cells[i], "Branches") || strings.Contains(cells[i], "Niederlassungen") {
			break
		}
		history = append(history, HistoryEntry{Name: cells[i], Location: cells[i+1]})
	}
	return history
}

func parseResultRow(row *goquery.Selection) (Company, error) {
	var cells []string
	row.Find("td").Each(func(_ int, cell *goquery.Selection) {
		cells = append(cells, strings.TrimSpace(cell.Text()))
	})
	if len(cells) < 6 {
		return Company{}, fmt.Errorf("malformed result row: %d cells", len(cells))
	}

	company := Company{
		Court:         cells[1],
		Name:          cells[2],
		State:         cells[3],
		Status:        cells[4],
		StatusCurrent: strings.ReplaceAll(strings.ToUpper(cells[4]), " ", "_"),
		Documents:     cells[5],
		History:       parseHistory(cells),
	}

	if registerNum := extractRegisterNum(company.Court); registerNum != "" {
		registerNum = normalizeRegisterNum(registerNum, company.State)
		company.RegisterNum = &registerNum
	}

	return company, nil
}

// Extract parses a raw result document into company records, in grid
// order. A document without a result grid extracts to zero companies.
// Malformed rows are skipped, one broken entry should not void an
// otherwise usable result page.
func Extract(raw []byte) ([]Company, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse result document: %w", err)
	}

	companies := []Company{}
	grid := doc.Find("table[role=grid]").First()
	if grid.Length() == 0 {
		return companies, nil
	}

	grid.Find("tr").Each(func(_ int, row *goquery.Selection) {
		// entry rows carry a numeric row index, header and footer
		// rows do not
		index, ok := row.Attr("data-ri")
		if !ok {
			return
		}

		company, err := parseResultRow(row)
		if err != nil {
			slog.Warn("skipping result row", "index", index, "err", err)
			return
		}
		companies = append(companies, company)
	})

	return companies, nil
}
