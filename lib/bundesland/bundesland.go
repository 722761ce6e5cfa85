// Package bundesland maps the 16 German federal states between their
// two-letter codes, canonical German names and common German/English
// aliases.
package bundesland

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

type Code string

const (
	BW Code = "BW"
	BY Code = "BY"
	BE Code = "BE"
	BR Code = "BR"
	HB Code = "HB"
	HH Code = "HH"
	HE Code = "HE"
	MV Code = "MV"
	NI Code = "NI"
	NW Code = "NW"
	RP Code = "RP"
	SL Code = "SL"
	SN Code = "SN"
	ST Code = "ST"
	SH Code = "SH"
	TH Code = "TH"
)

type State struct {
	Code   Code
	NameDE string
}

// declaration order matters, List and the API expose it as-is
var states = []State{
	{BW, "Baden-Württemberg"},
	{BY, "Bayern"},
	{BE, "Berlin"},
	{BR, "Brandenburg"},
	{HB, "Bremen"},
	{HH, "Hamburg"},
	{HE, "Hessen"},
	{MV, "Mecklenburg-Vorpommern"},
	{NI, "Niedersachsen"},
	{NW, "Nordrhein-Westfalen"},
	{RP, "Rheinland-Pfalz"},
	{SL, "Saarland"},
	{SN, "Sachsen"},
	{ST, "Sachsen-Anhalt"},
	{SH, "Schleswig-Holstein"},
	{TH, "Thüringen"},
}

var nameToCode = map[string]Code{
	"baden-württemberg":             BW,
	"baden-wuerttemberg":            BW,
	"baden württemberg":             BW,
	"baden wuerttemberg":            BW,
	"bayern":                        BY,
	"bavaria":                       BY,
	"berlin":                        BE,
	"brandenburg":                   BR,
	"bremen":                        HB,
	"hamburg":                       HH,
	"hessen":                        HE,
	"hesse":                         HE,
	"mecklenburg-vorpommern":        MV,
	"mecklenburg vorpommern":        MV,
	"mecklenburg-western pomerania": MV,
	"mecklenburg western pomerania": MV,
	"niedersachsen":                 NI,
	"lower saxony":                  NI,
	"nordrhein-westfalen":           NW,
	"nordrhein westfalen":           NW,
	"north rhine-westphalia":        NW,
	"north rhine westphalia":        NW,
	"rheinland-pfalz":               RP,
	"rheinland pfalz":               RP,
	"rhineland-palatinate":          RP,
	"rhineland palatinate":          RP,
	"saarland":                      SL,
	"sachsen":                       SN,
	"saxony":                        SN,
	"sachsen-anhalt":                ST,
	"sachsen anhalt":                ST,
	"saxony-anhalt":                 ST,
	"saxony anhalt":                 ST,
	"schleswig-holstein":            SH,
	"schleswig holstein":            SH,
	"thüringen":                     TH,
	"thueringen":                    TH,
	"thuringia":                     TH,
}

var codes = func() map[Code]string {
	m := make(map[Code]string, len(states))
	for _, s := range states {
		m[s.Code] = s.NameDE
	}
	return m
}()

// strips combining marks so spellings like "Thu¨ringen" still resolve
var foldMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

var foldedNameToCode = func() map[string]Code {
	m := make(map[string]Code, len(nameToCode))
	for name, code := range nameToCode {
		folded, _, err := transform.String(foldMarks, name)
		if err != nil {
			continue
		}
		m[folded] = code
	}
	return m
}()

// List returns all 16 states in declaration order.
func List() []State {
	out := make([]State, len(states))
	copy(out, states)
	return out
}

// Name returns the canonical German name for a code.
func Name(code Code) (string, bool) {
	name, ok := codes[code]
	return name, ok
}

// FormField returns the portal's per-state checkbox name for a code.
func FormField(code Code) string {
	return fmt.Sprintf("bundesland%s", code)
}

// Resolve maps a state name (German or English) or a two-letter code to
// the state code. Lookup is case-insensitive and never partial: input
// that matches nothing reports ok=false.
func Resolve(nameOrCode string) (Code, bool) {
	normalized := strings.ToLower(strings.TrimSpace(nameOrCode))
	if normalized == "" {
		return "", false
	}

	if _, ok := codes[Code(strings.ToUpper(normalized))]; ok {
		return Code(strings.ToUpper(normalized)), true
	}
	if code, ok := nameToCode[normalized]; ok {
		return code, true
	}

	// last resort: fold diacritics, so decomposed or otherwise unlisted
	// unicode spellings of the German names still hit the alias table
	folded, _, err := transform.String(foldMarks, normalized)
	if err != nil {
		return "", false
	}
	code, ok := foldedNameToCode[folded]
	return code, ok
}
