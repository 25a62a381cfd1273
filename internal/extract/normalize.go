package extract

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/fieldset/fieldset-api/internal/models"
)

var (
	phoneKeyRe   = regexp.MustCompile(`(?i)phone|tel|fax`)
	addressKeyRe = regexp.MustCompile(`(?i)address|location`)
	companyKeyRe = regexp.MustCompile(`(?i)company.?name`)
	nonDigitRe   = regexp.MustCompile(`\D`)
)

// usStates maps full US state names (plus DC) to their 2-letter codes.
var usStates = map[string]string{
	"alabama": "AL", "alaska": "AK", "arizona": "AZ", "arkansas": "AR",
	"california": "CA", "colorado": "CO", "connecticut": "CT", "delaware": "DE",
	"florida": "FL", "georgia": "GA", "hawaii": "HI", "idaho": "ID",
	"illinois": "IL", "indiana": "IN", "iowa": "IA", "kansas": "KS",
	"kentucky": "KY", "louisiana": "LA", "maine": "ME", "maryland": "MD",
	"massachusetts": "MA", "michigan": "MI", "minnesota": "MN", "mississippi": "MS",
	"missouri": "MO", "montana": "MT", "nebraska": "NE", "nevada": "NV",
	"new hampshire": "NH", "new jersey": "NJ", "new mexico": "NM", "new york": "NY",
	"north carolina": "NC", "north dakota": "ND", "ohio": "OH", "oklahoma": "OK",
	"oregon": "OR", "pennsylvania": "PA", "rhode island": "RI", "south carolina": "SC",
	"south dakota": "SD", "tennessee": "TN", "texas": "TX", "utah": "UT",
	"vermont": "VT", "virginia": "VA", "washington": "WA", "west virginia": "WV",
	"wisconsin": "WI", "wyoming": "WY", "district of columbia": "DC",
}

// stateRes holds one precompiled pattern per state, longest names first so
// "west virginia" wins over "virginia".
var stateRes = func() []struct {
	re   *regexp.Regexp
	code string
} {
	names := make([]string, 0, len(usStates))
	for name := range usStates {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return len(names[i]) > len(names[j]) })

	out := make([]struct {
		re   *regexp.Regexp
		code string
	}, 0, len(names))
	for _, name := range names {
		out = append(out, struct {
			re   *regexp.Regexp
			code string
		}{
			re:   regexp.MustCompile(`(?i)\b` + strings.ReplaceAll(name, " ", `\s+`) + `\b`),
			code: usStates[name],
		})
	}
	return out
}()

// streetSuffixes maps full street suffixes to their postal abbreviations.
var streetSuffixes = map[string]string{
	"street": "St", "avenue": "Ave", "boulevard": "Blvd", "drive": "Dr",
	"lane": "Ln", "road": "Rd", "court": "Ct", "place": "Pl", "circle": "Cir",
	"trail": "Trl", "way": "Way", "highway": "Hwy", "parkway": "Pkwy",
	"terrace": "Ter", "square": "Sq",
}

// businessSuffixes are preserved verbatim at the end of a company name.
var businessSuffixes = []string{
	"Inc.", "Inc", "LLC", "Ltd.", "Ltd", "Corp.", "Corp", "Co.", "Co",
	"LP", "LLP", "PLC", "GmbH", "S.A.", "AG", "N.V.", "Pty.", "Pty", "P.C.",
}

// Normalize canonicalizes values in place after synthesis, keyed by
// field-name heuristics. Non-string values pass through untouched.
func Normalize(values []models.ExtractedFieldValue) {
	for i := range values {
		s, ok := values[i].Value.(string)
		if !ok {
			continue
		}
		switch {
		case phoneKeyRe.MatchString(values[i].Key):
			values[i].Value = normalizePhone(s)
		case addressKeyRe.MatchString(values[i].Key):
			values[i].Value = normalizeAddress(s)
		case companyKeyRe.MatchString(values[i].Key):
			values[i].Value = normalizeCompanyName(s)
		}
	}
}

// normalizePhone formats 10-digit (or 1-prefixed 11-digit) North American
// numbers; anything else comes back trimmed but otherwise untouched.
func normalizePhone(s string) string {
	digits := nonDigitRe.ReplaceAllString(s, "")
	switch {
	case len(digits) == 10:
		return fmt.Sprintf("+1 (%s) %s-%s", digits[0:3], digits[3:6], digits[6:10])
	case len(digits) == 11 && digits[0] == '1':
		return fmt.Sprintf("+1 (%s) %s-%s", digits[1:4], digits[4:7], digits[7:11])
	default:
		return strings.TrimSpace(s)
	}
}

func normalizeAddress(s string) string {
	s = strings.Join(strings.Fields(s), " ")

	// State names first; multi-word names would be broken by per-word passes.
	for _, st := range stateRes {
		s = st.re.ReplaceAllString(s, st.code)
	}

	words := strings.Split(s, " ")
	for i, w := range words {
		trimmed := strings.TrimRight(w, ",.")
		if abbr, ok := streetSuffixes[strings.ToLower(trimmed)]; ok {
			words[i] = abbr + w[len(trimmed):]
		}
	}
	return strings.Join(words, " ")
}

func normalizeCompanyName(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return s
	}

	suffix := ""
	for _, candidate := range businessSuffixes {
		if strings.EqualFold(s, candidate) {
			break
		}
		if len(s) > len(candidate)+1 && strings.EqualFold(s[len(s)-len(candidate):], candidate) &&
			(s[len(s)-len(candidate)-1] == ' ' || s[len(s)-len(candidate)-1] == ',') {
			suffix = candidate
			s = strings.TrimRight(s[:len(s)-len(candidate)], " ,")
			break
		}
	}

	words := strings.Split(s, " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	titled := strings.Join(words, " ")

	if suffix != "" {
		return titled + " " + suffix
	}
	return titled
}
