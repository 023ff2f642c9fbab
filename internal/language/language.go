package language

import (
	"strings"

	xlanguage "golang.org/x/text/language"
)

// DefaultCode is assumed when a brief names no language.
const DefaultCode = "en"

// names maps English language names that briefs commonly use.
var names = map[string]string{
	"english":    "en",
	"spanish":    "es",
	"french":     "fr",
	"german":     "de",
	"italian":    "it",
	"portuguese": "pt",
	"japanese":   "ja",
	"korean":     "ko",
	"chinese":    "zh",
	"mandarin":   "zh",
	"russian":    "ru",
	"arabic":     "ar",
	"hindi":      "hi",
	"dutch":      "nl",
	"polish":     "pl",
	"swedish":    "sv",
	"danish":     "da",
	"norwegian":  "no",
	"finnish":    "fi",
}

// bibliographic holds ISO 639-2/B codes, which BCP 47 parsing does not
// accept.
var bibliographic = map[string]string{
	"fre": "fr",
	"ger": "de",
	"dut": "nl",
	"chi": "zh",
}

// base resolves code to a language subtag. ok is false when nothing matched.
func base(code string) (xlanguage.Base, bool) {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return xlanguage.Base{}, false
	}
	if iso2, found := names[code]; found {
		code = iso2
	} else if iso2, found := bibliographic[code]; found {
		code = iso2
	}
	tag, err := xlanguage.Parse(code)
	if err != nil {
		return xlanguage.Base{}, false
	}
	b, confidence := tag.Base()
	return b, confidence != xlanguage.No
}

// Normalize maps code to its shortest ISO 639 form. Blank input yields
// DefaultCode; unrecognized input is returned lowercased.
func Normalize(code string) string {
	if strings.TrimSpace(code) == "" {
		return DefaultCode
	}
	if b, ok := base(code); ok {
		return b.String()
	}
	return strings.ToLower(strings.TrimSpace(code))
}

// Tag returns the x/text tag for code, or und when it is unrecognized.
// Callers use it to pick locale-aware casing rules.
func Tag(code string) xlanguage.Tag {
	b, ok := base(code)
	if !ok {
		return xlanguage.Und
	}
	tag, err := xlanguage.Compose(b)
	if err != nil {
		return xlanguage.Und
	}
	return tag
}
