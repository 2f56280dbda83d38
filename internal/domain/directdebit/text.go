package directdebit

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// unallowedASCII are printable ASCII characters outside the SEPA Latin
// character set. They are replaced by a dash.
const unallowedASCII = "\"#$%&*;<>=@[]^_`{}|~\\!"

// letters that do not decompose into a base letter plus marks
var ligatures = strings.NewReplacer(
	"ß", "ss", "Æ", "AE", "æ", "ae", "Œ", "OE", "œ", "oe",
	"Ø", "O", "ø", "o", "Ł", "L", "ł", "l", "Đ", "D", "đ", "d",
	"Þ", "TH", "þ", "th", "€", "EUR",
)

// ToASCII transliterates s to ASCII by stripping diacritics. Characters with
// no ASCII counterpart are dropped.
func ToASCII(s string) string {
	s = ligatures.Replace(s)
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return -1
		}
		return r
	}, out)
}

// SanitizeSEPAText transliterates s and replaces characters SEPA banks reject
func SanitizeSEPAText(s string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(unallowedASCII, r) {
			return '-'
		}
		return r
	}, ToASCII(s))
}

// truncate cuts s to at most max runes
func truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

// fieldPreparer renders text fields of one document with shared settings
type fieldPreparer struct {
	convertToASCII bool
}

// prepare cleans and truncates a value. Required empty values are rejected.
func (p fieldPreparer) prepare(label, value string, maxSize int, required bool) (string, error) {
	if p.convertToASCII {
		value = SanitizeSEPAText(value)
	}
	value = strings.TrimSpace(value)
	if value == "" && required {
		return "", MissingFieldError(label)
	}
	return truncate(value, maxSize), nil
}

// FileName returns the download name of a direct debit file for an order
// reference: sdd_<ascii reference>.xml with slashes turned into dashes.
func FileName(reference string) string {
	if reference == "" {
		return "sdd_error.xml"
	}
	return "sdd_" + ToASCII(strings.ReplaceAll(reference, "/", "-")) + ".xml"
}
