package metadata

import (
	"regexp"
	"strings"
	"time"
)

// DateLayout is the canonical rendering of a creation date.
const DateLayout = "2006-01-02"

type dateFormat struct {
	re     *regexp.Regexp
	layout string
}

// dateFormats is checked in order; the first pattern that parses wins.
var dateFormats = []dateFormat{
	{regexp.MustCompile(`\d{4}-\d{2}-\d{2}`), "2006-01-02"},
	{regexp.MustCompile(`\d{4}_\d{2}_\d{2}`), "2006_01_02"},
	{regexp.MustCompile(`\d{4} \d{2} \d{2}`), "2006 01 02"},
	{regexp.MustCompile(`\d{8}`), "20060102"},
	{regexp.MustCompile(`\d{4}-[a-zA-Z]{3}-\d{2}`), "2006-Jan-02"},
	{regexp.MustCompile(`\d{4}_[a-zA-Z]{3}_\d{2}`), "2006_Jan_02"},
	{regexp.MustCompile(`\d{4} [a-zA-Z]{3} \d{2}`), "2006 Jan 02"},
	{regexp.MustCompile(`\d{2}-[a-zA-Z]{3}-\d{4}`), "02-Jan-2006"},
	{regexp.MustCompile(`\d{2}_[a-zA-Z]{3}_\d{4}`), "02_Jan_2006"},
	{regexp.MustCompile(`\d{2} [a-zA-Z]{3} \d{4}`), "02 Jan 2006"},
}

// ParseDate parses a value that starts with one of the known date formats.
// Trailing content such as a time of day is ignored.
func ParseDate(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}
	for _, f := range dateFormats {
		loc := f.re.FindStringIndex(s)
		if loc == nil || loc[0] != 0 {
			continue
		}
		if t, err := time.Parse(f.layout, s[:loc[1]]); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FindDate searches anywhere in s (typically a filename) for a known date.
// It returns the parsed date and the matched substring.
func FindDate(s string) (time.Time, string, bool) {
	for _, f := range dateFormats {
		for _, m := range f.re.FindAllString(s, -1) {
			if t, err := time.Parse(f.layout, m); err == nil {
				return t, m, true
			}
		}
	}
	return time.Time{}, "", false
}

var rePDFDate = regexp.MustCompile(`^D?:?(\d{4})(\d{2})?(\d{2})?`)

// ParsePDFDate parses the date portion of a PDF date string such as
// "D:20150919085148Z00'00'". Only year, month and day are kept.
func ParsePDFDate(raw string) (time.Time, bool) {
	m := rePDFDate.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return time.Time{}, false
	}
	month, day := m[2], m[3]
	if month == "" {
		month = "01"
	}
	if day == "" {
		day = "01"
	}
	t, err := time.Parse("20060102", m[1]+month+day)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
