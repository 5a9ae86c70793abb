package metadata

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Confidences assigned to local evidence.
const (
	FilenameDateConfidence  = 10
	FilenameTitleConfidence = 6
	PathTagConfidence       = 6
	InfoFieldConfidence     = 9
	InfoKeywordConfidence   = 7
)

var (
	reTitleJunk  = regexp.MustCompile(`[^\p{L}\p{N}_\s.-]`)
	reTitleEdges = regexp.MustCompile(`^-|(?i)\.pdf$`)
	reTagConfs   = regexp.MustCompile(`tag_confidence=([\d,]+)`)
	reAutoSuffix = regexp.MustCompile(` - Metadata automatically updated, .*`)
)

// DocumentInfo is the subset of a PDF info dictionary used as evidence.
type DocumentInfo struct {
	Title        string
	Subject      string
	Keywords     string
	Author       string
	CreationDate string
}

// ApplyFilename derives a creation date and a title from a file name.
func (r *Record) ApplyFilename(name string) {
	base := filepath.Base(name)
	if t, _, ok := FindDate(base); ok {
		r.SetCreationTime(t, FilenameDateConfidence)
	}
	if title := TitleFromFilename(base); title != "" {
		r.SetTitle(title, FilenameTitleConfidence)
	}
}

// TitleFromFilename strips dates, the .pdf suffix and stray characters.
func TitleFromFilename(name string) string {
	s := filepath.Base(name)
	for _, f := range dateFormats {
		s = strings.TrimSpace(f.re.ReplaceAllString(s, ""))
	}
	s = reTitleJunk.ReplaceAllString(s, "")
	s = reTitleEdges.ReplaceAllString(s, "")
	s = strings.Trim(s, " _-")
	return strings.Join(strings.Fields(strings.ReplaceAll(s, "_", " ")), " ")
}

// ApplyRelativePath turns each folder of rel into a tag.
func (r *Record) ApplyRelativePath(rel string) {
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		part = strings.TrimSpace(part)
		if part == "" || part == "." || part == ".." {
			continue
		}
		r.AddTags(Tag{Name: part, Confidence: PathTagConfidence})
	}
}

// ApplyInfo takes title, subject, creation date and keywords from the PDF
// info dictionary. Keywords written by a previous run carry their own
// confidences in a "tag_confidence=" suffix.
func (r *Record) ApplyInfo(info DocumentInfo) {
	if s := strings.TrimSpace(info.Title); s != "" {
		r.SetTitle(s, InfoFieldConfidence)
	}
	if s := strings.TrimSpace(info.Subject); s != "" {
		r.SetSummary(s, InfoFieldConfidence)
	}
	if s := strings.TrimSpace(info.Author); s != "" {
		r.SetCreator(s, InfoFieldConfidence)
	}
	if s := strings.TrimSpace(info.CreationDate); s != "" {
		if t, ok := ParsePDFDate(s); ok {
			r.SetCreationTime(t, InfoFieldConfidence)
		} else {
			r.SetCreationDate(s, InfoFieldConfidence)
		}
	}
	if s := strings.TrimSpace(info.Keywords); s != "" {
		r.AddTags(ParseKeywords(s)...)
	}
}

// ParseKeywords splits a keywords entry into tags.
func ParseKeywords(s string) []Tag {
	var confs []int
	if m := reTagConfs.FindStringSubmatch(s); m != nil {
		for _, p := range strings.Split(m[1], ",") {
			if c, err := strconv.Atoi(p); err == nil {
				confs = append(confs, c)
			}
		}
		s = reAutoSuffix.ReplaceAllString(s, "")
	}
	var out []Tag
	for i, kw := range strings.Split(s, ",") {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		c := InfoKeywordConfidence
		if i < len(confs) {
			c = confs[i]
		}
		out = append(out, Tag{Name: kw, Confidence: c})
	}
	return out
}

// KeywordsString renders tags in the format ParseKeywords reads back.
func (r *Record) KeywordsString() string {
	if len(r.Tags) == 0 {
		return ""
	}
	names := make([]string, len(r.Tags))
	confs := make([]string, len(r.Tags))
	for i, t := range r.Tags {
		names[i] = t.Name
		confs[i] = strconv.Itoa(t.Confidence)
	}
	return strings.Join(names, ", ") +
		" - Metadata automatically updated, title_confidence=" + strconv.Itoa(r.TitleConfidence) +
		", summary_confidence=" + strconv.Itoa(r.SummaryConfidence) +
		", creation_date_confidence=" + strconv.Itoa(r.CreationDateConfidence) +
		", tag_confidence=" + strings.Join(confs, ",")
}
