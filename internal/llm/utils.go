package llm

import (
	"encoding/base64"
	"strings"
)

// DataURL encodes b as a data: URL. An empty mime type defaults to PNG.
func DataURL(b []byte, mimeType string) string {
	if mimeType == "" {
		mimeType = "image/png"
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(b)
}

// ImageFormat returns the short format name of a mime type ("image/png" -> "png").
func ImageFormat(mimeType string) string {
	if i := strings.IndexByte(mimeType, '/'); i >= 0 {
		return mimeType[i+1:]
	}
	if mimeType == "" {
		return "png"
	}
	return mimeType
}

// SystemAndUser splits messages into the joined system text and the rest.
func SystemAndUser(msgs []Message) (string, []Message) {
	var sys []string
	var rest []Message
	for _, m := range msgs {
		if m.Role == "system" {
			sys = append(sys, m.Content)
			continue
		}
		rest = append(rest, m)
	}
	return strings.Join(sys, "\n"), rest
}

// Truncate shortens s to at most max bytes for logging.
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
