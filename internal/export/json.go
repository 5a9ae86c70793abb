// Package export writes tagged records as JSON or XLSX and reads JSON
// record files back.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"

	"github.com/joseph-ayodele/pdf-tagger/internal/common"
	"github.com/joseph-ayodele/pdf-tagger/internal/metadata"
)

// Entry is one exported document.
type Entry struct {
	Path    string // absolute path of the PDF
	BaseDir string
	Record  *metadata.Record
}

// Rel is the folder of the document relative to BaseDir, "." at the base.
func (e Entry) Rel() string {
	if e.BaseDir == "" {
		return "."
	}
	rel, err := filepath.Rel(e.BaseDir, filepath.Dir(e.Path))
	if err != nil {
		return "."
	}
	return filepath.ToSlash(rel)
}

type location struct {
	FolderPathAbs    string `json:"folder_path_abs"`
	RelativePath     string `json:"relative_path"`
	BaseDirectoryAbs string `json:"base_directory_abs"`
	FileName         string `json:"file_name"`
}

// WriteJSON writes entries as an indented list. Each object carries the
// record fields next to the document location.
func WriteJSON(w io.Writer, entries []Entry) error {
	out := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		obj, err := toObject(e)
		if err != nil {
			return fmt.Errorf("export %s: %w", e.Path, err)
		}
		out = append(out, obj)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	return enc.Encode(out)
}

func toObject(e Entry) (map[string]any, error) {
	b, err := json.Marshal(e.Record)
	if err != nil {
		return nil, err
	}
	obj := map[string]any{}
	if err := json.Unmarshal(b, &obj); err != nil {
		return nil, err
	}
	obj["folder_path_abs"] = filepath.Dir(e.Path)
	obj["relative_path"] = e.Rel()
	obj["base_directory_abs"] = e.BaseDir
	obj["file_name"] = filepath.Base(e.Path)
	return obj, nil
}

// ReadJSON reads a list written by WriteJSON. Records are loaded verbatim;
// a "subject" key is accepted in place of "summary".
func ReadJSON(r io.Reader) ([]Entry, error) {
	var raw []json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, common.NewAppError("IMPORT_ERROR", "decode record list", err)
	}
	out := make([]Entry, 0, len(raw))
	for i, item := range raw {
		var loc location
		if err := json.Unmarshal(item, &loc); err != nil {
			return nil, common.NewAppError("IMPORT_ERROR", fmt.Sprintf("entry %d", i), err)
		}
		if loc.FileName == "" {
			return nil, common.NewAppError("IMPORT_ERROR", fmt.Sprintf("entry %d has no file_name", i), common.ErrValidation)
		}
		rec := metadata.New()
		if err := json.Unmarshal(item, rec); err != nil {
			return nil, common.NewAppError("IMPORT_ERROR", fmt.Sprintf("entry %d", i), err)
		}
		if rec.Summary == "" {
			var legacy struct {
				Subject           string `json:"subject"`
				SubjectConfidence int    `json:"subject_confidence"`
			}
			if json.Unmarshal(item, &legacy) == nil && legacy.Subject != "" {
				rec.SetSummary(legacy.Subject, legacy.SubjectConfidence)
			}
		}
		out = append(out, Entry{
			Path:    filepath.Join(loc.FolderPathAbs, loc.FileName),
			BaseDir: loc.BaseDirectoryAbs,
			Record:  rec,
		})
	}
	return out, nil
}
