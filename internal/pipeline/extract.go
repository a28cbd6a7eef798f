package pipeline

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"
)

// PDFPlaceholder is returned for PDF uploads. Real PDF decoding is out of
// scope for this version; the string is passed to the model so the user
// gets an explanation instead of garbage transactions.
const PDFPlaceholder = "PDF processing requires additional libraries. Please use TXT or CSV files for the basic version."

// fieldSeparator joins CSV cell values into one prompt line per row.
const fieldSeparator = " | "

// FileReadError reports that a statement file could not be decoded into
// text. It is the client-facing failure class: the upload is rejected and
// nothing reaches the extraction service.
type FileReadError struct {
	Path string
	Err  error
}

func (e *FileReadError) Error() string {
	return fmt.Sprintf("reading file %s: %v", e.Path, e.Err)
}

func (e *FileReadError) Unwrap() error { return e.Err }

// ExtractText converts a statement file into plain text for the model
// prompt. The extension decides the strategy:
//
//	.txt  file content verbatim
//	.csv  header row dropped, data rows flattened field-by-field
//	.pdf  PDFPlaceholder (nominal support only)
//
// Any other extension fails with a *FileReadError. The upload filter
// already restricts uploads to these three, so that branch only fires when
// a caller bypasses it.
func ExtractText(path, ext string) (string, error) {
	switch strings.ToLower(ext) {
	case ".txt":
		content, err := os.ReadFile(path)
		if err != nil {
			return "", &FileReadError{Path: path, Err: err}
		}
		return string(content), nil

	case ".csv":
		return extractCSV(path)

	case ".pdf":
		return PDFPlaceholder, nil

	default:
		return "", &FileReadError{Path: path, Err: fmt.Errorf("unsupported file type %q", ext)}
	}
}

// extractCSV flattens a delimited statement into one text line per data
// row, preserving row and column order. The first record is treated as the
// header and skipped, matching how named-field CSV readers present rows.
func extractCSV(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", &FileReadError{Path: path, Err: err}
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return "", &FileReadError{Path: path, Err: err}
	}
	if len(records) <= 1 {
		return "", nil
	}

	lines := make([]string, 0, len(records)-1)
	for _, row := range records[1:] {
		lines = append(lines, strings.Join(row, fieldSeparator))
	}
	return strings.Join(lines, "\n"), nil
}
