// Package upload validates and parses user-uploaded files into plain text.
// Supported types are PDF, Markdown and plain text.
package upload

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
)

const (
	// MaxFileSize is the upload limit per file.
	MaxFileSize = 10 * 1024 * 1024

	// MaxFiles is the upload limit per request.
	MaxFiles = 10
)

var allowedExtensions = []string{".pdf", ".md", ".txt"}

// ValidationError reports a rejected file. Its message is safe to return
// to the client.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

// IsValidationError reports whether err is a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// File is one uploaded file before parsing.
type File struct {
	Name string
	Size int64
	Data []byte
}

// Validate rejects files over the size limit or with an unsupported
// extension. It checks metadata only; parse errors surface later from
// Parse.
func Validate(f File) error {
	if f.Size > MaxFileSize {
		return &ValidationError{msg: fmt.Sprintf(
			"File %q exceeds 10MB limit (%.1fMB)", f.Name, float64(f.Size)/1024/1024)}
	}

	ext := strings.ToLower(filepath.Ext(f.Name))
	for _, allowed := range allowedExtensions {
		if ext == allowed {
			return nil
		}
	}
	return &ValidationError{msg: fmt.Sprintf(
		"File %q has unsupported type. Allowed: %s", f.Name, strings.Join(allowedExtensions, ", "))}
}

var frontmatter = regexp.MustCompile(`(?s)^---\s*\n.*?\n---\s*\n`)

// Parse extracts plain text from the file. Markdown loses its YAML
// frontmatter, PDFs are reduced to their text layer, and anything else
// passes through as-is. A broken PDF yields a ValidationError.
func Parse(f File) (string, error) {
	switch strings.ToLower(filepath.Ext(f.Name)) {
	case ".pdf":
		text, err := extractPDF(f.Data)
		if err != nil {
			return "", &ValidationError{msg: fmt.Sprintf(
				"File %q could not be parsed. Make sure it's a valid PDF.", f.Name)}
		}
		return text, nil
	case ".md":
		return strings.TrimSpace(frontmatter.ReplaceAllString(string(f.Data), "")), nil
	default:
		return string(f.Data), nil
	}
}

func extractPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}

	textReader, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, textReader); err != nil {
		return "", fmt.Errorf("reading pdf text: %w", err)
	}
	return buf.String(), nil
}
