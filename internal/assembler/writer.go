package assembler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	derrors "diarizer/internal/errors"
)

// DefaultSuffix is appended to the audio file stem to name the sidecar
const DefaultSuffix = "speakers"

const writeStage = "write result"

// SidecarPath returns <dir>/<stem>_<suffix>.json for audioPath
func SidecarPath(audioPath, suffix string) string {
	if suffix == "" {
		suffix = DefaultSuffix
	}
	stem := strings.TrimSuffix(audioPath, filepath.Ext(audioPath))
	return stem + "_" + suffix + ".json"
}

// JSONWriter serializes results as indented UTF-8 JSON
type JSONWriter struct {
	logger *zap.Logger
}

// NewJSONWriter creates a new JSONWriter
func NewJSONWriter(logger *zap.Logger) *JSONWriter {
	return &JSONWriter{logger: logger}
}

// Encode writes result to w with two-space indentation and without HTML escaping
func (jw *JSONWriter) Encode(w io.Writer, result *Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	return nil
}

// WriteFile replaces path with the encoded result. The document is written to
// a temporary file in the same directory, synced, and renamed into place, so
// path holds either the previous content or the complete new document.
func (jw *JSONWriter) WriteFile(path string, result *Result) error {
	var buf bytes.Buffer
	if err := jw.Encode(&buf, result); err != nil {
		return jw.fail(path, err)
	}

	dir := filepath.Dir(path)
	tempFile := filepath.Join(dir, "."+filepath.Base(path)+"."+uuid.NewString()+".tmp")
	defer os.Remove(tempFile) // no-op once renamed

	out, err := os.OpenFile(tempFile, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return jw.fail(path, fmt.Errorf("failed to create temporary file: %w", err))
	}

	if _, err := out.Write(buf.Bytes()); err != nil {
		out.Close()
		return jw.fail(path, fmt.Errorf("failed to write temporary file: %w", err))
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return jw.fail(path, fmt.Errorf("failed to sync temporary file: %w", err))
	}
	if err := out.Close(); err != nil {
		return jw.fail(path, fmt.Errorf("failed to close temporary file: %w", err))
	}

	if err := os.Rename(tempFile, path); err != nil {
		return jw.fail(path, fmt.Errorf("failed to move result to final location: %w", err))
	}

	jw.logger.Info("result written",
		zap.String("path", path),
		zap.Int("turns", len(result.Segments)),
		zap.Int("bytes", buf.Len()))
	return nil
}

func (jw *JSONWriter) fail(path string, err error) error {
	jw.logger.Error("failed to write result", zap.String("path", path), zap.Error(err))
	e := derrors.Wrap(derrors.KindSerialization, writeStage, err)
	e.Path = path
	return e
}

// ReadFile parses a result document written by WriteFile
func ReadFile(path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read result file: %w", err)
	}
	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse result file %s: %w", path, err)
	}
	return &result, nil
}
