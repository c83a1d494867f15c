package dataset

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Format names a file format understood by ReadFile.
type Format string

const (
	FormatAuto Format = ""
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatXLSX Format = "xlsx"
)

// DetectFormat infers the format from a file extension.
func DetectFormat(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV
	case ".json":
		return FormatJSON
	case ".xlsx":
		return FormatXLSX
	default:
		return FormatAuto
	}
}

// ReadFile parses a dataset file into Records. It does not load them into a
// Dataset; the caller does that once all inputs are ready.
func ReadFile(ctx context.Context, path string, format Format) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if format == FormatAuto {
		format = DetectFormat(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()

	switch format {
	case FormatCSV:
		return ParseCSV(f)
	case FormatJSON:
		return ParseJSON(f)
	case FormatXLSX:
		return ParseXLSX(f, "")
	default:
		return nil, fmt.Errorf("unsupported dataset format for %s", path)
	}
}
