// Package export writes statistics to xlsx, yaml and json files.
package export

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Format is an output file format.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatFromPath infers the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return FormatXLSX, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	}
	return "", eris.Errorf("export: unsupported file type %q", filepath.Ext(path))
}

// Document is one exportable result: the structured value for yaml/json and
// its tabular rendering for xlsx.
type Document struct {
	Value  any
	Tables []Table
}

// Table is one worksheet.
type Table struct {
	Name   string
	Header []string
	Rows   [][]string
}

// Write saves doc to path in the format implied by its extension.
func Write(path string, doc Document) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	if format == FormatXLSX {
		return WriteXLSX(path, doc.Tables)
	}

	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "export: create %s", path)
	}
	defer f.Close() //nolint:errcheck

	if format == FormatYAML {
		err = WriteYAML(f, doc.Value)
	} else {
		err = WriteJSON(f, doc.Value)
	}
	if err != nil {
		return err
	}
	return eris.Wrapf(f.Close(), "export: close %s", path)
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return eris.Wrap(err, "export: marshal json")
	}
	raw = append(raw, '\n')
	_, err = w.Write(raw)
	return eris.Wrap(err, "export: write json")
}

// WriteYAML writes v as YAML using the same field names as the JSON output.
func WriteYAML(w io.Writer, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return eris.Wrap(err, "export: marshal yaml")
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return eris.Wrap(err, "export: marshal yaml")
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(generic); err != nil {
		return eris.Wrap(err, "export: write yaml")
	}
	return eris.Wrap(enc.Close(), "export: write yaml")
}
