package pairstore

import (
	"fmt"
	"io"
	"strings"

	"github.com/openmined/davsync/internal/sync"
	"github.com/openmined/davsync/internal/utils"
	"gopkg.in/yaml.v3"
)

// Document is the export format of the pair list.
type Document struct {
	Pairs []sync.Pair `json:"pairs" yaml:"pairs"`
}

type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatFromPath picks the format by file extension, YAML by default.
func FormatFromPath(p string) Format {
	if strings.HasSuffix(strings.ToLower(p), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

func WriteDocument(w io.Writer, format Format, doc Document) error {
	switch format {
	case FormatJSON:
		data, err := utils.JSONMarshalIndent(doc, "", "  ")
		if err != nil {
			return err
		}
		_, err = w.Write(append(data, '\n'))
		return err
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

func ReadDocument(r io.Reader, format Format) (Document, error) {
	var doc Document
	switch format {
	case FormatJSON:
		data, err := io.ReadAll(r)
		if err != nil {
			return doc, err
		}
		err = utils.JSONUnmarshal(data, &doc)
		return doc, err
	case FormatYAML:
		err := yaml.NewDecoder(r).Decode(&doc)
		if err == io.EOF {
			err = nil
		}
		return doc, err
	default:
		return doc, fmt.Errorf("unknown format %q", format)
	}
}
