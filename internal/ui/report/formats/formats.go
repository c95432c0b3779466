// # internal/ui/report/formats/formats.go
package formats

import (
	"assettree/internal/core/errors"
	"assettree/internal/engine/tree"
	"encoding/json"
	"fmt"
	"strings"
)

type Format string

const (
	FormatText     Format = "text"
	FormatJSON     Format = "json"
	FormatMermaid  Format = "mermaid"
	FormatDOT      Format = "dot"
	FormatPlantUML Format = "plantuml"
	FormatMarkdown Format = "markdown"
	FormatTSV      Format = "tsv"
	FormatCSV      Format = "csv"
)

var allFormats = []Format{FormatText, FormatJSON, FormatMermaid, FormatDOT, FormatPlantUML, FormatMarkdown, FormatTSV, FormatCSV}

// All lists the supported formats in display order.
func All() []Format {
	return append([]Format(nil), allFormats...)
}

// ParseFormat accepts a format name case-insensitively; "" means text.
func ParseFormat(raw string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(raw)))
	if f == "" {
		return FormatText, nil
	}
	for _, known := range allFormats {
		if f == known {
			return f, nil
		}
	}
	return "", errors.New(errors.CodeValidationError, fmt.Sprintf("unknown render format %q", raw))
}

// Render produces the tree in the requested format.
func Render(t *tree.Tree, format Format) (string, error) {
	switch format {
	case FormatText, "":
		return t.Text(), nil
	case FormatJSON:
		data, err := json.MarshalIndent(t.Nested(), "", "  ")
		if err != nil {
			return "", fmt.Errorf("encode tree: %w", err)
		}
		return string(data) + "\n", nil
	case FormatMermaid:
		return NewMermaidGenerator(t).Generate()
	case FormatDOT:
		return NewDOTGenerator(t).Generate()
	case FormatPlantUML:
		return NewPlantUMLGenerator(t).Generate()
	case FormatMarkdown:
		return NewMarkdownGenerator(t).Generate()
	case FormatTSV:
		return NewTableGenerator(t, '\t').Generate()
	case FormatCSV:
		return NewTableGenerator(t, ',').Generate()
	default:
		return "", errors.New(errors.CodeValidationError, fmt.Sprintf("unknown render format %q", format))
	}
}
