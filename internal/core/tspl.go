package core

import (
	"fmt"
	"regexp"
	"strings"
)

// LabelSchema describes a TSPL2 label as positioned elements. Element content
// references job fields as {{field}}.
type LabelSchema struct {
	WidthMM  float64        `json:"width_mm" yaml:"width_mm"`
	HeightMM float64        `json:"height_mm" yaml:"height_mm"`
	GapMM    float64        `json:"gap_mm" yaml:"gap_mm"`
	DPI      int            `json:"dpi" yaml:"dpi"`
	Elements []LabelElement `json:"elements" yaml:"elements"`
}

type LabelElement struct {
	Type string `json:"type" yaml:"type"`
	X    int    `json:"x" yaml:"x"`
	Y    int    `json:"y" yaml:"y"`

	Content  string `json:"content,omitempty" yaml:"content"`
	Font     string `json:"font,omitempty" yaml:"font"`
	Rotation int    `json:"rotation,omitempty" yaml:"rotation"`
	XScale   int    `json:"x_scale,omitempty" yaml:"x_scale"`
	YScale   int    `json:"y_scale,omitempty" yaml:"y_scale"`

	Symbology string `json:"symbology,omitempty" yaml:"symbology"`
	Height    int    `json:"height,omitempty" yaml:"height"`
	Narrow    int    `json:"narrow,omitempty" yaml:"narrow"`
	Wide      int    `json:"wide,omitempty" yaml:"wide"`

	Level     string `json:"level,omitempty" yaml:"level"`
	CellWidth int    `json:"cell_width,omitempty" yaml:"cell_width"`

	XEnd      int `json:"x_end,omitempty" yaml:"x_end"`
	YEnd      int `json:"y_end,omitempty" yaml:"y_end"`
	Thickness int `json:"thickness,omitempty" yaml:"thickness"`

	Width int `json:"width,omitempty" yaml:"width"`
}

var placeholderRe = regexp.MustCompile(`\{\{(\w+)\}\}`)

func (s *LabelSchema) referencedFields() []string {
	seen := make(map[string]bool)
	var names []string
	for _, elem := range s.Elements {
		for _, m := range placeholderRe.FindAllStringSubmatch(elem.Content, -1) {
			if !seen[m[1]] {
				seen[m[1]] = true
				names = append(names, m[1])
			}
		}
	}
	return names
}

// generateTSPL renders one label. Every placeholder must resolve from fields.
func generateTSPL(schema *LabelSchema, fields map[string]string) (string, error) {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("SIZE %s mm, %s mm\n", trimFloat(schema.WidthMM), trimFloat(schema.HeightMM)))
	sb.WriteString(fmt.Sprintf("GAP %s mm, 0 mm\n", trimFloat(schema.GapMM)))
	sb.WriteString("DIRECTION 0\n")
	sb.WriteString("CLS\n")

	for i := range schema.Elements {
		cmd, err := generateElement(&schema.Elements[i], fields)
		if err != nil {
			return "", fmt.Errorf("element %d (%s): %w", i, schema.Elements[i].Type, err)
		}
		sb.WriteString(cmd)
		sb.WriteString("\n")
	}

	sb.WriteString("PRINT 1\n")
	return sb.String(), nil
}

func generateElement(elem *LabelElement, fields map[string]string) (string, error) {
	content, err := substitute(elem.Content, fields)
	if err != nil {
		return "", err
	}

	switch elem.Type {
	case "text":
		return fmt.Sprintf(`TEXT %d,%d,"%s",%d,%d,%d,"%s"`,
			elem.X, elem.Y, orDefault(elem.Font, "3"), elem.Rotation,
			orDefaultInt(elem.XScale, 1), orDefaultInt(elem.YScale, 1), content), nil
	case "barcode":
		narrow := orDefaultInt(elem.Narrow, 2)
		return fmt.Sprintf(`BARCODE %d,%d,"%s",%d,%d,%d,%d,%d,"%s"`,
			elem.X, elem.Y, orDefault(elem.Symbology, "128"), orDefaultInt(elem.Height, 80),
			elem.Rotation, narrow, orDefaultInt(elem.Wide, 2), narrow, content), nil
	case "qrcode":
		return fmt.Sprintf(`QRCODE %d,%d,%s,%d,%d,A,"%s"`,
			elem.X, elem.Y, orDefault(elem.Level, "M"), orDefaultInt(elem.CellWidth, 4), elem.Rotation, content), nil
	case "block":
		return fmt.Sprintf(`BLOCK %d,%d,%d,%d,"%s",%d,%d,%d,"%s"`,
			elem.X, elem.Y, elem.Width, elem.Height, orDefault(elem.Font, "3"), elem.Rotation,
			orDefaultInt(elem.XScale, 1), orDefaultInt(elem.YScale, 1), content), nil
	case "box":
		return fmt.Sprintf("BOX %d,%d,%d,%d,%d", elem.X, elem.Y, elem.XEnd, elem.YEnd, orDefaultInt(elem.Thickness, 1)), nil
	case "line":
		return fmt.Sprintf("BAR %d,%d,%d,%d", elem.X, elem.Y, elem.Width, orDefaultInt(elem.Thickness, 1)), nil
	default:
		return "", fmt.Errorf("%w: unsupported element type %q", ErrTemplateMalformed, elem.Type)
	}
}

func substitute(content string, fields map[string]string) (string, error) {
	var missing string
	out := placeholderRe.ReplaceAllStringFunc(content, func(match string) string {
		name := match[2 : len(match)-2]
		v, ok := fields[name]
		if !ok {
			if missing == "" {
				missing = name
			}
			return match
		}
		return escapeTSPLString(v)
	})
	if missing != "" {
		return "", fmt.Errorf("%w: %q", ErrTemplateFieldMissing, missing)
	}
	return out, nil
}

func escapeTSPLString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	s = strings.ReplaceAll(s, "\n", "\\n")
	s = strings.ReplaceAll(s, "\r", "\\r")
	s = strings.ReplaceAll(s, "\t", "\\t")
	return s
}

func trimFloat(f float64) string {
	return strings.TrimSuffix(pyFloat(f), ".0")
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func orDefaultInt(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}
