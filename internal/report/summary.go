package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vnykmshr/threadsearch/pkg/common/validation"
	"github.com/vnykmshr/threadsearch/pkg/scheduling/dispatcher"
)

// Summary formats.
const (
	FormatNone = "none"
	FormatYAML = "yaml"
	FormatJSON = "json"
)

// Summary describes a finished run.
type Summary struct {
	dispatcher.Stats `yaml:",inline"`

	Workers int    `json:"workers" yaml:"workers"`
	Mode    string `json:"mode" yaml:"mode"`
	Error   string `json:"error,omitempty" yaml:"error,omitempty"`
}

// ValidateFormat checks that format is one WriteSummary understands.
func ValidateFormat(format string) error {
	if format == "" {
		return nil
	}
	return validation.ValidateOneOf("report", "summary", format, FormatNone, FormatYAML, FormatJSON)
}

// WriteSummary encodes s to w. An empty format or FormatNone writes nothing.
func WriteSummary(w io.Writer, format string, s Summary) error {
	if err := ValidateFormat(format); err != nil {
		return err
	}
	switch strings.ToLower(format) {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(s); err != nil {
			return fmt.Errorf("encode summary: %w", err)
		}
		return enc.Close()
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(s); err != nil {
			return fmt.Errorf("encode summary: %w", err)
		}
	}
	return nil
}
