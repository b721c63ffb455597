// Package processors transforms raw model replies into stored results.
// Each chain step may declare an ordered list of processors; a step's
// reply flows through them left to right.
package processors

import (
	"context"
	"fmt"

	"github.com/go-viper/mapstructure/v2"

	"github.com/droverhq/drover/internal/models"
)

// Output is the result of one processor application. Content feeds the
// next processor in the chain; Parsed carries a structured value when
// the processor produced one.
type Output struct {
	Content string
	Parsed  any
}

// Processor is the interface for all reply transformations.
type Processor interface {
	// Name returns the processor's configured identifier
	Name() string

	// Kind returns the processor type
	Kind() models.ProcessorKind

	// Apply transforms one step reply
	Apply(ctx context.Context, content string) (*Output, error)
}

// Create builds a processor from its configured kind and parameters.
func Create(kind models.ProcessorKind, identifier string, params map[string]any) (Processor, error) {
	if params == nil {
		params = map[string]any{}
	}

	switch kind {
	case models.ProcessorKindTrim:
		var v *struct {
			Chars string
		}

		if err := mapstructure.Decode(params, &v); err != nil {
			return nil, err
		}

		return NewTrimProcessor(identifier, v.Chars), nil
	case models.ProcessorKindJSON:
		var v *struct {
			Strict bool
		}

		if err := mapstructure.Decode(params, &v); err != nil {
			return nil, err
		}

		return NewJSONProcessor(identifier, v.Strict), nil
	case models.ProcessorKindRegex:
		var v *struct {
			Pattern   string
			Group     int
			AllowMiss bool `mapstructure:"allow_miss"`
		}

		if err := mapstructure.Decode(params, &v); err != nil {
			return nil, err
		}

		return NewRegexProcessor(RegexProcessorArgs{
			Name:      identifier,
			Pattern:   v.Pattern,
			Group:     v.Group,
			AllowMiss: v.AllowMiss,
		})
	default:
		return nil, fmt.Errorf("'%s' is not a valid processor type", kind)
	}
}

// FromConfigs builds the processor chain for one step.
func FromConfigs(configs []models.ProcessorConfig) ([]Processor, error) {
	chain := make([]Processor, 0, len(configs))
	for _, cfg := range configs {
		proc, err := Create(cfg.Kind, cfg.Identifier, cfg.Parameters)
		if err != nil {
			return nil, fmt.Errorf("processor %q: %w", cfg.Identifier, err)
		}
		chain = append(chain, proc)
	}
	return chain, nil
}

// Run applies a processor chain in order. The last non-nil Parsed value
// wins; Content threads through every processor.
func Run(ctx context.Context, chain []Processor, content string) (*Output, error) {
	out := &Output{Content: content}
	for _, proc := range chain {
		next, err := proc.Apply(ctx, out.Content)
		if err != nil {
			return nil, fmt.Errorf("processor %q: %w", proc.Name(), err)
		}
		if next.Parsed != nil {
			out.Parsed = next.Parsed
		}
		out.Content = next.Content
	}
	return out, nil
}
