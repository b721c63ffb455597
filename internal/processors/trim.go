package processors

import (
	"context"
	"strings"

	"github.com/droverhq/drover/internal/models"
)

// trimProcessor strips surrounding whitespace, or a configured cutset,
// from a reply.
type trimProcessor struct {
	name  string
	chars string
}

func NewTrimProcessor(name, chars string) *trimProcessor {
	return &trimProcessor{name: name, chars: chars}
}

func (tp *trimProcessor) Name() string               { return tp.name }
func (tp *trimProcessor) Kind() models.ProcessorKind { return models.ProcessorKindTrim }

func (tp *trimProcessor) Apply(ctx context.Context, content string) (*Output, error) {
	if tp.chars != "" {
		return &Output{Content: strings.Trim(content, tp.chars)}, nil
	}
	return &Output{Content: strings.TrimSpace(content)}, nil
}
