package processors

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/droverhq/drover/internal/models"
)

// jsonProcessor decodes a reply as JSON, unwrapping a markdown code
// fence first when the model emits one. In non-strict mode a reply that
// refuses to parse passes through untouched.
type jsonProcessor struct {
	name   string
	strict bool
}

func NewJSONProcessor(name string, strict bool) *jsonProcessor {
	return &jsonProcessor{name: name, strict: strict}
}

func (jp *jsonProcessor) Name() string               { return jp.name }
func (jp *jsonProcessor) Kind() models.ProcessorKind { return models.ProcessorKindJSON }

func (jp *jsonProcessor) Apply(ctx context.Context, content string) (*Output, error) {
	candidate := strings.TrimSpace(content)
	if block, ok := extractFencedBlock([]byte(content)); ok {
		candidate = strings.TrimSpace(block)
	}

	var parsed any
	if err := json.Unmarshal([]byte(candidate), &parsed); err != nil {
		if jp.strict {
			return nil, fmt.Errorf("parsing reply as JSON: %w", err)
		}
		// model went off-script, keep the raw reply
		return &Output{Content: content}, nil
	}

	return &Output{Content: candidate, Parsed: parsed}, nil
}

// extractFencedBlock returns the body of the reply's ```json fence,
// falling back to the first fence of any language.
func extractFencedBlock(source []byte) (string, bool) {
	md := goldmark.New()
	reader := text.NewReader(source)
	doc := md.Parser().Parse(reader)

	var jsonBlock, firstBlock string
	var haveJSON, haveFirst bool

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		fence, ok := n.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}

		var body bytes.Buffer
		lines := fence.Lines()
		for i := 0; i < lines.Len(); i++ {
			segment := lines.At(i)
			body.Write(segment.Value(source))
		}

		if string(fence.Language(source)) == "json" {
			jsonBlock = body.String()
			haveJSON = true
			return ast.WalkStop, nil
		}
		if !haveFirst {
			firstBlock = body.String()
			haveFirst = true
		}
		return ast.WalkContinue, nil
	})

	if haveJSON {
		return jsonBlock, true
	}
	return firstBlock, haveFirst
}
