package processors

import (
	"context"
	"fmt"
	"regexp"

	"github.com/droverhq/drover/internal/models"
)

// RegexProcessorArgs holds the arguments for creating a regex processor.
type RegexProcessorArgs struct {
	// Name is the identifier for this processor, used in error messages.
	Name string
	// Pattern is the expression to match against the reply.
	Pattern string `mapstructure:"pattern"`
	// Group selects which capture group becomes the new content; 0 keeps
	// the whole match.
	Group int `mapstructure:"group"`
	// AllowMiss passes the reply through unchanged when nothing matches
	// instead of failing the record.
	AllowMiss bool `mapstructure:"allow_miss"`
}

// regexProcessor extracts a matching portion of the reply.
type regexProcessor struct {
	name      string
	re        *regexp.Regexp
	group     int
	allowMiss bool
}

func NewRegexProcessor(args RegexProcessorArgs) (*regexProcessor, error) {
	if args.Pattern == "" {
		return nil, fmt.Errorf("a pattern is required")
	}

	re, err := regexp.Compile(args.Pattern)
	if err != nil {
		return nil, fmt.Errorf("compiling pattern: %w", err)
	}

	if args.Group < 0 || args.Group > re.NumSubexp() {
		return nil, fmt.Errorf("group %d out of range, pattern has %d groups", args.Group, re.NumSubexp())
	}

	return &regexProcessor{
		name:      args.Name,
		re:        re,
		group:     args.Group,
		allowMiss: args.AllowMiss,
	}, nil
}

func (rp *regexProcessor) Name() string               { return rp.name }
func (rp *regexProcessor) Kind() models.ProcessorKind { return models.ProcessorKindRegex }

func (rp *regexProcessor) Apply(ctx context.Context, content string) (*Output, error) {
	match := rp.re.FindStringSubmatch(content)
	if match == nil {
		if rp.allowMiss {
			return &Output{Content: content}, nil
		}
		return nil, fmt.Errorf("pattern %q matched nothing", rp.re.String())
	}

	return &Output{Content: match[rp.group]}, nil
}
