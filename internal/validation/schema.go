// Package validation checks run spec files against the embedded JSON
// Schema before anything touches the provider.
package validation

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/droverhq/drover/schemas"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"
)

// defaultPrinter is used to format schema validation error messages.
var defaultPrinter = message.NewPrinter(language.English)

// specSchema is the compiled JSON Schema for run spec YAML files.
var specSchema *jsonschema.Schema

func init() {
	specSchema = mustCompileSchema(schemas.RunSpecSchemaJSON, "runspec.schema.json")
}

func mustCompileSchema(raw string, name string) *jsonschema.Schema {
	var schemaDoc any
	if err := json.Unmarshal([]byte(raw), &schemaDoc); err != nil {
		panic(fmt.Sprintf("failed to parse embedded %s: %v", name, err))
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, schemaDoc); err != nil {
		panic(fmt.Sprintf("failed to add %s resource: %v", name, err))
	}

	sch, err := compiler.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("failed to compile %s: %v", name, err))
	}
	return sch
}

// ValidateSpecFile validates a run spec YAML file against the schema and
// checks that every file it references (prompts, dataset) actually exists.
// Schema problems come back in specErrs; per-file problems in fileErrs,
// keyed by the path as written in the spec.
func ValidateSpecFile(specPath string) (specErrs []string, fileErrs map[string][]string, err error) {
	data, err := os.ReadFile(specPath)
	if err != nil {
		return nil, nil, fmt.Errorf("reading spec file: %w", err)
	}

	specErrs = ValidateSpecBytes(data)

	// Parse into a minimal struct to resolve referenced files
	var spec struct {
		Steps []struct {
			Prompt string `yaml:"prompt"`
		} `yaml:"steps"`
		Dataset struct {
			Path string `yaml:"path"`
		} `yaml:"dataset"`
	}
	if yamlErr := yaml.Unmarshal(data, &spec); yamlErr != nil {
		return specErrs, nil, nil // can't resolve references, but schema errors are still useful
	}

	baseDir := filepath.Dir(specPath)
	fileErrs = make(map[string][]string)

	for _, step := range spec.Steps {
		if step.Prompt == "" {
			continue
		}
		if msg := checkFile(resolveAgainst(baseDir, step.Prompt)); msg != "" {
			fileErrs[step.Prompt] = append(fileErrs[step.Prompt], msg)
		}
	}

	if spec.Dataset.Path != "" {
		if msg := checkFile(resolveAgainst(baseDir, spec.Dataset.Path)); msg != "" {
			fileErrs[spec.Dataset.Path] = append(fileErrs[spec.Dataset.Path], msg)
		}
	}

	return specErrs, fileErrs, nil
}

// ValidateSpecBytes validates raw YAML bytes against the run spec schema.
func ValidateSpecBytes(data []byte) []string {
	return validateYAMLBytes(specSchema, data)
}

func validateYAMLBytes(schema *jsonschema.Schema, data []byte) []string {
	// Parse YAML into generic any
	var yamlDoc any
	if err := yaml.Unmarshal(data, &yamlDoc); err != nil {
		return []string{fmt.Sprintf("YAML parse error: %v", err)}
	}

	// Convert to JSON-compatible types (yaml.v3 uses map[string]any which is fine)
	jsonCompatible := convertToJSONCompatible(yamlDoc)

	return validateAgainstSchema(schema, jsonCompatible)
}

func validateAgainstSchema(schema *jsonschema.Schema, instance any) []string {
	err := schema.Validate(instance)
	if err == nil {
		return nil
	}
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return []string{fmt.Sprintf("schema: %v", err)}
	}
	var errs []string
	collectSchemaErrors(ve, &errs)
	return errs
}

func collectSchemaErrors(ve *jsonschema.ValidationError, errs *[]string) {
	if len(ve.Causes) == 0 {
		loc := "/"
		if len(ve.InstanceLocation) > 0 {
			loc = "/" + strings.Join(ve.InstanceLocation, "/")
		}
		*errs = append(*errs, fmt.Sprintf("%s: %s", loc, ve.ErrorKind.LocalizedString(defaultPrinter)))
		return
	}
	for _, c := range ve.Causes {
		collectSchemaErrors(c, errs)
	}
}

func checkFile(path string) string {
	info, err := os.Stat(path)
	switch {
	case os.IsNotExist(err):
		return "file not found"
	case err != nil:
		return err.Error()
	case info.IsDir():
		return "is a directory, expected a file"
	case info.Size() == 0:
		return "file is empty"
	}
	return ""
}

func resolveAgainst(baseDir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// convertToJSONCompatible converts YAML-decoded values to JSON-compatible types.
// yaml.v3 decodes to map[string]any which is fine, but integers need to stay as-is.
func convertToJSONCompatible(v any) any {
	switch val := v.(type) {
	case map[string]any:
		result := make(map[string]any, len(val))
		for k, v2 := range val {
			result[k] = convertToJSONCompatible(v2)
		}
		return result
	case []any:
		result := make([]any, len(val))
		for i, v2 := range val {
			result[i] = convertToJSONCompatible(v2)
		}
		return result
	default:
		return val
	}
}
