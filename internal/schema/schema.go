// Package schema validates raw action arguments against JSON Schema
// documents. Validation applies declared defaults and strips undeclared
// properties before checking constraints.
package schema

import (
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"sort"
	"strings"

	xerrors "ActionKit-Chain/internal/errors"

	"github.com/mitchellh/mapstructure"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/santhosh-tekuri/jsonschema/v6/kind"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Shared patterns for chain identifiers.
const (
	AddressPattern = `^0x[a-fA-F0-9]{40}$`
	TxHashPattern  = `^0x[a-fA-F0-9]{64}$`
)

const resourceURL = "schema.json"

var printer = message.NewPrinter(language.English)

// Schema is a compiled argument schema.
type Schema struct {
	raw      json.RawMessage
	doc      map[string]any
	compiled *jsonschema.Schema
}

// Compile parses and compiles a JSON Schema document describing an object.
func Compile(raw string) (*Schema, error) {
	var doc map[string]any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}
	if t, ok := doc["type"]; ok && t != "object" {
		return nil, fmt.Errorf("schema root must be an object, got %v", t)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource(resourceURL, doc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	compiled, err := c.Compile(resourceURL)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	compact, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode schema: %w", err)
	}
	return &Schema{raw: compact, doc: doc, compiled: compiled}, nil
}

// MustCompile is Compile for package level schemas.
func MustCompile(raw string) *Schema {
	s, err := Compile(raw)
	if err != nil {
		panic(err)
	}
	return s
}

// Raw returns the schema document.
func (s *Schema) Raw() json.RawMessage {
	if s == nil {
		return nil
	}
	out := make(json.RawMessage, len(s.raw))
	copy(out, s.raw)
	return out
}

// Properties returns the sorted top level property names.
func (s *Schema) Properties() []string {
	if s == nil {
		return nil
	}
	props, _ := s.doc["properties"].(map[string]any)
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate returns a normalised copy of args: defaults applied, unknown
// keys removed. Failures are VALIDATION errors listing offending fields.
func (s *Schema) Validate(args map[string]any) (map[string]any, error) {
	if s == nil || s.compiled == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "schema not compiled")
	}

	value, err := normalise(args)
	if err != nil {
		return nil, xerrors.Validation("arguments are not a JSON object",
			xerrors.FieldError{Message: err.Error()})
	}
	value = applyDefaults(s.doc, value)
	value = strip(s.doc, value)

	obj, ok := value.(map[string]any)
	if !ok {
		return nil, xerrors.Validation("arguments must be an object")
	}

	if err := s.compiled.Validate(obj); err != nil {
		var ve *jsonschema.ValidationError
		if stdErrors.As(err, &ve) {
			return nil, xerrors.Validation("invalid arguments", fieldErrors(ve)...)
		}
		return nil, xerrors.Wrap(xerrors.CodeValidation, err, "invalid arguments")
	}
	return obj, nil
}

// Decode maps validated arguments onto a struct using its json tags.
func Decode(args map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("build decoder: %w", err)
	}
	if err := dec.Decode(args); err != nil {
		return xerrors.Wrap(xerrors.CodeValidation, err, "decode arguments")
	}
	return nil
}

// normalise converts arbitrary Go values into the JSON data model.
func normalise(args map[string]any) (any, error) {
	if args == nil {
		return map[string]any{}, nil
	}
	encoded, err := json.Marshal(args)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(encoded, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func applyDefaults(node map[string]any, value any) any {
	switch v := value.(type) {
	case map[string]any:
		props, _ := node["properties"].(map[string]any)
		for name, raw := range props {
			prop, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			current, present := v[name]
			if !present {
				if def, ok := prop["default"]; ok {
					v[name] = cloneValue(def)
				}
				continue
			}
			v[name] = applyDefaults(prop, current)
		}
		return v
	case []any:
		items, ok := node["items"].(map[string]any)
		if !ok {
			return v
		}
		for i := range v {
			v[i] = applyDefaults(items, v[i])
		}
		return v
	default:
		return value
	}
}

func strip(node map[string]any, value any) any {
	switch v := value.(type) {
	case map[string]any:
		props, hasProps := node["properties"].(map[string]any)
		if !hasProps {
			return v
		}
		keepExtra := false
		if extra, ok := node["additionalProperties"]; ok {
			switch e := extra.(type) {
			case bool:
				keepExtra = e
			case map[string]any:
				keepExtra = true
			}
		}
		for name, child := range v {
			prop, declared := props[name].(map[string]any)
			if !declared {
				if !keepExtra {
					delete(v, name)
				}
				continue
			}
			v[name] = strip(prop, child)
		}
		return v
	case []any:
		items, ok := node["items"].(map[string]any)
		if !ok {
			return v
		}
		for i := range v {
			v[i] = strip(items, v[i])
		}
		return v
	default:
		return value
	}
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = cloneValue(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = cloneValue(val)
		}
		return out
	default:
		return v
	}
}

func fieldErrors(ve *jsonschema.ValidationError) []xerrors.FieldError {
	var out []xerrors.FieldError
	var walk func(*jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) > 0 {
			for _, c := range e.Causes {
				walk(c)
			}
			return
		}
		path := strings.Join(e.InstanceLocation, ".")
		if req, ok := e.ErrorKind.(*kind.Required); ok {
			for _, missing := range req.Missing {
				out = append(out, xerrors.FieldError{Field: joinPath(path, missing), Message: "is required"})
			}
			return
		}
		out = append(out, xerrors.FieldError{Field: path, Message: e.ErrorKind.LocalizedString(printer)})
	}
	walk(ve)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Field < out[j].Field })
	return out
}

func joinPath(parent, child string) string {
	if parent == "" {
		return child
	}
	return parent + "." + child
}
