package harness

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	cueyaml "cuelang.org/go/encoding/yaml"
	"gopkg.in/yaml.v3"

	"github.com/roach88/reactor/internal/textfield"
)

//go:embed schema.cue
var schemaSource string

// DefaultTimeout bounds each await step and the final settle when a scenario
// does not set timeout_ms.
const DefaultTimeout = 2 * time.Second

// Scenario is a scripted interaction with a textfield reactor.
type Scenario struct {
	// Name uniquely identifies this scenario. Also the golden file name.
	Name string `yaml:"name"`

	// Description explains what this scenario checks.
	Description string `yaml:"description"`

	// Initial is the reactor's starting state.
	Initial textfield.State `yaml:"initial,omitempty"`

	// TimeoutMS overrides DefaultTimeout.
	TimeoutMS int `yaml:"timeout_ms,omitempty"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`

	// Expect is compared with what the subscribers observed.
	Expect Expect `yaml:"expect,omitempty"`
}

// Timeout returns the per-wait bound for this scenario.
func (s *Scenario) Timeout() time.Duration {
	if s.TimeoutMS > 0 {
		return time.Duration(s.TimeoutMS) * time.Millisecond
	}
	return DefaultTimeout
}

// Step either sends an action or waits for the state to match.
// Exactly one field is set.
type Step struct {
	Send  *textfield.Action `yaml:"send,omitempty"`
	Await *PartialState     `yaml:"await,omitempty"`
}

// Expect describes the observed outcome. Nil fields are not checked.
type Expect struct {
	State  *PartialState     `yaml:"state,omitempty"`
	Events []textfield.Event `yaml:"events,omitempty"`
	Errors []ErrorSpec       `yaml:"errors,omitempty"`
}

// PartialState matches a textfield.State on the fields it sets.
type PartialState struct {
	Text        *string `yaml:"text,omitempty"`
	Submitting  *bool   `yaml:"submitting,omitempty"`
	Submissions *int    `yaml:"submissions,omitempty"`
}

// Mismatches lists every set field that differs from s.
func (p PartialState) Mismatches(s textfield.State) []string {
	var out []string
	if p.Text != nil && *p.Text != s.Text {
		out = append(out, fmt.Sprintf("text: want %q, got %q", *p.Text, s.Text))
	}
	if p.Submitting != nil && *p.Submitting != s.Submitting {
		out = append(out, fmt.Sprintf("submitting: want %t, got %t", *p.Submitting, s.Submitting))
	}
	if p.Submissions != nil && *p.Submissions != s.Submissions {
		out = append(out, fmt.Sprintf("submissions: want %d, got %d", *p.Submissions, s.Submissions))
	}
	return out
}

// Matches reports whether every set field equals s.
func (p PartialState) Matches(s textfield.State) bool {
	return len(p.Mismatches(s)) == 0
}

func (p PartialState) String() string {
	var parts []string
	if p.Text != nil {
		parts = append(parts, "text="+strconv.Quote(*p.Text))
	}
	if p.Submitting != nil {
		parts = append(parts, "submitting="+strconv.FormatBool(*p.Submitting))
	}
	if p.Submissions != nil {
		parts = append(parts, "submissions="+strconv.Itoa(*p.Submissions))
	}
	return "{" + strings.Join(parts, " ") + "}"
}

// ErrorSpec matches one observed error on the fields it sets.
type ErrorSpec struct {
	// Message must equal err.Error().
	Message string `yaml:"message,omitempty"`

	// Expected must equal reactor.IsExpected(err).
	Expected *bool `yaml:"expected,omitempty"`

	// Is names a textfield sentinel the error must wrap.
	Is string `yaml:"is,omitempty"`
}

var sentinels = map[string]error{
	"empty_text": textfield.ErrEmptyText,
	"rejected":   textfield.ErrRejected,
	"crashed":    textfield.ErrCrashed,
}

// ValidationError is returned for a scenario file that does not satisfy the
// schema.
type ValidationError struct {
	File     string
	Problems []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: invalid scenario:\n  %s", e.File, strings.Join(e.Problems, "\n  "))
}

// LoadScenario reads, schema-checks and decodes a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(path, data)
}

// ParseScenario schema-checks and decodes scenario YAML. filename is used in
// error positions only.
func ParseScenario(filename string, data []byte) (*Scenario, error) {
	if err := ValidateSchema(filename, data); err != nil {
		return nil, err
	}

	// Strict decode catches anything the schema let through as open.
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// ValidateSchema checks scenario YAML against the embedded CUE schema.
func ValidateSchema(filename string, data []byte) error {
	file, err := cueyaml.Extract(filename, data)
	if err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("scenario schema: %w", err)
	}

	doc := ctx.BuildFile(file)
	if err := doc.Err(); err != nil {
		return &ValidationError{File: filename, Problems: describeCUEError(err)}
	}

	v := schema.LookupPath(cue.ParsePath("#Scenario")).Unify(doc)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return &ValidationError{File: filename, Problems: describeCUEError(err)}
	}
	return nil
}

// describeCUEError flattens a CUE error list into "line:col: message" lines.
func describeCUEError(err error) []string {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return []string{err.Error()}
	}

	out := make([]string, 0, len(errs))
	for _, e := range errs {
		msg := e.Error()
		for _, pos := range cueerrors.Positions(e) {
			if pos.IsValid() && pos.Filename() != "schema.cue" {
				msg = fmt.Sprintf("%d:%d: %s", pos.Line(), pos.Column(), msg)
				break
			}
		}
		out = append(out, msg)
	}
	return out
}

// validateScenario checks the invariants Run relies on. Scenarios built in
// Go code skip the schema, so this repeats the structural rules.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		switch {
		case step.Send != nil && step.Await != nil:
			return fmt.Errorf("steps[%d]: send and await are mutually exclusive", i)
		case step.Send != nil:
			if err := step.Send.Validate(); err != nil {
				return fmt.Errorf("steps[%d].send: %w", i, err)
			}
		case step.Await == nil:
			return fmt.Errorf("steps[%d]: one of send or await is required", i)
		}
	}

	for i, e := range s.Expect.Errors {
		if e.Is == "" {
			continue
		}
		if _, ok := sentinels[e.Is]; !ok {
			return fmt.Errorf("expect.errors[%d]: unknown error %q", i, e.Is)
		}
	}

	return nil
}
