package catalog

import (
	"errors"
	"fmt"
	"maps"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/jmylchreest/genmedia-api/internal/models"
)

// AdapterKind selects the provider adapter that speaks a route's wire protocol.
// It doubles as the credential provider name used by the key rotator.
type AdapterKind string

const (
	AdapterTaskAPI    AdapterKind = "taskapi"
	AdapterPrediction AdapterKind = "prediction"
)

// IsValid reports whether an adapter is registered for k.
func (k AdapterKind) IsValid() bool {
	return k == AdapterTaskAPI || k == AdapterPrediction
}

// Rules are the per-model input constraints checked before any credits are reserved.
type Rules struct {
	PromptRequired  bool     `yaml:"prompt_required" json:"prompt_required"`
	MaxPromptLength int      `yaml:"max_prompt_length,omitempty" json:"max_prompt_length,omitempty"`
	MinReferences   int      `yaml:"min_references,omitempty" json:"min_references,omitempty"`
	MaxReferences   *int     `yaml:"max_references,omitempty" json:"max_references,omitempty"`
	ExactReferences *int     `yaml:"exact_references,omitempty" json:"exact_references,omitempty"`
	AspectRatios    []string `yaml:"aspect_ratios,omitempty" json:"aspect_ratios,omitempty"`
	Durations       []int    `yaml:"durations,omitempty" json:"durations,omitempty"`
}

// Route is one entry of the model dispatch table.
type Route struct {
	Model         string         `yaml:"model" json:"model"`
	Kind          models.JobKind `yaml:"kind" json:"kind"`
	Adapter       AdapterKind    `yaml:"adapter" json:"adapter"`
	ProviderModel string         `yaml:"provider_model" json:"-"`
	// Path is the submit endpoint relative to the adapter's base URL.
	Path string `yaml:"path,omitempty" json:"-"`
	// ReferenceField names the body field that carries reference inputs.
	ReferenceField string         `yaml:"reference_field,omitempty" json:"-"`
	Cost           int            `yaml:"cost,omitempty" json:"cost,omitempty"`
	Description    string         `yaml:"description,omitempty" json:"description,omitempty"`
	Defaults       map[string]any `yaml:"defaults,omitempty" json:"-"`
	Rules          Rules          `yaml:"rules" json:"rules"`
}

// Input is the user-supplied part of a generation request.
type Input struct {
	Prompt          string
	ReferenceInputs []string
	Parameters      map[string]any
}

// Request is a provider-ready submission: where to send it and what to send.
type Request struct {
	Path string
	Body map[string]any
}

// reserved body fields are owned by the route or the adapter.
var reservedFields = []string{"model", "prompt", "callBackUrl", "callback_url", "webhook", "input"}

// Validate checks in against the route's rules.
func (r *Route) Validate(in Input) error {
	rules := r.Rules
	prompt := strings.TrimSpace(in.Prompt)

	if rules.PromptRequired && prompt == "" {
		return &InvalidParametersError{Field: "prompt", Reason: "is required"}
	}
	if rules.MaxPromptLength > 0 && utf8.RuneCountInString(prompt) > rules.MaxPromptLength {
		return &InvalidParametersError{
			Field:  "prompt",
			Reason: fmt.Sprintf("must be at most %d characters for %s", rules.MaxPromptLength, r.Model),
		}
	}

	n := len(in.ReferenceInputs)
	switch {
	case rules.ExactReferences != nil && n != *rules.ExactReferences:
		return &InvalidParametersError{
			Field:  "reference_inputs",
			Reason: fmt.Sprintf("%s requires exactly %d reference input(s), got %d", r.Model, *rules.ExactReferences, n),
		}
	case n < rules.MinReferences:
		return &InvalidParametersError{
			Field:  "reference_inputs",
			Reason: fmt.Sprintf("%s requires at least %d reference input(s), got %d", r.Model, rules.MinReferences, n),
		}
	case rules.MaxReferences != nil && n > *rules.MaxReferences:
		return &InvalidParametersError{
			Field:  "reference_inputs",
			Reason: fmt.Sprintf("%s accepts at most %d reference input(s), got %d", r.Model, *rules.MaxReferences, n),
		}
	}
	for i, ref := range in.ReferenceInputs {
		u, err := url.Parse(ref)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return &InvalidParametersError{
				Field:  fmt.Sprintf("reference_inputs[%d]", i),
				Reason: "must be an http(s) URL",
			}
		}
	}

	if len(rules.AspectRatios) > 0 {
		if ratio, ok := lookupParam(in.Parameters, "aspect_ratio", "aspectRatio"); ok {
			s, isString := ratio.(string)
			if !isString || !slices.Contains(rules.AspectRatios, s) {
				return &InvalidParametersError{
					Field:  "aspect_ratio",
					Reason: fmt.Sprintf("must be one of %s", strings.Join(rules.AspectRatios, ", ")),
				}
			}
		}
	}

	if len(rules.Durations) > 0 {
		if raw, ok := lookupParam(in.Parameters, "duration"); ok {
			d, err := toInt(raw)
			if err != nil || !slices.Contains(rules.Durations, d) {
				return &InvalidParametersError{
					Field:  "duration",
					Reason: fmt.Sprintf("must be one of %s seconds", joinInts(rules.Durations)),
				}
			}
		}
	}

	return nil
}

// BuildRequest assembles the provider body: route defaults, then caller
// parameters, then the fields the route owns. Adapter-specific envelope fields
// (callbacks, wrapping) are added by the adapter.
func (r *Route) BuildRequest(in Input) Request {
	body := make(map[string]any, len(r.Defaults)+len(in.Parameters)+3)
	maps.Copy(body, r.Defaults)
	for k, v := range in.Parameters {
		if slices.Contains(reservedFields, k) {
			continue
		}
		body[k] = v
	}

	if r.Adapter == AdapterTaskAPI {
		body["model"] = r.ProviderModel
	}
	if prompt := strings.TrimSpace(in.Prompt); prompt != "" {
		body["prompt"] = prompt
	}
	if len(in.ReferenceInputs) > 0 {
		field := r.ReferenceField
		if field == "" {
			field = "image_urls"
		}
		if r.Rules.MaxReferences != nil && *r.Rules.MaxReferences == 1 {
			body[field] = in.ReferenceInputs[0]
		} else {
			body[field] = slices.Clone(in.ReferenceInputs)
		}
	}

	return Request{Path: r.submitPath(), Body: body}
}

func (r *Route) submitPath() string {
	if r.Path != "" {
		return r.Path
	}
	switch r.Adapter {
	case AdapterPrediction:
		return "/v1/models/" + r.ProviderModel + "/predictions"
	default:
		return "/api/v1/jobs/createTask"
	}
}

func (r *Route) check() error {
	switch {
	case r.Model == "":
		return errors.New("model is required")
	case !r.Kind.IsValid():
		return fmt.Errorf("model %s: invalid kind %q", r.Model, r.Kind)
	case !r.Adapter.IsValid():
		return fmt.Errorf("model %s: unknown adapter %q", r.Model, r.Adapter)
	case r.ProviderModel == "":
		return fmt.Errorf("model %s: provider_model is required", r.Model)
	case r.Cost < 0:
		return fmt.Errorf("model %s: cost must not be negative", r.Model)
	}
	return nil
}

func lookupParam(params map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := params[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("not a whole number: %v", n)
		}
		return int(n), nil
	case string:
		return strconv.Atoi(strings.TrimSuffix(n, "s"))
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
}

func joinInts(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = strconv.Itoa(x)
	}
	return strings.Join(parts, ", ")
}
