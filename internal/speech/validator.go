package speech

import (
	_ "embed"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/xeipuuv/gojsonschema"

	"github.com/nikhilbhutani/speechgateway/internal/apierror"
)

//go:embed recognize_request.schema.json
var requestSchema []byte

// ValidationFailure names the first rule a request broke.
type ValidationFailure struct {
	Field  string
	Reason string
}

func (f *ValidationFailure) Error() string {
	return f.Field + ": " + f.Reason
}

// Rules are checked in this order; the first failing rule is reported.
const (
	ruleEnvelope = iota + 1
	ruleAudioContent
	ruleLanguageCode
	ruleEncoding
	ruleSampleRate
	ruleMaxAlternatives
	ruleFlags
	ruleOther
)

var fieldRules = map[string]int{
	"(root)":                            ruleEnvelope,
	"config":                            ruleEnvelope,
	"audio":                             ruleEnvelope,
	"audio.content":                     ruleAudioContent,
	"config.languageCode":               ruleLanguageCode,
	"config.encoding":                   ruleEncoding,
	"config.sampleRateHertz":            ruleSampleRate,
	"config.maxAlternatives":            ruleMaxAlternatives,
	"config.enableAutomaticPunctuation": ruleFlags,
	"config.enableWordTimeOffsets":      ruleFlags,
}

// Validator turns a raw JSON body into a RecognizeRequest. It never touches
// a recognition backend.
type Validator struct {
	schema *gojsonschema.Schema
}

func NewValidator() (*Validator, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(requestSchema))
	if err != nil {
		return nil, fmt.Errorf("compile request schema: %w", err)
	}
	return &Validator{schema: schema}, nil
}

// Validate returns the validated request, or an INVALID_ARGUMENT
// *apierror.Error wrapping a *ValidationFailure.
func (v *Validator) Validate(body []byte) (*RecognizeRequest, error) {
	if !json.Valid(body) {
		return nil, invalid("(root)", "Invalid JSON payload.")
	}

	result, err := v.schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return nil, invalid("(root)", "Invalid JSON payload.")
	}
	schemaFailures := firstFailurePerRule(result)
	check := func(rule int) error {
		if f, ok := schemaFailures[rule]; ok {
			return apierror.InvalidArgument(f.Reason, f)
		}
		return nil
	}

	if err := check(ruleEnvelope); err != nil {
		return nil, err
	}
	doc := gjson.ParseBytes(body)
	cfg := doc.Get("config")

	if err := check(ruleAudioContent); err != nil {
		return nil, err
	}
	content := doc.Get("audio.content").Str
	if content == "" {
		return nil, invalid("audio.content", "RecognitionAudio content is empty.")
	}
	audio, err := base64.StdEncoding.DecodeString(content)
	if err != nil {
		return nil, invalid("audio.content", "Invalid audio content: not valid base64.")
	}

	if err := check(ruleLanguageCode); err != nil {
		return nil, err
	}
	lang := strings.TrimSpace(cfg.Get("languageCode").Str)
	if lang == "" {
		return nil, invalid("config.languageCode", "Invalid recognition 'config': languageCode is required.")
	}

	if err := check(ruleEncoding); err != nil {
		return nil, err
	}
	rawEncoding := cfg.Get("encoding").Str
	encoding, ok := ParseEncoding(rawEncoding)
	if !ok {
		return nil, invalid("config.encoding", fmt.Sprintf(
			"Invalid recognition 'config': encoding %q is not supported; expected one of %s.",
			rawEncoding, encodingList()))
	}

	for _, rule := range []int{ruleSampleRate, ruleMaxAlternatives, ruleFlags, ruleOther} {
		if err := check(rule); err != nil {
			return nil, err
		}
	}

	maxAlternatives := 1
	if n := cfg.Get("maxAlternatives"); n.Type == gjson.Number {
		maxAlternatives = int(n.Int())
	}

	return &RecognizeRequest{
		Config: RecognitionConfig{
			Encoding:                   encoding,
			SampleRateHertz:            int(cfg.Get("sampleRateHertz").Int()),
			LanguageCode:               lang,
			EnableAutomaticPunctuation: cfg.Get("enableAutomaticPunctuation").Bool(),
			MaxAlternatives:            maxAlternatives,
			EnableWordTimeOffsets:      cfg.Get("enableWordTimeOffsets").Bool(),
		},
		Audio: audio,
	}, nil
}

func encodingList() string {
	names := make([]string, 0, len(supportedEncodings))
	for _, e := range SupportedEncodings() {
		names = append(names, string(e))
	}
	return strings.Join(names, ", ")
}

func invalid(field, reason string) error {
	f := &ValidationFailure{Field: field, Reason: reason}
	return apierror.InvalidArgument(reason, f)
}

func firstFailurePerRule(result *gojsonschema.Result) map[int]*ValidationFailure {
	failures := make(map[int]*ValidationFailure)
	if result.Valid() {
		return failures
	}
	for _, e := range result.Errors() {
		field := errorField(e)
		rule, ok := fieldRules[field]
		if !ok {
			rule = ruleOther
		}
		if _, seen := failures[rule]; seen {
			continue
		}
		failures[rule] = &ValidationFailure{Field: field, Reason: schemaReason(field, e)}
	}
	return failures
}

// errorField returns the dotted path of the offending value. Required errors
// are reported against the parent object, so the missing property is
// appended.
func errorField(e gojsonschema.ResultError) string {
	field := e.Field()
	if e.Type() == "required" {
		if prop, ok := e.Details()["property"].(string); ok && !strings.HasSuffix(field, prop) {
			if field == "(root)" {
				return prop
			}
			return field + "." + prop
		}
	}
	return field
}

func schemaReason(field string, e gojsonschema.ResultError) string {
	switch field {
	case "config":
		if e.Type() == "required" {
			return "RecognitionConfig is required: missing 'config' field."
		}
		return "Invalid recognition 'config': must be an object."
	case "audio":
		if e.Type() == "required" {
			return "RecognitionAudio is required: missing 'audio' field."
		}
		return "Invalid recognition 'audio': must be an object."
	case "(root)":
		return "Request body must be a JSON object."
	case "audio.content":
		return "RecognitionAudio content is required and must be a base64 string."
	case "config.languageCode":
		return "Invalid recognition 'config': languageCode is required."
	case "config.encoding":
		return "Invalid recognition 'config': encoding is required."
	case "config.sampleRateHertz":
		return "Invalid recognition 'config': sampleRateHertz must be a positive integer."
	case "config.maxAlternatives":
		return "Invalid recognition 'config': maxAlternatives must be an integer of at least 1."
	case "config.enableAutomaticPunctuation", "config.enableWordTimeOffsets":
		return fmt.Sprintf("Invalid recognition 'config': %s must be a boolean.", strings.TrimPrefix(field, "config."))
	}
	return fmt.Sprintf("Invalid recognition request: %s %s.", field, e.Description())
}
