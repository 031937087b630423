package config

import (
	"fmt"
	"os"
	"slices"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"
)

// Error code constants.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed

	ErrCodeSchema          = "E201" // Value does not satisfy #Experience
	ErrCodeDecode          = "E202" // Value could not be decoded
	ErrCodeDuplicateScene  = "E210" // Scene listed twice
	ErrCodeDuplicateID     = "E211" // Journey or message id reused
	ErrCodeDuplicateStep   = "E212" // Step id reused within a journey
	ErrCodeAnswerNotChoice = "E213" // Answer is not one of the choices
	ErrCodeNoChoices       = "E214" // Choice step without choices
)

// LoadError is a configuration error with its CUE position when known.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Load reads the configuration at path, which may be a .cue file or a
// directory holding one CUE package. An empty path loads the embedded
// default. All errors found are returned; the Experience is nil if any.
func Load(path string) (*Experience, []error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building schema: %v", err)}}
	}

	file, errs := compile(ctx, path)
	if errs != nil {
		return nil, errs
	}

	raw := file.LookupPath(cue.ParsePath("experience"))
	if !raw.Exists() {
		return nil, []error{&LoadError{Code: ErrCodeSchema, Message: "no experience struct defined", Pos: file.Pos()}}
	}

	v := schema.LookupPath(cue.ParsePath("#Experience")).Unify(raw)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, convertCUEErrors(ErrCodeSchema, err)
	}

	var exp Experience
	if err := v.Decode(&exp); err != nil {
		return nil, convertCUEErrors(ErrCodeDecode, err)
	}

	if errs := validate(v, &exp); len(errs) > 0 {
		return nil, errs
	}
	return &exp, nil
}

// MustDefault returns the embedded default configuration.
func MustDefault() *Experience {
	exp, errs := Load("")
	if len(errs) > 0 {
		panic(fmt.Sprintf("config: embedded default is invalid: %v", errs[0]))
	}
	return exp
}

func compile(ctx *cue.Context, path string) (cue.Value, []error) {
	if path == "" {
		v := ctx.CompileString(defaultCUE, cue.Filename("default.cue"))
		if err := v.Err(); err != nil {
			return cue.Value{}, convertCUEErrors(ErrCodeBuildFailed, err)
		}
		return v, nil
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return cue.Value{}, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("config not found: %s", path)}}
	}
	if err != nil {
		return cue.Value{}, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing config: %v", err)}}
	}

	if info.IsDir() {
		instances := load.Instances([]string{"."}, &load.Config{Dir: path})
		if len(instances) == 0 {
			return cue.Value{}, []error{&LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}}
		}
		inst := instances[0]
		if inst.Err != nil {
			return cue.Value{}, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}}
		}
		v := ctx.BuildInstance(inst)
		if err := v.Err(); err != nil {
			return cue.Value{}, convertCUEErrors(ErrCodeBuildFailed, err)
		}
		return v, nil
	}

	src, err := os.ReadFile(path)
	if err != nil {
		return cue.Value{}, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("reading config: %v", err)}}
	}
	v := ctx.CompileBytes(src, cue.Filename(path))
	if err := v.Err(); err != nil {
		return cue.Value{}, convertCUEErrors(ErrCodeBuildFailed, err)
	}
	return v, nil
}

// convertCUEErrors splits a CUE error list into positioned LoadErrors.
func convertCUEErrors(code string, err error) []error {
	list := cueerrors.Errors(err)
	if len(list) == 0 {
		return []error{&LoadError{Code: code, Message: err.Error()}}
	}
	out := make([]error, 0, len(list))
	for _, e := range list {
		le := &LoadError{Code: code, Message: e.Error()}
		if pos := cueerrors.Positions(e); len(pos) > 0 {
			le.Pos = pos[0]
		}
		out = append(out, le)
	}
	return out
}

// validate checks the cross-field rules the schema cannot express.
func validate(v cue.Value, exp *Experience) []error {
	var errs []error
	at := func(sel ...cue.Selector) token.Pos {
		return v.LookupPath(cue.MakePath(sel...)).Pos()
	}

	seenScenes := make(map[string]bool)
	for i, s := range exp.Scenes {
		if seenScenes[s] {
			errs = append(errs, &LoadError{Code: ErrCodeDuplicateScene, Message: fmt.Sprintf("scene %q listed twice", s), Pos: at(cue.Str("scenes"), cue.Index(i))})
		}
		seenScenes[s] = true
	}

	seenJourneys := make(map[string]bool)
	for i, j := range exp.Journeys {
		if seenJourneys[j.ID] {
			errs = append(errs, &LoadError{Code: ErrCodeDuplicateID, Message: fmt.Sprintf("journey %q defined twice", j.ID), Pos: at(cue.Str("journeys"), cue.Index(i), cue.Str("id"))})
		}
		seenJourneys[j.ID] = true

		seenSteps := make(map[string]bool)
		for k, s := range j.Steps {
			step := func(field string) token.Pos {
				return at(cue.Str("journeys"), cue.Index(i), cue.Str("steps"), cue.Index(k), cue.Str(field))
			}
			if seenSteps[s.ID] {
				errs = append(errs, &LoadError{Code: ErrCodeDuplicateStep, Message: fmt.Sprintf("journey %q: step %q defined twice", j.ID, s.ID), Pos: step("id")})
			}
			seenSteps[s.ID] = true

			if s.Type != "choice" {
				continue
			}
			if len(s.Choices) == 0 {
				errs = append(errs, &LoadError{Code: ErrCodeNoChoices, Message: fmt.Sprintf("journey %q: choice step %q has no choices", j.ID, s.ID), Pos: step("type")})
				continue
			}
			if s.Answer != "" && !slices.Contains(s.Choices, s.Answer) {
				errs = append(errs, &LoadError{Code: ErrCodeAnswerNotChoice, Message: fmt.Sprintf("journey %q: step %q answer %q is not a choice", j.ID, s.ID, s.Answer), Pos: step("answer")})
			}
		}
	}

	seenMessages := make(map[string]bool)
	for i, m := range exp.Messages {
		field := func(name string) token.Pos {
			return at(cue.Str("messages"), cue.Index(i), cue.Str(name))
		}
		if seenMessages[m.ID] {
			errs = append(errs, &LoadError{Code: ErrCodeDuplicateID, Message: fmt.Sprintf("message %q defined twice", m.ID), Pos: field("id")})
		}
		seenMessages[m.ID] = true
		if !slices.Contains(m.Choices, m.Answer) {
			errs = append(errs, &LoadError{Code: ErrCodeAnswerNotChoice, Message: fmt.Sprintf("message %q answer %q is not a choice", m.ID, m.Answer), Pos: field("answer")})
		}
	}
	return errs
}
