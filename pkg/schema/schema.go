// Package schema validates manifests against the OpenAPI v3 schema of
// a CustomResourceDefinition.
package schema

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/Jeffail/gabs"
	"github.com/ghodss/yaml"
	"github.com/pkg/errors"
	"github.com/xeipuuv/gojsonschema"
	apiextensionsv1 "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"

	"github.com/fluxcd/rgcomposer/pkg/manifest"
)

func init() {
	gojsonschema.FormatCheckers.Add("int32", intFormat{bits: 32})
	gojsonschema.FormatCheckers.Add("int64", intFormat{bits: 64})
	gojsonschema.FormatCheckers.Add("byte", byteFormat{})
}

// Identity names the custom resource a schema is for.
type Identity struct {
	Group   string
	Version string
	Kind    string
}

func (id Identity) String() string {
	return fmt.Sprintf("%s/%s, Kind=%s", id.Group, id.Version, id.Kind)
}

// Error is a single schema violation.
type Error struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (e Error) String() string {
	return e.Path + " " + e.Message
}

// Result is the outcome of validating one document. Errors is empty
// exactly when Valid is true.
type Result struct {
	Valid  bool    `json:"valid"`
	Errors []Error `json:"errors"`
}

// Summary joins the errors the way they are reported when an apply is
// refused.
func (r Result) Summary() string {
	msgs := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		msgs[i] = e.String()
	}
	return strings.Join(msgs, "; ")
}

// Validator checks documents against a compiled schema. It is not
// changed after it is made, so it can be shared between requests. A
// Validator without a schema reports every document valid.
type Validator struct {
	schema   *gojsonschema.Schema
	Identity Identity
}

// Disabled returns a Validator that does no validation.
func Disabled() *Validator {
	return &Validator{}
}

// Load reads a CRD from path and compiles the schema of its first
// version.
func Load(path string) (*Validator, error) {
	bytes, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading schema file")
	}
	return Parse(bytes)
}

// Parse compiles the schema of the first version of the CRD in
// crdYAML.
func Parse(crdYAML []byte) (*Validator, error) {
	var crd apiextensionsv1.CustomResourceDefinition
	if err := yaml.Unmarshal(crdYAML, &crd); err != nil {
		return nil, errors.Wrap(err, "decoding CustomResourceDefinition")
	}
	if len(crd.Spec.Versions) == 0 {
		return nil, errors.New("CustomResourceDefinition has no versions")
	}

	// The typed decode drops anything the apiextensions types don't
	// model, so the schema itself is taken from the raw document.
	j, err := yaml.YAMLToJSON(crdYAML)
	if err != nil {
		return nil, errors.Wrap(err, "converting CustomResourceDefinition to JSON")
	}
	doc, err := gabs.ParseJSON(j)
	if err != nil {
		return nil, errors.Wrap(err, "parsing CustomResourceDefinition")
	}
	raw := doc.Path("spec.versions").Index(0).Path("schema.openAPIV3Schema")
	if raw.Data() == nil {
		return nil, errors.New("first version of CustomResourceDefinition has no openAPIV3Schema")
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw.Bytes()))
	if err != nil {
		return nil, errors.Wrap(err, "compiling openAPIV3Schema")
	}
	return &Validator{
		schema: schema,
		Identity: Identity{
			Group:   crd.Spec.Group,
			Version: crd.Spec.Versions[0].Name,
			Kind:    crd.Spec.Names.Kind,
		},
	}, nil
}

// Enabled reports whether v has a schema to validate against.
func (v *Validator) Enabled() bool {
	return v != nil && v.schema != nil
}

// Validate checks doc, which is anything that marshals to the JSON
// form of a manifest.
func (v *Validator) Validate(doc interface{}) (Result, error) {
	if !v.Enabled() {
		return Result{Valid: true, Errors: []Error{}}, nil
	}
	res, err := v.schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return Result{}, errors.Wrap(err, "validating document")
	}
	return result(res), nil
}

// ValidateYAML checks manifest text.
func (v *Validator) ValidateYAML(text []byte) (Result, error) {
	if !v.Enabled() {
		return Result{Valid: true, Errors: []Error{}}, nil
	}
	j, err := manifest.ToJSON(text)
	if err != nil {
		return Result{}, err
	}
	res, err := v.schema.Validate(gojsonschema.NewBytesLoader(j))
	if err != nil {
		return Result{}, errors.Wrap(err, "validating document")
	}
	return result(res), nil
}

func result(res *gojsonschema.Result) Result {
	out := Result{Valid: res.Valid(), Errors: []Error{}}
	for _, e := range res.Errors() {
		out.Errors = append(out.Errors, Error{
			Path:    errorPath(e),
			Message: e.Description(),
		})
	}
	sort.SliceStable(out.Errors, func(i, j int) bool {
		return out.Errors[i].Path < out.Errors[j].Path
	})
	return out
}

func errorPath(e gojsonschema.ResultError) string {
	path := strings.TrimPrefix(e.Context().String("/"), "(root)")
	if e.Type() == "required" {
		if prop, ok := e.Details()["property"].(string); ok {
			path += "/" + prop
		}
	}
	if path == "" {
		return "/"
	}
	return path
}

type intFormat struct {
	bits int
}

func (f intFormat) IsFormat(input interface{}) bool {
	switch n := input.(type) {
	case json.Number:
		_, err := strconv.ParseInt(n.String(), 10, f.bits)
		return err == nil
	case float64:
		if n != math.Trunc(n) {
			return false
		}
		limit := math.Pow(2, float64(f.bits-1))
		return n >= -limit && n < limit
	case int:
		return f.bits == 64 || (n >= math.MinInt32 && n <= math.MaxInt32)
	case int64:
		return f.bits == 64 || (n >= math.MinInt32 && n <= math.MaxInt32)
	}
	// Formats don't constrain other types.
	return true
}

type byteFormat struct{}

func (byteFormat) IsFormat(input interface{}) bool {
	s, ok := input.(string)
	if !ok {
		return true
	}
	_, err := base64.StdEncoding.DecodeString(s)
	return err == nil
}
