// Package manifest assembles a resource group manifest from the form
// state, and converts it to and from text.
package manifest

import (
	"encoding/base64"
	"strings"

	"github.com/ghodss/yaml"
	"github.com/pkg/errors"
	yamlv2 "gopkg.in/yaml.v2"
	corev1 "k8s.io/api/core/v1"

	"github.com/fluxcd/rgcomposer/pkg/resource"
)

const (
	APIVersion = "kro.run/v1alpha1"
	Kind       = "GenericResourceGroup"

	// DefaultNamespace is used for the custom resource and the group
	// when no namespace is given.
	DefaultNamespace = "default"
)

// Manifest is a GenericResourceGroup custom resource.
type Manifest struct {
	APIVersion string              `json:"apiVersion" yaml:"apiVersion"`
	Kind       string              `json:"kind" yaml:"kind"`
	Metadata   resource.CRMetadata `json:"metadata" yaml:"metadata"`
	Spec       GroupSpec           `json:"spec" yaml:"spec"`
}

type GroupSpec struct {
	Metadata  resource.GroupMetadata `json:"metadata" yaml:"metadata"`
	Resources []resource.Fields      `json:"resources" yaml:"resources"`
}

// Assemble builds the manifest for a custom resource, its group
// metadata and the group's resources, in order. It does not modify its
// arguments, and the same arguments always give the same manifest.
//
// Each resource is cleaned up on the way: a blank nameOverride, an
// empty dependsOn and flags left at their defaults are left out, as
// are empty config values at any depth. Secret data is base64 encoded,
// and a Secret's type defaults to Opaque.
func Assemble(cr resource.CRMetadata, group resource.GroupMetadata, specs []resource.Spec) Manifest {
	m := Manifest{
		APIVersion: APIVersion,
		Kind:       Kind,
		Metadata: resource.CRMetadata{
			Name:      cr.Name,
			Namespace: orDefault(cr.Namespace),
		},
		Spec: GroupSpec{
			Metadata: resource.GroupMetadata{
				Name:        group.Name,
				Namespace:   orDefault(group.Namespace),
				Labels:      copyMap(group.Labels),
				Annotations: copyMap(group.Annotations),
			},
			Resources: make([]resource.Fields, 0, len(specs)),
		},
	}
	for _, s := range specs {
		m.Spec.Resources = append(m.Spec.Resources, assembleResource(s))
	}
	return m
}

func assembleResource(s resource.Spec) resource.Fields {
	out := resource.Fields{
		{Key: "apiVersion", Value: s.APIVersion},
		{Key: "kind", Value: s.Kind},
	}
	if name := strings.TrimSpace(s.NameOverride); name != "" {
		out = append(out, resource.Field{Key: "nameOverride", Value: name})
	}
	if s.Enabled != nil && !*s.Enabled {
		out = append(out, resource.Field{Key: "enabled", Value: false})
	}
	if s.ClusterScope != nil && *s.ClusterScope {
		out = append(out, resource.Field{Key: "clusterScope", Value: true})
	}
	if deps := dependsOn(s.DependsOn); len(deps) > 0 {
		out = append(out, resource.Field{Key: "dependsOn", Value: deps})
	}

	cfg, _ := resource.Normalize(s.Config.Fields()).(resource.Fields)
	cfg = resource.Prune(cfg)
	if s.IsSecret() {
		cfg = encodeSecret(cfg)
	}
	return append(out, resource.Field{Key: "config", Value: cfg})
}

func encodeSecret(cfg resource.Fields) resource.Fields {
	if data, ok := cfg.Get("data"); ok {
		if fs, ok := data.(resource.Fields); ok {
			encoded := make(resource.Fields, len(fs))
			for i, f := range fs {
				encoded[i] = f
				if s, ok := f.Value.(string); ok {
					encoded[i].Value = base64.StdEncoding.EncodeToString([]byte(s))
				}
			}
			cfg = cfg.Set("data", encoded)
		}
	}
	if t, _ := cfg.Get("type"); t == nil {
		cfg = cfg.Set("type", string(corev1.SecretTypeOpaque))
	}
	return cfg
}

func dependsOn(names []string) []string {
	var deps []string
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			deps = append(deps, n)
		}
	}
	return deps
}

func orDefault(ns string) string {
	if strings.TrimSpace(ns) == "" {
		return DefaultNamespace
	}
	return ns
}

func copyMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Marshal renders the manifest as YAML. Maps are emitted with their
// keys sorted, and every value is written out in full.
func Marshal(m Manifest) ([]byte, error) {
	return yamlv2.Marshal(m)
}

// Unmarshal parses manifest text into a generic document, with
// objects as map[string]interface{}.
func Unmarshal(text []byte) (map[string]interface{}, error) {
	var doc map[string]interface{}
	if err := yaml.Unmarshal(text, &doc); err != nil {
		return nil, errors.Wrap(err, "parsing manifest")
	}
	return doc, nil
}

// ToJSON converts manifest text to JSON.
func ToJSON(text []byte) ([]byte, error) {
	j, err := yaml.YAMLToJSON(text)
	if err != nil {
		return nil, errors.Wrap(err, "converting manifest to JSON")
	}
	return j, nil
}

// Document returns the manifest as a generic document, the shape
// Unmarshal gives for its YAML.
func Document(m Manifest) (map[string]interface{}, error) {
	text, err := Marshal(m)
	if err != nil {
		return nil, err
	}
	return Unmarshal(text)
}
