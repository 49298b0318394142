package resource

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Spec is one child resource of a resource group, as collected by the
// form.
type Spec struct {
	APIVersion   string
	Kind         string
	NameOverride string
	// Enabled and ClusterScope are nil when left at their defaults
	// (true and false respectively).
	Enabled      *bool
	ClusterScope *bool
	DependsOn    []string
	Config       Config
}

type specJSON struct {
	APIVersion   string          `json:"apiVersion"`
	Kind         string          `json:"kind"`
	NameOverride string          `json:"nameOverride,omitempty"`
	Enabled      *bool           `json:"enabled,omitempty"`
	ClusterScope *bool           `json:"clusterScope,omitempty"`
	DependsOn    []string        `json:"dependsOn,omitempty"`
	Config       json.RawMessage `json:"config,omitempty"`
}

func (s *Spec) UnmarshalJSON(b []byte) error {
	var raw specJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	cfg, err := DecodeConfig(raw.Kind, raw.Config)
	if err != nil {
		return err
	}
	*s = Spec{
		APIVersion:   raw.APIVersion,
		Kind:         raw.Kind,
		NameOverride: raw.NameOverride,
		Enabled:      raw.Enabled,
		ClusterScope: raw.ClusterScope,
		DependsOn:    raw.DependsOn,
		Config:       cfg,
	}
	return nil
}

func (s Spec) MarshalJSON() ([]byte, error) {
	cfg, err := json.Marshal(s.Config)
	if err != nil {
		return nil, err
	}
	return json.Marshal(specJSON{
		APIVersion:   s.APIVersion,
		Kind:         s.Kind,
		NameOverride: s.NameOverride,
		Enabled:      s.Enabled,
		ClusterScope: s.ClusterScope,
		DependsOn:    s.DependsOn,
		Config:       cfg,
	})
}

// Name is the name the resource will be known by in the group: its
// override when one is given, otherwise the default name for its
// position.
func (s Spec) Name(baseName string, index int) string {
	if n := strings.TrimSpace(s.NameOverride); n != "" {
		return n
	}
	return DefaultName(baseName, s.Kind, index)
}

// IsSecret reports whether the spec is for a Secret, ignoring case.
func (s Spec) IsSecret() bool {
	return NormalizeKind(s.Kind) == "secret"
}

// DefaultName is the name given to the resource at index when it has
// no override, e.g. "app-deployment-0".
func DefaultName(baseName, kind string, index int) string {
	return fmt.Sprintf("%s-%s-%d", baseName, NormalizeKind(kind), index)
}

// NormalizeKind lower-cases a kind for comparison.
func NormalizeKind(kind string) string {
	return strings.ToLower(strings.TrimSpace(kind))
}

// CRMetadata identifies the custom resource instance.
type CRMetadata struct {
	Name      string `json:"name" yaml:"name"`
	Namespace string `json:"namespace" yaml:"namespace"`
}

// GroupMetadata applies to every resource of the group.
type GroupMetadata struct {
	Name        string            `json:"name" yaml:"name"`
	Namespace   string            `json:"namespace" yaml:"namespace"`
	Labels      map[string]string `json:"labels" yaml:"labels"`
	Annotations map[string]string `json:"annotations" yaml:"annotations"`
}
