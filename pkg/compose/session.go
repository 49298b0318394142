package compose

import (
	"fmt"
	"strings"

	"k8s.io/apimachinery/pkg/util/validation"

	fluxerr "github.com/fluxcd/rgcomposer/pkg/errors"
	"github.com/fluxcd/rgcomposer/pkg/kv"
	"github.com/fluxcd/rgcomposer/pkg/manifest"
	"github.com/fluxcd/rgcomposer/pkg/resource"
)

// The steps of composing a resource group, in order.
const (
	StepCustomResource = iota
	StepGroup
	StepResources
	StepReview
	NumSteps
)

// Group is the group metadata as edited, with labels and annotations
// as key-value lists.
type Group struct {
	Name        string  `json:"name"`
	Namespace   string  `json:"namespace"`
	Labels      kv.List `json:"labels"`
	Annotations kv.List `json:"annotations"`
}

// Metadata collapses the key-value lists.
func (g Group) Metadata() resource.GroupMetadata {
	return resource.GroupMetadata{
		Name:        g.Name,
		Namespace:   g.Namespace,
		Labels:      g.Labels.Map(),
		Annotations: g.Annotations.Map(),
	}
}

// Session is one user's resource group in progress. It is not safe
// for concurrent use; each user gets their own.
type Session struct {
	cr        resource.CRMetadata
	group     Group
	resources []resource.Spec
}

func NewSession() *Session {
	return &Session{}
}

// SetCR sets the custom resource's name and namespace. Blank values
// are accepted, since they are filled in a keystroke at a time;
// anything else must be a valid name.
func (s *Session) SetCR(cr resource.CRMetadata) error {
	if err := checkName("metadata.name", cr.Name); err != nil {
		return err
	}
	if err := checkNamespace("metadata.namespace", cr.Namespace); err != nil {
		return err
	}
	s.cr = cr
	return nil
}

// SetGroup sets the group metadata, checking names as SetCR does.
func (s *Session) SetGroup(g Group) error {
	if err := checkName("spec.metadata.name", g.Name); err != nil {
		return err
	}
	if err := checkNamespace("spec.metadata.namespace", g.Namespace); err != nil {
		return err
	}
	s.group = g
	return nil
}

func (s *Session) CR() resource.CRMetadata { return s.cr }

func (s *Session) Group() Group { return s.group }

// Add appends a resource. Every name it depends on must be the name
// of a resource already added.
func (s *Session) Add(spec resource.Spec) error {
	known := map[string]bool{}
	for _, n := range s.Names() {
		known[n] = true
	}
	for _, dep := range spec.DependsOn {
		if !known[dep] {
			return fluxerr.UserError(fmt.Sprintf("dependsOn: no resource is named %q", dep))
		}
	}
	s.resources = append(s.resources, spec)
	return nil
}

// Remove drops the resource at index i. Names of the resources after
// it, where defaulted, shift down with their positions; dependsOn
// entries follow the renames, and those naming the removed resource
// are dropped, so every dependency still names a resource.
func (s *Session) Remove(i int) error {
	if i < 0 || i >= len(s.resources) {
		return &fluxerr.Error{
			Type: fluxerr.Missing,
			Help: fmt.Sprintf("there is no resource at index %d", i),
			Err:  fmt.Errorf("resource index %d out of range [0,%d)", i, len(s.resources)),
		}
	}
	before := s.Names()
	resources := make([]resource.Spec, 0, len(s.resources)-1)
	resources = append(resources, s.resources[:i]...)
	s.resources = append(resources, s.resources[i+1:]...)

	renamed := map[string]string{}
	for j, name := range s.Names() {
		old := before[j]
		if j >= i {
			old = before[j+1]
		}
		renamed[old] = name
	}
	for j := range s.resources {
		s.resources[j].DependsOn = rewriteDeps(s.resources[j].DependsOn, renamed)
	}
	return nil
}

func rewriteDeps(deps []string, renamed map[string]string) []string {
	if len(deps) == 0 {
		return deps
	}
	out := make([]string, 0, len(deps))
	for _, dep := range deps {
		if name, ok := renamed[dep]; ok {
			out = append(out, name)
		}
	}
	return out
}

// Resources returns a copy of the resource list.
func (s *Session) Resources() []resource.Spec {
	return append([]resource.Spec(nil), s.resources...)
}

// Names lists the name of each resource, in order.
func (s *Session) Names() []string {
	names := make([]string, len(s.resources))
	for i, r := range s.resources {
		names[i] = r.Name(s.group.Name, i)
	}
	return names
}

// DependsOnOptions are the names a new resource may depend on.
func (s *Session) DependsOnOptions() []string {
	return s.Names()
}

// CanProceed reports whether the user may move on from step: the
// custom resource needs a name, the group needs a name, and there must
// be at least one resource.
func (s *Session) CanProceed(step int) bool {
	switch step {
	case StepCustomResource:
		return s.cr.Name != ""
	case StepGroup:
		return s.group.Name != ""
	case StepResources:
		return len(s.resources) > 0
	}
	return true
}

// Steps reports CanProceed for every step.
func (s *Session) Steps() []bool {
	steps := make([]bool, NumSteps)
	for i := range steps {
		steps[i] = s.CanProceed(i)
	}
	return steps
}

// Manifest assembles the session's manifest.
func (s *Session) Manifest() manifest.Manifest {
	return manifest.Assemble(s.cr, s.group.Metadata(), s.resources)
}

// Reset discards everything.
func (s *Session) Reset() {
	*s = Session{}
}

func checkName(field, name string) error {
	if strings.TrimSpace(name) == "" {
		return nil
	}
	if errs := validation.IsDNS1123Subdomain(name); len(errs) > 0 {
		return fluxerr.UserError(fmt.Sprintf("%s: %q is not a valid name: %s", field, name, strings.Join(errs, "; ")))
	}
	return nil
}

// checkNamespace is checkName for namespaces, which must be DNS-1123
// labels: no dots.
func checkNamespace(field, ns string) error {
	if strings.TrimSpace(ns) == "" {
		return nil
	}
	if errs := validation.IsDNS1123Label(ns); len(errs) > 0 {
		return fluxerr.UserError(fmt.Sprintf("%s: %q is not a valid namespace: %s", field, ns, strings.Join(errs, "; ")))
	}
	return nil
}
