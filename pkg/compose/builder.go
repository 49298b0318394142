// Package compose holds the editing state of a resource group: the
// form a resource is built from, and the session that collects the
// resources.
package compose

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/ryanuber/go-glob"
	batchv1beta1 "k8s.io/api/batch/v1beta1"
	corev1 "k8s.io/api/core/v1"
	kresource "k8s.io/apimachinery/pkg/api/resource"

	fluxerr "github.com/fluxcd/rgcomposer/pkg/errors"
	"github.com/fluxcd/rgcomposer/pkg/kv"
	"github.com/fluxcd/rgcomposer/pkg/resource"
)

var (
	ServiceTypes = []string{
		string(corev1.ServiceTypeClusterIP),
		string(corev1.ServiceTypeNodePort),
		string(corev1.ServiceTypeLoadBalancer),
		string(corev1.ServiceTypeExternalName),
	}
	ConcurrencyPolicies = []string{
		string(batchv1beta1.AllowConcurrent),
		string(batchv1beta1.ForbidConcurrent),
		string(batchv1beta1.ReplaceConcurrent),
	}
	AccessModes = []string{
		string(corev1.ReadWriteOnce),
		string(corev1.ReadOnlyMany),
		string(corev1.ReadWriteMany),
	}
	Protocols = []string{
		string(corev1.ProtocolTCP),
		string(corev1.ProtocolUDP),
		string(corev1.ProtocolSCTP),
	}
)

// Form is the state of the add-a-resource form. Only the fields a user
// fills in end up in the resource; the rest are left out, whatever the
// kind.
type Form struct {
	APIVersion   string   `json:"apiVersion"`
	Kind         string   `json:"kind"`
	NameOverride string   `json:"nameOverride"`
	Enabled      *bool    `json:"enabled"`
	ClusterScope bool     `json:"clusterScope"`
	DependsOn    []string `json:"dependsOn"`

	Replicas   resource.Int    `json:"replicas"`
	Containers []ContainerForm `json:"containers"`

	ServiceType string  `json:"serviceType"`
	Selector    kv.List `json:"selector"`

	Data       kv.List `json:"data"`
	SecretType string  `json:"secretType"`

	AccessModes      []string `json:"accessModes"`
	Storage          string   `json:"storage"`
	StorageClassName string   `json:"storageClassName"`

	IngressClassName string        `json:"ingressClassName"`
	TLS              []interface{} `json:"tls"`
	Rules            []interface{} `json:"rules"`

	Schedule                   string       `json:"schedule"`
	ConcurrencyPolicy          string       `json:"concurrencyPolicy"`
	Suspend                    bool         `json:"suspend"`
	StartingDeadlineSeconds    resource.Int `json:"startingDeadlineSeconds"`
	SuccessfulJobsHistoryLimit resource.Int `json:"successfulJobsHistoryLimit"`
	FailedJobsHistoryLimit     resource.Int `json:"failedJobsHistoryLimit"`

	Parallelism             resource.Int `json:"parallelism"`
	Completions             resource.Int `json:"completions"`
	BackoffLimit            resource.Int `json:"backoffLimit"`
	ActiveDeadlineSeconds   resource.Int `json:"activeDeadlineSeconds"`
	TTLSecondsAfterFinished resource.Int `json:"ttlSecondsAfterFinished"`

	// Extra holds config fields the form has no input for.
	Extra map[string]interface{} `json:"extra"`
}

// ContainerForm is a container as edited in the form; its environment
// is a key-value list.
type ContainerForm struct {
	Name      string                        `json:"name"`
	Image     string                        `json:"image"`
	Ports     []resource.ContainerPort      `json:"ports"`
	Env       kv.List                       `json:"env"`
	Resources resource.ResourceRequirements `json:"resources"`
}

// NewPort is a port as first added to a container.
func NewPort() resource.ContainerPort {
	return resource.ContainerPort{ContainerPort: resource.NewInt(0), Protocol: string(corev1.ProtocolTCP)}
}

// Reset clears the form.
func (f *Form) Reset() {
	*f = Form{}
}

// Builder turns forms into resource specs.
type Builder struct {
	denyKinds []string
}

// NewBuilder returns a Builder refusing any apiVersion/Kind matching
// one of denyKinds, e.g. "*/Namespace" or "rbac.authorization.k8s.io/*".
func NewBuilder(denyKinds []string) *Builder {
	return &Builder{denyKinds: denyKinds}
}

// Build checks the form and makes a resource spec from it.
func (b *Builder) Build(f Form) (resource.Spec, error) {
	apiVersion, kind := strings.TrimSpace(f.APIVersion), strings.TrimSpace(f.Kind)
	if apiVersion == "" || kind == "" {
		return resource.Spec{}, fluxerr.UserError("apiVersion and kind are required")
	}
	if pattern, denied := b.denied(apiVersion + "/" + kind); denied {
		return resource.Spec{}, fluxerr.UserError(fmt.Sprintf("%s/%s may not be composed (matches %q)", apiVersion, kind, pattern))
	}
	if err := f.check(); err != nil {
		return resource.Spec{}, err
	}

	spec := resource.Spec{
		APIVersion:   apiVersion,
		Kind:         kind,
		NameOverride: strings.TrimSpace(f.NameOverride),
	}
	if f.Enabled != nil && !*f.Enabled {
		disabled := false
		spec.Enabled = &disabled
	}
	if f.ClusterScope {
		clusterScope := true
		spec.ClusterScope = &clusterScope
	}
	if len(f.DependsOn) > 0 {
		spec.DependsOn = append([]string(nil), f.DependsOn...)
	}

	raw, err := json.Marshal(f.config())
	if err != nil {
		return resource.Spec{}, errors.Wrap(err, "encoding config")
	}
	spec.Config, err = resource.DecodeConfig(kind, raw)
	if err != nil {
		return resource.Spec{}, &fluxerr.Error{Type: fluxerr.User, Help: err.Error(), Err: err}
	}
	return spec, nil
}

func (b *Builder) denied(kind string) (string, bool) {
	for _, pattern := range b.denyKinds {
		if glob.Glob(pattern, kind) {
			return pattern, true
		}
	}
	return "", false
}

// config collects the filled-in fields, under their config keys.
func (f Form) config() map[string]interface{} {
	config := map[string]interface{}{}
	for k, v := range f.Extra {
		config[k] = v
	}
	setInt := func(key string, i resource.Int) {
		if i.Valid {
			config[key] = i.Int64
		}
	}
	setString := func(key, s string) {
		if s != "" {
			config[key] = s
		}
	}

	setInt("replicas", f.Replicas)
	if len(f.Containers) > 0 {
		var containers []resource.Container
		for _, c := range f.Containers {
			containers = append(containers, resource.Container{
				Name:      c.Name,
				Image:     c.Image,
				Ports:     c.Ports,
				Env:       c.Env.Env(),
				Resources: c.Resources,
			})
		}
		config["containers"] = containers
	}
	setString("serviceType", f.ServiceType)
	if m := f.Selector.Map(); len(m) > 0 {
		config["selector"] = m
	}
	if m := f.Data.Map(); len(m) > 0 {
		config["data"] = m
	}
	setString("type", f.SecretType)
	if len(f.AccessModes) > 0 {
		config["accessModes"] = f.AccessModes
	}
	setString("storage", f.Storage)
	setString("storageClassName", f.StorageClassName)
	setString("ingressClassName", f.IngressClassName)
	if len(f.TLS) > 0 {
		config["tls"] = f.TLS
	}
	if len(f.Rules) > 0 {
		config["rules"] = f.Rules
	}
	setString("schedule", f.Schedule)
	setString("concurrencyPolicy", f.ConcurrencyPolicy)
	if f.Suspend {
		config["suspend"] = true
	}
	setInt("startingDeadlineSeconds", f.StartingDeadlineSeconds)
	setInt("successfulJobsHistoryLimit", f.SuccessfulJobsHistoryLimit)
	setInt("failedJobsHistoryLimit", f.FailedJobsHistoryLimit)
	setInt("parallelism", f.Parallelism)
	setInt("completions", f.Completions)
	setInt("backoffLimit", f.BackoffLimit)
	setInt("activeDeadlineSeconds", f.ActiveDeadlineSeconds)
	setInt("ttlSecondsAfterFinished", f.TTLSecondsAfterFinished)
	return config
}

func (f Form) check() error {
	if f.ServiceType != "" && !oneOf(f.ServiceType, ServiceTypes) {
		return invalid("serviceType", f.ServiceType, ServiceTypes)
	}
	if f.ConcurrencyPolicy != "" && !oneOf(f.ConcurrencyPolicy, ConcurrencyPolicies) {
		return invalid("concurrencyPolicy", f.ConcurrencyPolicy, ConcurrencyPolicies)
	}
	for _, mode := range f.AccessModes {
		if !oneOf(mode, AccessModes) {
			return invalid("accessModes", mode, AccessModes)
		}
	}
	if err := checkQuantity("storage", f.Storage); err != nil {
		return err
	}
	for i, c := range f.Containers {
		field := fmt.Sprintf("containers[%d]", i)
		for _, p := range c.Ports {
			if p.Protocol != "" && !oneOf(p.Protocol, Protocols) {
				return invalid(field+".ports.protocol", p.Protocol, Protocols)
			}
		}
		for _, q := range []struct {
			field, value string
		}{
			{"resources.requests.cpu", c.Resources.Requests.CPU},
			{"resources.requests.memory", c.Resources.Requests.Memory},
			{"resources.limits.cpu", c.Resources.Limits.CPU},
			{"resources.limits.memory", c.Resources.Limits.Memory},
		} {
			if err := checkQuantity(field+"."+q.field, q.value); err != nil {
				return err
			}
		}
	}
	return nil
}

func checkQuantity(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	if _, err := kresource.ParseQuantity(value); err != nil {
		return fluxerr.UserError(fmt.Sprintf("%s: %q is not a valid quantity", field, value))
	}
	return nil
}

func invalid(field, value string, allowed []string) error {
	return fluxerr.UserError(fmt.Sprintf("%s: %q is not one of %s", field, value, strings.Join(allowed, ", ")))
}

func oneOf(s string, options []string) bool {
	for _, o := range options {
		if s == o {
			return true
		}
	}
	return false
}
