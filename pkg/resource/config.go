package resource

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// KindConfig is the typed part of a resource's config, for the kinds
// the form knows about. Fields lists every key the kind understands,
// set or not, in the order they are emitted.
type KindConfig interface {
	Fields() Fields
}

// Config is a resource's configuration: an optional typed part chosen
// by the resource kind, plus any additional properties, which are
// carried through untouched.
type Config struct {
	Known KindConfig
	Extra map[string]interface{}
}

// Fields returns the typed fields in declaration order followed by
// the additional properties sorted by key. A typed key shadows an
// additional property of the same name.
func (c Config) Fields() Fields {
	var fs Fields
	seen := map[string]bool{}
	if c.Known != nil {
		fs = append(fs, c.Known.Fields()...)
		for _, f := range fs {
			seen[f.Key] = true
		}
	}
	keys := make([]string, 0, len(c.Extra))
	for k := range c.Extra {
		if !seen[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		fs = append(fs, Field{Key: k, Value: c.Extra[k]})
	}
	return fs
}

func (c Config) MarshalJSON() ([]byte, error) {
	fs := c.Fields()
	if fs == nil {
		fs = Fields{}
	}
	return json.Marshal(fs)
}

// DecodeConfig decodes raw JSON config for a resource of the given
// kind. Keys the kind knows go to the typed part; everything else is
// kept in Extra.
func DecodeConfig(kind string, raw []byte) (Config, error) {
	cfg := Config{Extra: map[string]interface{}{}}
	if len(strings.TrimSpace(string(raw))) == 0 || strings.TrimSpace(string(raw)) == "null" {
		cfg.Known = NewKindConfig(kind)
		return cfg, nil
	}

	var all map[string]json.RawMessage
	if err := json.Unmarshal(raw, &all); err != nil {
		return Config{}, errors.Wrap(err, "config must be an object")
	}

	// Only keys spelled exactly as the kind spells them are typed;
	// encoding/json would otherwise also take "Data" for "data".
	known := map[string]bool{}
	if typed := NewKindConfig(kind); typed != nil {
		for _, f := range typed.Fields() {
			known[f.Key] = true
		}
		exact := map[string]json.RawMessage{}
		for k, v := range all {
			if known[k] {
				exact[k] = v
			}
		}
		b, err := json.Marshal(exact)
		if err != nil {
			return Config{}, errors.Wrapf(err, "decoding %s config", kind)
		}
		if err := json.Unmarshal(b, typed); err != nil {
			return Config{}, errors.Wrapf(err, "decoding %s config", kind)
		}
		cfg.Known = typed
	}

	for k, v := range all {
		if known[k] {
			continue
		}
		var x interface{}
		if err := json.Unmarshal(v, &x); err != nil {
			return Config{}, errors.Wrapf(err, "decoding config field %q", k)
		}
		cfg.Extra[k] = x
	}
	return cfg, nil
}

// NewKindConfig returns an empty typed config for kind, or nil when
// the kind has no typed fields. The comparison ignores case.
func NewKindConfig(kind string) KindConfig {
	switch NormalizeKind(kind) {
	case "deployment", "statefulset", "daemonset", "replicaset":
		return &WorkloadConfig{}
	case "job":
		return &JobConfig{}
	case "cronjob":
		return &CronJobConfig{}
	case "service":
		return &ServiceConfig{}
	case "configmap":
		return &ConfigMapConfig{}
	case "secret":
		return &SecretConfig{}
	case "persistentvolumeclaim":
		return &VolumeClaimConfig{}
	case "ingress":
		return &IngressConfig{}
	}
	return nil
}

// WorkloadConfig covers Deployment, StatefulSet, DaemonSet and
// ReplicaSet.
type WorkloadConfig struct {
	Replicas   Int         `json:"replicas"`
	Containers []Container `json:"containers"`
}

func (c *WorkloadConfig) Fields() Fields {
	return Fields{
		{"replicas", c.Replicas.Value()},
		{"containers", containerFields(c.Containers)},
	}
}

type JobConfig struct {
	WorkloadConfig
	Parallelism             Int `json:"parallelism"`
	Completions             Int `json:"completions"`
	BackoffLimit            Int `json:"backoffLimit"`
	ActiveDeadlineSeconds   Int `json:"activeDeadlineSeconds"`
	TTLSecondsAfterFinished Int `json:"ttlSecondsAfterFinished"`
}

func (c *JobConfig) Fields() Fields {
	return append(c.WorkloadConfig.Fields(), Fields{
		{"parallelism", c.Parallelism.Value()},
		{"completions", c.Completions.Value()},
		{"backoffLimit", c.BackoffLimit.Value()},
		{"activeDeadlineSeconds", c.ActiveDeadlineSeconds.Value()},
		{"ttlSecondsAfterFinished", c.TTLSecondsAfterFinished.Value()},
	}...)
}

type CronJobConfig struct {
	JobConfig
	Schedule                   string `json:"schedule"`
	ConcurrencyPolicy          string `json:"concurrencyPolicy"`
	Suspend                    *bool  `json:"suspend"`
	StartingDeadlineSeconds    Int    `json:"startingDeadlineSeconds"`
	SuccessfulJobsHistoryLimit Int    `json:"successfulJobsHistoryLimit"`
	FailedJobsHistoryLimit     Int    `json:"failedJobsHistoryLimit"`
}

func (c *CronJobConfig) Fields() Fields {
	return append(c.JobConfig.Fields(), Fields{
		{"schedule", c.Schedule},
		{"concurrencyPolicy", c.ConcurrencyPolicy},
		{"suspend", boolValue(c.Suspend)},
		{"startingDeadlineSeconds", c.StartingDeadlineSeconds.Value()},
		{"successfulJobsHistoryLimit", c.SuccessfulJobsHistoryLimit.Value()},
		{"failedJobsHistoryLimit", c.FailedJobsHistoryLimit.Value()},
	}...)
}

type ServiceConfig struct {
	ServiceType string            `json:"serviceType"`
	Selector    map[string]string `json:"selector"`
}

func (c *ServiceConfig) Fields() Fields {
	return Fields{
		{"serviceType", c.ServiceType},
		{"selector", c.Selector},
	}
}

type ConfigMapConfig struct {
	Data map[string]interface{} `json:"data"`
}

func (c *ConfigMapConfig) Fields() Fields {
	return Fields{{"data", c.Data}}
}

// SecretConfig takes its data in plain text; it is encoded when the
// manifest is assembled.
type SecretConfig struct {
	Data map[string]interface{} `json:"data"`
	Type string                 `json:"type"`
}

func (c *SecretConfig) Fields() Fields {
	return Fields{
		{"data", c.Data},
		{"type", c.Type},
	}
}

type VolumeClaimConfig struct {
	AccessModes      []string `json:"accessModes"`
	Storage          string   `json:"storage"`
	StorageClassName string   `json:"storageClassName"`
}

func (c *VolumeClaimConfig) Fields() Fields {
	return Fields{
		{"accessModes", c.AccessModes},
		{"storage", c.Storage},
		{"storageClassName", c.StorageClassName},
	}
}

// IngressConfig leaves tls and rules free-form.
type IngressConfig struct {
	IngressClassName string        `json:"ingressClassName"`
	TLS              []interface{} `json:"tls"`
	Rules            []interface{} `json:"rules"`
}

func (c *IngressConfig) Fields() Fields {
	return Fields{
		{"ingressClassName", c.IngressClassName},
		{"tls", c.TLS},
		{"rules", c.Rules},
	}
}

func boolValue(b *bool) interface{} {
	if b == nil {
		return nil
	}
	return *b
}
