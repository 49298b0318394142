package compose

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fluxerr "github.com/fluxcd/rgcomposer/pkg/errors"
	"github.com/fluxcd/rgcomposer/pkg/kv"
	"github.com/fluxcd/rgcomposer/pkg/manifest"
	"github.com/fluxcd/rgcomposer/pkg/resource"
)

func TestBuildDeployment(t *testing.T) {
	b := NewBuilder(nil)
	port := NewPort()
	port.ContainerPort = resource.NewInt(8080)
	f := Form{
		APIVersion:   "apps/v1",
		Kind:         "Deployment",
		NameOverride: "  web  ",
		Replicas:     resource.NewInt(2),
		Containers: []ContainerForm{{
			Name:  "web",
			Image: "nginx:1.17",
			Ports: []resource.ContainerPort{port},
			Env:   kv.List{{Key: "MODE", Value: "prod"}, {Key: "", Value: "dropped"}},
			Resources: resource.ResourceRequirements{
				Requests: resource.ResourceList{CPU: "250m", Memory: "64Mi"},
			},
		}},
		// Not a deployment field; carried along as an extra.
		ServiceType: "ClusterIP",
	}
	spec, err := b.Build(f)
	require.NoError(t, err)

	assert.Equal(t, "web", spec.NameOverride)
	assert.Nil(t, spec.Enabled)
	assert.Nil(t, spec.ClusterScope)

	w, ok := spec.Config.Known.(*resource.WorkloadConfig)
	require.True(t, ok)
	assert.Equal(t, resource.NewInt(2), w.Replicas)
	require.Len(t, w.Containers, 1)
	assert.Equal(t, []kv.EnvVar{{Name: "MODE", Value: "prod"}}, w.Containers[0].Env)
	assert.Equal(t, resource.NewInt(8080), w.Containers[0].Ports[0].ContainerPort)
	assert.Equal(t, "TCP", w.Containers[0].Ports[0].Protocol)
	assert.Equal(t, map[string]interface{}{"serviceType": "ClusterIP"}, spec.Config.Extra)
}

func TestBuildFlags(t *testing.T) {
	disabled := false
	spec, err := NewBuilder(nil).Build(Form{
		APIVersion:   "v1",
		Kind:         "Secret",
		Enabled:      &disabled,
		ClusterScope: true,
		DependsOn:    []string{"app-deployment-0"},
		Data:         kv.List{{Key: "password", Value: "hunter2"}, {Key: "password", Value: "hunter3"}},
	})
	require.NoError(t, err)
	require.NotNil(t, spec.Enabled)
	assert.False(t, *spec.Enabled)
	require.NotNil(t, spec.ClusterScope)
	assert.True(t, *spec.ClusterScope)
	assert.Equal(t, []string{"app-deployment-0"}, spec.DependsOn)

	secret := spec.Config.Known.(*resource.SecretConfig)
	assert.Equal(t, map[string]interface{}{"password": "hunter3"}, secret.Data)
	assert.Equal(t, "", secret.Type)
}

func TestBuildCronJob(t *testing.T) {
	spec, err := NewBuilder(nil).Build(Form{
		APIVersion:        "batch/v1beta1",
		Kind:              "CronJob",
		Schedule:          "*/5 * * * *",
		ConcurrencyPolicy: "Forbid",
		Suspend:           true,
		BackoffLimit:      resource.NewInt(0),
	})
	require.NoError(t, err)
	cj := spec.Config.Known.(*resource.CronJobConfig)
	assert.Equal(t, "Forbid", cj.ConcurrencyPolicy)
	assert.Equal(t, resource.NewInt(0), cj.BackoffLimit)
	assert.False(t, cj.Completions.Valid)
	require.NotNil(t, cj.Suspend)
	assert.True(t, *cj.Suspend)
}

func TestBuildRejects(t *testing.T) {
	b := NewBuilder([]string{"*/Namespace", "rbac.authorization.k8s.io/*"})
	for name, f := range map[string]Form{
		"no kind":          {APIVersion: "v1"},
		"no apiVersion":    {Kind: "Service"},
		"denied kind":      {APIVersion: "v1", Kind: "Namespace"},
		"denied group":     {APIVersion: "rbac.authorization.k8s.io/v1", Kind: "ClusterRole"},
		"service type":     {APIVersion: "v1", Kind: "Service", ServiceType: "Internal"},
		"concurrency":      {APIVersion: "batch/v1beta1", Kind: "CronJob", ConcurrencyPolicy: "Sometimes"},
		"access mode":      {APIVersion: "v1", Kind: "PersistentVolumeClaim", AccessModes: []string{"ReadWriteOnce", "WriteOnly"}},
		"storage quantity": {APIVersion: "v1", Kind: "PersistentVolumeClaim", Storage: "lots"},
		"cpu quantity": {APIVersion: "apps/v1", Kind: "Deployment", Containers: []ContainerForm{{
			Resources: resource.ResourceRequirements{Limits: resource.ResourceList{CPU: "half"}},
		}}},
		"protocol": {APIVersion: "apps/v1", Kind: "Deployment", Containers: []ContainerForm{{
			Ports: []resource.ContainerPort{{ContainerPort: resource.NewInt(80), Protocol: "HTTP"}},
		}}},
	} {
		_, err := b.Build(f)
		assert.True(t, fluxerr.IsUser(err), "%s: expected a user error, got %v", name, err)
	}

	_, err := b.Build(Form{APIVersion: "v1", Kind: "PersistentVolumeClaim", Storage: "1Gi", AccessModes: []string{"ReadWriteMany"}})
	assert.NoError(t, err)
}

func TestFormReset(t *testing.T) {
	f := Form{APIVersion: "v1", Kind: "Service", Selector: kv.List{{Key: "app", Value: "web"}}}
	f.Reset()
	assert.Equal(t, Form{}, f)
}

func TestFormJSON(t *testing.T) {
	var f Form
	require.NoError(t, json.Unmarshal([]byte(`{
		"apiVersion": "v1",
		"kind": "Service",
		"serviceType": "NodePort",
		"selector": [{"key": "app", "value": "web"}],
		"replicas": ""
	}`), &f))
	spec, err := NewBuilder(nil).Build(f)
	require.NoError(t, err)
	svc := spec.Config.Known.(*resource.ServiceConfig)
	assert.Equal(t, "NodePort", svc.ServiceType)
	assert.Equal(t, map[string]string{"app": "web"}, svc.Selector)
	assert.Empty(t, spec.Config.Extra)
}

func TestSessionSteps(t *testing.T) {
	s := NewSession()
	assert.Equal(t, []bool{false, false, false, true}, s.Steps())

	require.NoError(t, s.SetCR(resource.CRMetadata{Name: "demo"}))
	require.NoError(t, s.SetGroup(Group{Name: "app"}))
	assert.Equal(t, []bool{true, true, false, true}, s.Steps())

	require.NoError(t, s.Add(resource.Spec{APIVersion: "apps/v1", Kind: "Deployment"}))
	assert.Equal(t, []bool{true, true, true, true}, s.Steps())
	assert.True(t, s.CanProceed(StepReview))

	s.Reset()
	assert.False(t, s.CanProceed(StepCustomResource))
	assert.Empty(t, s.Resources())
}

func TestSessionNames(t *testing.T) {
	s := NewSession()
	require.NoError(t, s.SetGroup(Group{Name: "app"}))
	require.NoError(t, s.Add(resource.Spec{APIVersion: "apps/v1", Kind: "Deployment"}))
	require.NoError(t, s.Add(resource.Spec{APIVersion: "v1", Kind: "Service", NameOverride: "frontend"}))
	require.NoError(t, s.Add(resource.Spec{APIVersion: "v1", Kind: "ConfigMap", DependsOn: []string{"app-deployment-0", "frontend"}}))
	assert.Equal(t, []string{"app-deployment-0", "frontend", "app-configmap-2"}, s.Names())
	assert.Equal(t, s.Names(), s.DependsOnOptions())

	err := s.Add(resource.Spec{APIVersion: "v1", Kind: "Secret", DependsOn: []string{"app-secret-9"}})
	assert.True(t, fluxerr.IsUser(err))
	assert.Len(t, s.Resources(), 3)

	require.NoError(t, s.Remove(0))
	assert.Equal(t, []string{"frontend", "app-configmap-1"}, s.Names())
	assert.True(t, fluxerr.IsMissing(s.Remove(2)))
	assert.True(t, fluxerr.IsMissing(s.Remove(-1)))
}

func TestSessionRemoveKeepsDependencies(t *testing.T) {
	s := NewSession()
	require.NoError(t, s.SetGroup(Group{Name: "app"}))
	require.NoError(t, s.Add(resource.Spec{APIVersion: "v1", Kind: "ConfigMap"}))
	require.NoError(t, s.Add(resource.Spec{APIVersion: "v1", Kind: "Secret"}))
	require.NoError(t, s.Add(resource.Spec{APIVersion: "apps/v1", Kind: "Deployment", DependsOn: []string{"app-configmap-0", "app-secret-1"}}))
	require.NoError(t, s.Add(resource.Spec{APIVersion: "v1", Kind: "Service", NameOverride: "web", DependsOn: []string{"app-deployment-2"}}))

	require.NoError(t, s.Remove(0))
	assert.Equal(t, []string{"app-secret-0", "app-deployment-1", "web"}, s.Names())
	res := s.Resources()
	assert.Equal(t, []string{"app-secret-0"}, res[1].DependsOn)
	assert.Equal(t, []string{"app-deployment-1"}, res[2].DependsOn)

	// every dependency still names a resource
	known := map[string]bool{}
	for _, n := range s.Names() {
		known[n] = true
	}
	for _, r := range res {
		for _, dep := range r.DependsOn {
			assert.True(t, known[dep], "dangling dependency %q", dep)
		}
	}

	require.NoError(t, s.Remove(1))
	assert.Empty(t, s.Resources()[1].DependsOn)
}

func TestSessionNamespaceChecks(t *testing.T) {
	s := NewSession()
	assert.True(t, fluxerr.IsUser(s.SetCR(resource.CRMetadata{Name: "demo.v1", Namespace: "team.a"})))
	assert.NoError(t, s.SetCR(resource.CRMetadata{Name: "demo.v1", Namespace: "team-a"}))
	assert.True(t, fluxerr.IsUser(s.SetGroup(Group{Name: "app", Namespace: "a.b"})))
	assert.NoError(t, s.SetGroup(Group{Name: "app", Namespace: "a-b"}))
}

func TestSessionNameChecks(t *testing.T) {
	s := NewSession()
	assert.NoError(t, s.SetCR(resource.CRMetadata{Name: "", Namespace: ""}))
	assert.True(t, fluxerr.IsUser(s.SetCR(resource.CRMetadata{Name: "Not_Valid"})))
	assert.True(t, fluxerr.IsUser(s.SetGroup(Group{Name: "app", Namespace: "-bad-"})))
	assert.Equal(t, Group{}, s.Group(), "a rejected group leaves the old one")
}

func TestSessionManifest(t *testing.T) {
	s := NewSession()
	require.NoError(t, s.SetCR(resource.CRMetadata{Name: "demo"}))
	require.NoError(t, s.SetGroup(Group{
		Name:   "app",
		Labels: kv.List{{Key: "team", Value: "a"}, {Key: "team", Value: "b"}, {Key: " ", Value: "x"}},
	}))
	spec, err := NewBuilder(nil).Build(Form{APIVersion: "v1", Kind: "Secret", Data: kv.List{{Key: "password", Value: "hunter2"}}})
	require.NoError(t, err)
	require.NoError(t, s.Add(spec))

	m := s.Manifest()
	assert.Equal(t, manifest.DefaultNamespace, m.Metadata.Namespace)
	assert.Equal(t, map[string]string{"team": "b"}, m.Spec.Metadata.Labels)
	cfg, _ := m.Spec.Resources[0].Get("config")
	typ, _ := cfg.(resource.Fields).Get("type")
	assert.Equal(t, "Opaque", typ)

	// Assembling leaves the session's resource as it was.
	assert.Equal(t, "hunter2", s.Resources()[0].Config.Known.(*resource.SecretConfig).Data["password"])
}
