package kubectl

import (
	"github.com/pkg/errors"
	"k8s.io/client-go/tools/clientcmd"
)

// ContextInfo describes the kubeconfig context kubectl will use.
type ContextInfo struct {
	Name      string
	Cluster   string
	Server    string
	Namespace string
}

// ResolveContext finds the context kubectl would use given the same
// options: the named context, or the current one. An empty kubeconfig
// path means the usual places ($KUBECONFIG, ~/.kube/config).
func ResolveContext(opts Options) (ContextInfo, error) {
	loadingRules := clientcmd.NewDefaultClientConfigLoadingRules()
	loadingRules.ExplicitPath = opts.Kubeconfig
	overrides := &clientcmd.ConfigOverrides{CurrentContext: opts.Context}
	kubeConfig := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(loadingRules, overrides)

	raw, err := kubeConfig.RawConfig()
	if err != nil {
		return ContextInfo{}, errors.Wrap(err, "loading kubeconfig")
	}
	name := opts.Context
	if name == "" {
		name = raw.CurrentContext
	}
	if name == "" {
		return ContextInfo{}, errors.New("kubeconfig has no current context")
	}
	kctx, ok := raw.Contexts[name]
	if !ok {
		return ContextInfo{}, errors.Errorf("context %q not found in kubeconfig", name)
	}

	info := ContextInfo{
		Name:      name,
		Cluster:   kctx.Cluster,
		Namespace: kctx.Namespace,
	}
	if cluster, ok := raw.Clusters[kctx.Cluster]; ok {
		info.Server = cluster.Server
	}
	return info, nil
}

// NamespaceOrDefault is the namespace of the context kubectl will use,
// or def if that can't be determined or the context has none.
func NamespaceOrDefault(opts Options, def string) string {
	info, err := ResolveContext(opts)
	if err != nil || info.Namespace == "" {
		return def
	}
	return info.Namespace
}
