package kube

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/unkn0wn-root/mizuview/internal/errdef"
)

const (
	DefaultNamespace = "mizu"
	APIServerService = "mizu-api-server"
	apiServerPort    = 80
)

type Options struct {
	Kubeconfig string
	Context    string
	Namespace  string
	Logger     *slog.Logger
}

// Target is how to reach the API server through the cluster's service proxy.
type Target struct {
	BaseURL   string
	Namespace string
	Transport http.RoundTripper
}

// Discover loads kube credentials, checks the API server service exists and
// returns a base URL routed through the Kubernetes API server proxy.
func Discover(ctx context.Context, opts Options) (Target, error) {
	cfg, err := LoadConfig(opts.Kubeconfig, opts.Context)
	if err != nil {
		return Target{}, err
	}
	client, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return Target{}, errdef.Wrap(errdef.CodeKube, err, "create kubernetes client")
	}
	transport, err := rest.TransportFor(cfg)
	if err != nil {
		return Target{}, errdef.Wrap(errdef.CodeKube, err, "build kubernetes transport")
	}
	return discover(ctx, client, cfg.Host, transport, opts)
}

func discover(ctx context.Context, client kubernetes.Interface, host string, transport http.RoundTripper, opts Options) (Target, error) {
	ns := strings.TrimSpace(opts.Namespace)
	if ns == "" {
		ns = DefaultNamespace
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	exists, err := serviceExists(ctx, client, ns, APIServerService)
	if err != nil {
		return Target{}, err
	}
	if !exists {
		return Target{}, errdef.New(errdef.CodeKube, "the %s service not found in namespace %s", APIServerService, ns)
	}

	base, err := ProxyURL(host, ns)
	if err != nil {
		return Target{}, err
	}
	logger.Info("found api server service", "namespace", ns, "url", base)
	return Target{BaseURL: base, Namespace: ns, Transport: transport}, nil
}

// LoadConfig resolves kube credentials the way kubectl does: an explicit
// path first, then KUBECONFIG and ~/.kube/config.
func LoadConfig(path, kubeContext string) (*rest.Config, error) {
	rules := clientcmd.NewDefaultClientConfigLoadingRules()
	if strings.TrimSpace(path) != "" {
		rules.ExplicitPath = path
	}
	overrides := &clientcmd.ConfigOverrides{CurrentContext: kubeContext}
	cfg, err := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, overrides).ClientConfig()
	switch {
	case err == nil:
		return cfg, nil
	case clientcmd.IsEmptyConfig(err):
		return nil, errdef.Wrap(errdef.CodeKube, err, "couldn't find the kube config file, or file is empty; try --kube-config=<path>")
	case clientcmd.IsConfigurationInvalid(err):
		return nil, errdef.Wrap(errdef.CodeKube, err, "invalid kube config file; try a different --kube-config")
	default:
		return nil, errdef.Wrap(errdef.CodeKube, err, "load kube config")
	}
}

func serviceExists(ctx context.Context, client kubernetes.Interface, ns, name string) (bool, error) {
	_, err := client.CoreV1().Services(ns).Get(ctx, name, metav1.GetOptions{})
	switch {
	case err == nil:
		return true, nil
	case apierrors.IsNotFound(err):
		return false, nil
	default:
		return false, errdef.Wrap(errdef.CodeKube, err, "get service %s/%s", ns, name)
	}
}

// ProxyURL is the API server service reached through the kube apiserver
// proxy subresource.
func ProxyURL(host, namespace string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(host))
	if err != nil || u.Host == "" {
		return "", errdef.New(errdef.CodeKube, "invalid kubernetes host %q", host)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/api/v1/namespaces/" + url.PathEscape(namespace) +
		"/services/" + APIServerService + ":" + strconv.Itoa(apiServerPort) + "/proxy"
	u.RawQuery = ""
	return u.String(), nil
}
