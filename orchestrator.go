package llmrt

import (
	"context"
	"os"
	"os/user"
	"strconv"
	"strings"
)

// Runtime is the opaque per-invocation scope of §4.G/GLOSSARY: it carries a
// unique RuntimeID so that components needing call-isolated server-side
// state (the Gemini OAuth code-assist session, §4.F) never share state
// across concurrent calls.
type Runtime struct {
	RuntimeID string
	Logger    Logger
}

// InvocationOverrides is the per-call ephemeral/override layer attached to
// a GenerateOptions (§6 neutral call-options contract).
type InvocationOverrides struct {
	Ephemerals map[string]string
	UserMemory string
}

// GenerateOptions is the neutral call-options contract of §6.
type GenerateOptions struct {
	ProviderName string
	Contents     History
	Tools        []*ToolDeclaration
	Settings     *Settings
	Runtime      *Runtime
	Invocation   *InvocationOverrides
	UserMemory   string
	Metadata     map[string]any
}

// ResolvedCall is the per-call materialization an adapter receives: model,
// base URL, headers, auth, and request parameters, isolated from any other
// concurrent call on the same adapter instance (§4.G, §5, §8 property 5).
type ResolvedCall struct {
	Provider    string
	Model       string
	BaseURL     string
	AuthToken   string
	Headers     map[string]string
	ModelParams map[string]any
	View        *View
	Tools       []*ToolDeclaration
	Contents    History
	RuntimeID   string

	// Failover is the optional bucket-rotation collaborator of §4.E,
	// consulted by the provider adapter's retry envelope when persistent
	// 429s are observed. Nil means no failover is attempted.
	Failover BucketFailoverHandler

	// RefreshAuth, when non-nil, re-resolves this call's auth token after
	// a successful TryFailover so the retried request carries the rotated
	// bucket's credential (§4.E "the same call is retried with the
	// rotated auth context"). It is call-scoped, not shared across calls.
	RefreshAuth func() (string, error)
}

// Orchestrator normalizes GenerateOptions into a ResolvedCall. It holds no
// per-call state: every method is a pure function of its arguments plus the
// shared, concurrency-safe Settings store (§4.G statelessness guarantee).
type Orchestrator struct {
	ActiveProvider string
	Cache          ResponseCache
	Logger         Logger

	// Failover is the optional bucket-failover handler (§4.E) attached to
	// every ResolvedCall this orchestrator produces. Nil disables failover.
	Failover BucketFailoverHandler
}

func NewOrchestrator(activeProvider string) *Orchestrator {
	return &Orchestrator{ActiveProvider: activeProvider, Logger: &NoopLogger{}}
}

// Resolve validates and materializes a GenerateOptions into a ResolvedCall.
func (o *Orchestrator) Resolve(ctx context.Context, opts GenerateOptions) (*ResolvedCall, error) {
	if len(opts.Contents) == 0 {
		return nil, NewInvalidRequest(opts.ProviderName, "contents must not be empty")
	}
	if opts.ProviderName == "" {
		return nil, NewInvalidRequest("", "providerName is required")
	}
	if opts.Settings == nil {
		return nil, NewInvalidRequest(opts.ProviderName, "settings is required")
	}

	var invocation map[string]string
	if opts.Invocation != nil {
		invocation = opts.Invocation.Ephemerals
	}
	view := opts.Settings.NewView(opts.ProviderName, invocation, nil)

	authToken, err := o.getAuthToken(view)
	if err != nil {
		return nil, err
	}

	runtimeID := ""
	if opts.Runtime != nil {
		runtimeID = opts.Runtime.RuntimeID
	}

	repaired := RepairOrphanToolCalls(opts.Contents, nil)
	repaired = FilterOrphanToolResponses(ctx, repaired, o.Logger)

	rc := &ResolvedCall{
		Provider:    opts.ProviderName,
		Model:       view.GetOr("model", ""),
		BaseURL:     o.getBaseURL(view, opts.ProviderName),
		AuthToken:   authToken,
		Headers:     o.getCustomHeaders(view),
		ModelParams: o.getModelParams(view),
		View:        view,
		Tools:       opts.Tools,
		Contents:    repaired,
		RuntimeID:   runtimeID,
		Failover:    o.Failover,
	}
	if o.Failover != nil {
		rc.RefreshAuth = func() (string, error) { return o.getAuthToken(view) }
	}
	return rc, nil
}

// getAuthToken resolves the provider's credential: auth-key overrides
// auth-keyfile when both are present; a keyfile path is `~`-expanded and its
// contents trimmed (§4.G, §6).
func (o *Orchestrator) getAuthToken(view *View) (string, error) {
	if key, ok := view.Get("auth-key"); ok && key != "" {
		return key, nil
	}

	keyfile, ok := view.Get("auth-keyfile")
	if !ok || keyfile == "" {
		return "", nil
	}

	path, err := expandHome(keyfile)
	if err != nil {
		return "", NewConfigurationError("", "could not resolve keyfile path", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", NewConfigurationError("", "could not read keyfile", err)
	}

	return strings.TrimSpace(string(data)), nil
}

func expandHome(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		u, err := user.Current()
		if err != nil {
			return "", err
		}
		if path == "~" {
			return u.HomeDir, nil
		}
		return u.HomeDir + path[1:], nil
	}
	return path, nil
}

// getBaseURL resolves the effective base URL. A global `base-url` ephemeral
// only applies when this orchestrator's ActiveProvider matches the call's
// provider (§4.G): a base-url meant for provider A must never leak onto a
// concurrent call against provider B.
func (o *Orchestrator) getBaseURL(view *View, providerName string) string {
	if providerName != o.ActiveProvider {
		if v, ok := view.Get("provider-base-url"); ok {
			return v
		}
		return ""
	}
	v, _ := view.Get("base-url")
	return v
}

// getCustomHeaders parses the `custom-headers` ephemeral, a `k1=v1,k2=v2`
// encoded string, into a header map.
func (o *Orchestrator) getCustomHeaders(view *View) map[string]string {
	headers := make(map[string]string)
	raw, ok := view.Get("custom-headers")
	if !ok || raw == "" {
		return headers
	}
	for _, pair := range strings.Split(raw, ",") {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			continue
		}
		headers[strings.TrimSpace(kv[0])] = strings.TrimSpace(kv[1])
	}
	return headers
}

// getModelParams assembles the provider-facing request parameter map from
// the temperature, max-tokens and top-p keys, resolved through the view
// (so any settings scope may supply them); no other key is copied.
func (o *Orchestrator) getModelParams(view *View) map[string]any {
	params := make(map[string]any)
	if v, ok := view.Get("temperature"); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			params["temperature"] = f
		}
	}
	if v, ok := view.Get("max-tokens"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			params["max_tokens"] = n
		}
	}
	if v, ok := view.Get("top-p"); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			params["top_p"] = f
		}
	}
	return params
}
