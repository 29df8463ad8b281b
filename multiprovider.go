package llmrt

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// ProviderAdapter is the subset of providers.Adapter this file depends on.
// It is declared here, rather than imported, so this caller-side
// convenience never creates an import cycle with package providers; any
// concrete adapter satisfies it structurally.
type ProviderAdapter interface {
	Name() string
	Generate(ctx context.Context, call *ResolvedCall) (<-chan Content, <-chan error)
	IsAuthenticated(call *ResolvedCall) bool
}

// ProviderStatus is the caller-observed health of a registered adapter.
type ProviderStatus int

const (
	ProviderStatusUnknown ProviderStatus = iota
	ProviderStatusHealthy
	ProviderStatusDegraded
	ProviderStatusUnhealthy
	ProviderStatusDisabled
)

func (s ProviderStatus) String() string {
	switch s {
	case ProviderStatusHealthy:
		return "healthy"
	case ProviderStatusDegraded:
		return "degraded"
	case ProviderStatusUnhealthy:
		return "unhealthy"
	case ProviderStatusDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// ProviderHealth tracks a registered adapter's recent call outcomes. It is
// updated by MultiProvider.Generate, and its Status also by Disable and
// Enable; the §4.G per-call pipeline itself never reads or writes it.
type ProviderHealth struct {
	Status          ProviderStatus
	ErrorCount      int64
	SuccessCount    int64
	AvgResponseTime time.Duration
	LastError       string
	LastCheck       time.Time
}

// SelectionStrategy picks which registered adapter handles the next call.
type SelectionStrategy int

const (
	StrategyRoundRobin SelectionStrategy = iota
	StrategyWeighted
	StrategyPriority
	StrategyRandom
)

type registeredProvider struct {
	adapter  ProviderAdapter
	weight   float64
	priority int
	health   ProviderHealth
	circuit  *CircuitBreaker
}

// MultiProvider is a caller-side convenience for picking which adapter to
// hand to the orchestrator next; it never substitutes for the stateless,
// single-provider-per-call pipeline in orchestrator.go. A caller that only
// ever targets one provider has no use for this type.
type MultiProvider struct {
	mu        sync.RWMutex
	providers []*registeredProvider
	strategy  SelectionStrategy
	rrIndex   int
	Logger    Logger
}

func NewMultiProvider(strategy SelectionStrategy) *MultiProvider {
	return &MultiProvider{strategy: strategy, Logger: &NoopLogger{}}
}

// Register adds an adapter under the given weight (used by StrategyWeighted)
// and priority (lower runs first under StrategyPriority, ties broken by
// registration order).
func (mp *MultiProvider) Register(adapter ProviderAdapter, weight float64, priority int) {
	if weight <= 0 {
		weight = 1.0
	}
	mp.mu.Lock()
	defer mp.mu.Unlock()
	mp.providers = append(mp.providers, &registeredProvider{
		adapter:  adapter,
		weight:   weight,
		priority: priority,
		circuit:  NewCircuitBreaker(adapter.Name(), 5, 30*time.Second),
	})
}

// Disable marks a provider unavailable for selection until Enable is called.
func (mp *MultiProvider) Disable(name string) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	for _, p := range mp.providers {
		if p.adapter.Name() == name {
			p.health.Status = ProviderStatusDisabled
		}
	}
}

func (mp *MultiProvider) Enable(name string) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	for _, p := range mp.providers {
		if p.adapter.Name() == name {
			p.health.Status = ProviderStatusUnknown
		}
	}
}

// Health returns a snapshot of every registered provider's health.
func (mp *MultiProvider) Health() map[string]ProviderHealth {
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	out := make(map[string]ProviderHealth, len(mp.providers))
	for _, p := range mp.providers {
		out[p.adapter.Name()] = p.health
	}
	return out
}

func (mp *MultiProvider) available() []*registeredProvider {
	var out []*registeredProvider
	for _, p := range mp.providers {
		if p.health.Status == ProviderStatusDisabled {
			continue
		}
		if !p.circuit.ShouldAllowRequest() {
			continue
		}
		out = append(out, p)
	}
	return out
}

func (mp *MultiProvider) selectLocked() (*registeredProvider, error) {
	candidates := mp.available()
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no available providers")
	}

	switch mp.strategy {
	case StrategyPriority:
		best := candidates[0]
		for _, p := range candidates[1:] {
			if p.priority < best.priority {
				best = p
			}
		}
		return best, nil

	case StrategyWeighted:
		var total float64
		for _, p := range candidates {
			total += p.weight
		}
		r := rand.Float64() * total
		for _, p := range candidates {
			r -= p.weight
			if r <= 0 {
				return p, nil
			}
		}
		return candidates[len(candidates)-1], nil

	case StrategyRandom:
		return candidates[rand.Intn(len(candidates))], nil

	default: // StrategyRoundRobin
		mp.rrIndex = (mp.rrIndex + 1) % len(candidates)
		return candidates[mp.rrIndex], nil
	}
}

// Generate selects a registered adapter and runs the call against it,
// falling back on failure to the strategy's next pick, or to the first
// candidate not yet tried when that pick already failed in this call,
// recording health on every attempt. The caller is still responsible for
// calling Orchestrator.Resolve per provider to build each ResolvedCall.
func (mp *MultiProvider) Generate(ctx context.Context, resolve func(providerName string) (*ResolvedCall, error)) (<-chan Content, <-chan error) {
	contentCh := make(chan Content)
	errCh := make(chan error, 1)

	go func() {
		mp.mu.Lock()
		candidates := mp.available()
		mp.mu.Unlock()

		if len(candidates) == 0 {
			errCh <- fmt.Errorf("no available providers")
			close(contentCh)
			close(errCh)
			return
		}

		var lastErr error
		tried := make(map[*registeredProvider]bool)
		for attempt := 0; attempt < len(candidates); attempt++ {
			mp.mu.Lock()
			chosen, err := mp.selectLocked()
			mp.mu.Unlock()
			if err != nil {
				lastErr = err
				break
			}
			if tried[chosen] {
				for _, p := range candidates {
					if !tried[p] {
						chosen = p
						break
					}
				}
			}
			tried[chosen] = true

			call, err := resolve(chosen.adapter.Name())
			if err != nil {
				lastErr = err
				mp.recordFailure(chosen, err)
				continue
			}

			start := time.Now()
			innerContent, innerErr := chosen.adapter.Generate(ctx, call)
			failed := false
			for {
				select {
				case c, ok := <-innerContent:
					if !ok {
						innerContent = nil
					} else {
						contentCh <- c
					}
				case e, ok := <-innerErr:
					if !ok {
						innerErr = nil
					} else if e != nil {
						lastErr = e
						failed = true
					}
				}
				if innerContent == nil && innerErr == nil {
					break
				}
			}

			if failed {
				mp.recordFailure(chosen, lastErr)
				continue
			}
			mp.recordSuccess(chosen, time.Since(start))
			close(contentCh)
			close(errCh)
			return
		}

		if lastErr == nil {
			lastErr = fmt.Errorf("all providers exhausted")
		}
		errCh <- lastErr
		close(contentCh)
		close(errCh)
	}()

	return contentCh, errCh
}

func (mp *MultiProvider) recordSuccess(p *registeredProvider, elapsed time.Duration) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	p.circuit.RecordSuccess()
	p.health.SuccessCount++
	p.health.Status = ProviderStatusHealthy
	p.health.LastCheck = time.Now()
	if p.health.AvgResponseTime == 0 {
		p.health.AvgResponseTime = elapsed
	} else {
		p.health.AvgResponseTime = (p.health.AvgResponseTime + elapsed) / 2
	}
}

func (mp *MultiProvider) recordFailure(p *registeredProvider, err error) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	p.circuit.RecordFailure()
	p.health.ErrorCount++
	p.health.LastCheck = time.Now()
	if err != nil {
		p.health.LastError = err.Error()
	}
	if p.circuit.IsOpen() {
		p.health.Status = ProviderStatusUnhealthy
	} else {
		p.health.Status = ProviderStatusDegraded
	}
}
