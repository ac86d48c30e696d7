package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// InfoFetcher retrieves an agent descriptor document from a URL. The
// URL may be the agent base URL or the full get-info.json URL.
type InfoFetcher interface {
	FetchInfo(ctx context.Context, url string) (*AgentDescriptor, error)
}

// HTTPFetcher fetches descriptors over plain HTTP.
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher creates a fetcher with the given timeout.
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPFetcher{client: &http.Client{Timeout: timeout}}
}

// FetchInfo downloads and decodes a get-info.json document.
func (f *HTTPFetcher) FetchInfo(ctx context.Context, url string) (*AgentDescriptor, error) {
	url = infoURL(url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}

	var desc AgentDescriptor
	if err := json.NewDecoder(resp.Body).Decode(&desc); err != nil {
		return nil, fmt.Errorf("decode descriptor from %s: %w", url, err)
	}
	desc.normalize()
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	return &desc, nil
}

// infoURL appends /get-info.json unless the URL already points at it.
func infoURL(url string) string {
	if strings.HasSuffix(url, "get-info.json") {
		return url
	}
	return strings.TrimRight(url, "/") + "/get-info.json"
}

// Registry is the central index of discovered agents. Safe for
// concurrent use.
type Registry struct {
	mu         sync.RWMutex
	fetcher    InfoFetcher
	cache      DescriptorCache
	agents     map[string]*AgentDescriptor
	order      []string
	skillIndex map[string][]string
	logger     *zap.Logger
}

// RegistryOption customizes a Registry.
type RegistryOption func(*Registry)

// WithCache attaches a descriptor cache consulted before fetching.
func WithCache(cache DescriptorCache) RegistryOption {
	return func(r *Registry) { r.cache = cache }
}

// NewRegistry creates a registry using the given fetcher. A nil fetcher
// uses an HTTPFetcher with defaults; a nil logger disables logging.
func NewRegistry(fetcher InfoFetcher, logger *zap.Logger, opts ...RegistryOption) *Registry {
	if fetcher == nil {
		fetcher = NewHTTPFetcher(0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{
		fetcher:    fetcher,
		agents:     make(map[string]*AgentDescriptor),
		skillIndex: make(map[string][]string),
		logger:     logger.With(zap.String("component", "agent_registry")),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Discover fetches each URL's descriptor independently. A failure on
// one URL is logged and skipped, never aborts discovery of the others.
// Returns the number of agents successfully discovered.
func (r *Registry) Discover(ctx context.Context, urls []string) int {
	discovered := 0
	for _, url := range urls {
		desc, err := r.lookup(ctx, url)
		if err != nil {
			r.logger.Error("failed to discover agent",
				zap.String("url", url), zap.Error(err))
			continue
		}
		r.Add(desc)
		discovered++
		r.logger.Info("discovered agent",
			zap.String("agent_id", desc.ID),
			zap.String("name", desc.Name))
	}
	return discovered
}

// lookup consults the cache first, then the fetcher, caching on miss.
func (r *Registry) lookup(ctx context.Context, url string) (*AgentDescriptor, error) {
	if r.cache != nil {
		if desc, err := r.cache.Get(ctx, url); err == nil && desc != nil {
			return desc, nil
		}
	}
	desc, err := r.fetcher.FetchInfo(ctx, url)
	if err != nil {
		return nil, err
	}
	if r.cache != nil {
		if err := r.cache.Put(ctx, url, desc); err != nil {
			r.logger.Warn("descriptor cache put failed",
				zap.String("url", url), zap.Error(err))
		}
	}
	return desc, nil
}

// Add registers a descriptor and rebuilds its skill index entries.
func (r *Registry) Add(desc *AgentDescriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, known := r.agents[desc.ID]; !known {
		r.order = append(r.order, desc.ID)
	} else {
		// Re-discovery replaces the descriptor; drop stale skill entries.
		for skill, ids := range r.skillIndex {
			r.skillIndex[skill] = removeString(ids, desc.ID)
		}
	}
	r.agents[desc.ID] = desc

	for _, skill := range desc.Skills {
		r.skillIndex[skill.Name] = append(r.skillIndex[skill.Name], desc.ID)
	}
}

// Get returns the descriptor for an agent id, or nil when unknown.
func (r *Registry) Get(agentID string) *AgentDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.agents[agentID]
}

// BySkill returns all agents advertising the named skill.
func (r *Registry) BySkill(skillName string) []*AgentDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := r.skillIndex[skillName]
	out := make([]*AgentDescriptor, 0, len(ids))
	for _, id := range ids {
		if d, ok := r.agents[id]; ok {
			out = append(out, d)
		}
	}
	return out
}

// All returns every registered agent in discovery order.
func (r *Registry) All() []*AgentDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*AgentDescriptor, 0, len(r.order))
	for _, id := range r.order {
		if d, ok := r.agents[id]; ok {
			out = append(out, d)
		}
	}
	return out
}

// Len returns the number of registered agents.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}

// Describe renders a human-readable listing of all agents, suitable
// for inclusion in a model prompt.
func (r *Registry) Describe() string {
	agents := r.All()
	if len(agents) == 0 {
		return "No agents discovered."
	}
	var b strings.Builder
	b.WriteString("Available Agents:")
	for _, d := range agents {
		d.describe(&b)
	}
	return b.String()
}

func removeString(xs []string, s string) []string {
	out := xs[:0]
	for _, x := range xs {
		if x != s {
			out = append(out, x)
		}
	}
	return out
}
