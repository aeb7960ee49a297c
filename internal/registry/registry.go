package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"
)

// Category is the fixed product taxonomy endpoints are registered under.
type Category string

const (
	CategoryCycling     Category = "cycling"
	CategoryElectronics Category = "electronics"
	CategoryFashion     Category = "fashion"
	CategoryHome        Category = "home"
	CategoryOutdoors    Category = "outdoors"
	CategoryGeneral     Category = "general"
)

var categories = map[Category]bool{
	CategoryCycling:     true,
	CategoryElectronics: true,
	CategoryFashion:     true,
	CategoryHome:        true,
	CategoryOutdoors:    true,
	CategoryGeneral:     true,
}

// ParseCategory resolves a free-form category string to the fixed enum.
// Unknown values resolve to CategoryGeneral.
func ParseCategory(s string) Category {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if categories[c] {
		return c
	}
	return CategoryGeneral
}

// TagNoBroadcast opts an endpoint out of offer acquisition entirely.
const TagNoBroadcast = "no_broadcast"

// DefaultWeight is assumed when a record carries no weight.
const DefaultWeight = 100

// Endpoint is one configured external catalog source.
type Endpoint struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Category Category `json:"category"`
	BaseURL  string   `json:"base_url,omitempty"`
	MCPURL   string   `json:"mcp_url"`
	Enabled  bool     `json:"enabled"`
	Weight   int      `json:"weight,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

// HasTag reports whether the endpoint carries the given free-form tag.
func (e Endpoint) HasTag(tag string) bool {
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Usable reports whether the record can be selected at all.
func (e Endpoint) Usable() bool {
	return e.Enabled && e.ID != "" && e.Name != "" && e.MCPURL != ""
}

// Registry is the read-only collection of seller endpoints. It is loaded once
// and may be shared across concurrent requests.
type Registry struct {
	endpoints []Endpoint
}

// New builds a registry from records, normalizing categories and weights.
func New(endpoints []Endpoint) *Registry {
	out := make([]Endpoint, 0, len(endpoints))
	for _, e := range endpoints {
		e.Category = ParseCategory(string(e.Category))
		if e.Weight <= 0 {
			e.Weight = DefaultWeight
		}
		out = append(out, e)
	}
	return &Registry{endpoints: out}
}

// Load reads the registry file (a JSON array of endpoint records).
func Load(path string) (*Registry, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("registry: read %s: %w", path, err)
	}
	var records []Endpoint
	if err := json.Unmarshal(b, &records); err != nil {
		return nil, fmt.Errorf("registry: parse %s: %w", path, err)
	}
	return New(records), nil
}

// All returns every record, usable or not.
func (r *Registry) All() []Endpoint {
	out := make([]Endpoint, len(r.endpoints))
	copy(out, r.endpoints)
	return out
}

// Pool selects the working pool for one acquisition run: usable endpoints in
// the category, minus broadcast opt-outs, ordered by weight descending then id
// ascending, rotated by the hour bucket of now, capped at limit.
//
// The hour rotation spreads load across sellers while staying reproducible
// within a one-hour window.
func (r *Registry) Pool(category Category, now time.Time, limit int) []Endpoint {
	var pool []Endpoint
	for _, e := range r.endpoints {
		if !e.Usable() || e.Category != category || e.HasTag(TagNoBroadcast) {
			continue
		}
		pool = append(pool, e)
	}
	sort.SliceStable(pool, func(i, j int) bool {
		if pool[i].Weight != pool[j].Weight {
			return pool[i].Weight > pool[j].Weight
		}
		return pool[i].ID < pool[j].ID
	})
	if len(pool) > 1 {
		offset := now.UTC().Hour() % len(pool)
		pool = append(pool[offset:], pool[:offset]...)
	}
	if limit > 0 && len(pool) > limit {
		pool = pool[:limit]
	}
	return pool
}

// Validate reports problems in the loaded records. Disabled records are
// checked too so a lint run catches typos before a record is switched on.
func (r *Registry) Validate() []error {
	var errs []error
	seen := map[string]bool{}
	for i, e := range r.endpoints {
		if e.ID == "" {
			errs = append(errs, fmt.Errorf("record %d: missing id", i))
			continue
		}
		if seen[e.ID] {
			errs = append(errs, fmt.Errorf("record %d (%s): duplicate id", i, e.ID))
		}
		seen[e.ID] = true
		if e.Name == "" {
			errs = append(errs, fmt.Errorf("record %d (%s): missing name", i, e.ID))
		}
		if e.MCPURL == "" {
			errs = append(errs, fmt.Errorf("record %d (%s): missing mcp_url", i, e.ID))
		} else if !strings.HasPrefix(e.MCPURL, "http://") && !strings.HasPrefix(e.MCPURL, "https://") {
			errs = append(errs, fmt.Errorf("record %d (%s): mcp_url must be absolute", i, e.ID))
		}
		if e.BaseURL != "" && !strings.HasPrefix(e.BaseURL, "http://") && !strings.HasPrefix(e.BaseURL, "https://") {
			errs = append(errs, fmt.Errorf("record %d (%s): base_url must be absolute", i, e.ID))
		}
	}
	return errs
}
