package specialist

import (
	"fmt"

	"github.com/hupe1980/callcentre/core"
	"github.com/hupe1980/callcentre/model"
)

// Registry holds one constructed specialist per ID for the lifetime of a
// session. Iteration order follows registration order.
type Registry struct {
	order []ID
	byID  map[ID]*Specialist
}

// NewRegistry constructs specialists from the given configs sharing one model
// handle. The general specialist must be present: it is the routing fallback.
func NewRegistry(llm model.Model, cfgs []Config, optFns ...func(o *Options)) (*Registry, error) {
	r := &Registry{byID: make(map[ID]*Specialist, len(cfgs))}
	for _, cfg := range cfgs {
		if !cfg.ID.Valid() {
			return nil, fmt.Errorf("invalid specialist id %q", cfg.ID)
		}
		if _, exists := r.byID[cfg.ID]; exists {
			return nil, fmt.Errorf("duplicate specialist %q", cfg.ID)
		}
		r.byID[cfg.ID] = New(cfg, llm, optFns...)
		r.order = append(r.order, cfg.ID)
	}
	if _, ok := r.byID[General]; !ok {
		return nil, fmt.Errorf("registry requires the %s specialist as routing fallback", General)
	}
	return r, nil
}

// Get returns the specialist for an ID.
func (r *Registry) Get(id ID) (*Specialist, bool) {
	s, ok := r.byID[id]
	return s, ok
}

// IDs returns the registered specialist IDs in registration order.
func (r *Registry) IDs() []ID {
	ids := make([]ID, len(r.order))
	copy(ids, r.order)
	return ids
}

// Descriptions returns id -> description for building routing instructions.
func (r *Registry) Descriptions() map[ID]string {
	m := make(map[ID]string, len(r.byID))
	for id, s := range r.byID {
		m[id] = s.Description()
	}
	return m
}

// Tools exposes every non-general specialist as an invocable tool bound to
// the session. The general case stays with the supervisor, which answers it
// directly.
func (r *Registry) Tools(sess *core.SessionState) []model.Tool {
	tools := make([]model.Tool, 0, len(r.order))
	for _, id := range r.order {
		if id == General {
			continue
		}
		tools = append(tools, r.byID[id].Tool(sess))
	}
	return tools
}
