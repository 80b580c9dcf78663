package agent

import (
	"fmt"
	"sync"
	"time"

	"github.com/datacendia/council/internal/types"
)

// entry is one slot of the registry arena. Its status is guarded by its
// own mutex so agents never contend with each other.
type entry struct {
	def Definition

	mu        sync.Mutex
	status    Status
	updatedAt time.Time
}

func (e *entry) snapshot() Agent {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Agent{Definition: e.def, Status: e.status, UpdatedAt: e.updatedAt}
}

func (e *entry) set(s Status) {
	e.status = s
	e.updatedAt = time.Now()
}

// Registry holds the agents of one process. The set of agents is fixed at
// construction; only statuses change afterwards.
type Registry struct {
	entries []*entry
	byID    map[string]*entry
	byCode  map[string]*entry
}

// NewRegistry builds a registry from catalog definitions. Every agent starts
// offline until the first availability probe.
func NewRegistry(defs []Definition) (*Registry, error) {
	r := &Registry{
		entries: make([]*entry, 0, len(defs)),
		byID:    make(map[string]*entry, len(defs)),
		byCode:  make(map[string]*entry, len(defs)),
	}

	now := time.Now()
	for _, d := range defs {
		if _, dup := r.byID[d.ID]; dup {
			return nil, types.NewError(ErrCatalogInvalid, fmt.Sprintf("duplicate agent id %q", d.ID))
		}
		if _, dup := r.byCode[d.Code]; dup {
			return nil, types.NewError(ErrCatalogInvalid, fmt.Sprintf("duplicate agent code %q", d.Code))
		}

		e := &entry{def: d, status: StatusOffline, updatedAt: now}
		r.entries = append(r.entries, e)
		r.byID[d.ID] = e
		r.byCode[d.Code] = e
	}

	return r, nil
}

// Len returns the number of registered agents.
func (r *Registry) Len() int {
	return len(r.entries)
}

// Get returns a snapshot of the agent with the given id.
func (r *Registry) Get(id string) (Agent, error) {
	e, ok := r.byID[id]
	if !ok {
		return Agent{}, NewNotFoundError(id)
	}
	return e.snapshot(), nil
}

// ByCode returns a snapshot of the agent with the given short code.
func (r *Registry) ByCode(code string) (Agent, bool) {
	e, ok := r.byCode[code]
	if !ok {
		return Agent{}, false
	}
	return e.snapshot(), true
}

// Chief returns the agent flagged as chief in the catalog, if any.
func (r *Registry) Chief() (Agent, bool) {
	for _, e := range r.entries {
		if e.def.Chief {
			return e.snapshot(), true
		}
	}
	return Agent{}, false
}

// List returns snapshots of every agent in catalog order.
func (r *Registry) List() []Agent {
	out := make([]Agent, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.snapshot())
	}
	return out
}

// Online returns the agents currently online, in catalog order.
func (r *Registry) Online() []Agent {
	out := make([]Agent, 0, len(r.entries))
	for _, e := range r.entries {
		if a := e.snapshot(); a.Status == StatusOnline {
			out = append(out, a)
		}
	}
	return out
}

// Counts returns how many agents are in each status.
func (r *Registry) Counts() map[Status]int {
	counts := map[Status]int{StatusOnline: 0, StatusOffline: 0, StatusBusy: 0}
	for _, e := range r.entries {
		counts[e.snapshot().Status]++
	}
	return counts
}

// SetStatus forces the status of one agent.
func (r *Registry) SetStatus(id string, s Status) error {
	if !s.IsValid() {
		return fmt.Errorf("invalid agent status: %s", s)
	}
	e, ok := r.byID[id]
	if !ok {
		return NewNotFoundError(id)
	}
	e.mu.Lock()
	e.set(s)
	e.mu.Unlock()
	return nil
}

// SetAll forces every agent to s.
func (r *Registry) SetAll(s Status) {
	for _, e := range r.entries {
		e.mu.Lock()
		e.set(s)
		e.mu.Unlock()
	}
}

// SetAvailable applies a probe verdict: an available agent goes online
// unless it is busy; an unavailable one goes offline even if busy. It
// reports whether the status changed.
func (r *Registry) SetAvailable(id string, available bool) (bool, error) {
	e, ok := r.byID[id]
	if !ok {
		return false, NewNotFoundError(id)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	prev := e.status
	switch {
	case !available:
		e.set(StatusOffline)
	case prev == StatusOffline:
		e.set(StatusOnline)
	}
	return prev != e.status, nil
}

// Acquire moves an online agent to busy and returns the function that
// releases it. At most one caller holds an agent at a time. Release puts
// the agent back online unless it was taken offline meanwhile; calling it
// more than once is harmless.
func (r *Registry) Acquire(id string) (release func(), err error) {
	e, ok := r.byID[id]
	if !ok {
		return nil, NewNotFoundError(id)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.status {
	case StatusBusy:
		return nil, NewBusyError(id)
	case StatusOffline:
		return nil, NewUnavailableError(id)
	}
	e.set(StatusBusy)

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			if e.status == StatusBusy {
				e.set(StatusOnline)
			}
		})
	}, nil
}
