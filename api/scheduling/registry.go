// Package scheduling exposes the in-memory client and provider registry and
// scheduling runs over HTTP with gin.
package scheduling

import (
	"errors"
	"fmt"
	"sync"

	"github.com/kilianp07/caresched/core/model"
	"github.com/kilianp07/caresched/core/schedule"
)

var (
	ErrDuplicateID = errors.New("id already registered")
	ErrNotFound    = errors.New("not found")
)

// Registry holds the clients and providers entered through the API, the
// fixed weekly timeslots and the most recent run.
type Registry struct {
	mu           sync.RWMutex
	clients      []model.Client
	providers    []model.Provider
	timeslots    []model.Timeslot
	nextClient   int
	nextProvider int

	last    *schedule.Outcome
	lastSet model.Dataset
}

// NewRegistry returns an empty registry scheduling over timeslots.
func NewRegistry(timeslots []model.Timeslot) *Registry {
	return &Registry{timeslots: timeslots}
}

// AddClient stores c, assigning the next "C<n>" id when c.ID is empty.
func (r *Registry) AddClient(c model.Client) (model.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.ID == "" {
		c.ID = r.nextID("C", &r.nextClient, func(id string) bool { return r.clientIndex(id) >= 0 })
	} else if r.clientIndex(c.ID) >= 0 {
		return model.Client{}, fmt.Errorf("client %s: %w", c.ID, ErrDuplicateID)
	}
	r.clients = append(r.clients, c)
	return c, nil
}

// AddProvider stores p, assigning the next "P<n>" id when p.ID is empty.
func (r *Registry) AddProvider(p model.Provider) (model.Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == "" {
		p.ID = r.nextID("P", &r.nextProvider, func(id string) bool { return r.providerIndex(id) >= 0 })
	} else if r.providerIndex(p.ID) >= 0 {
		return model.Provider{}, fmt.Errorf("provider %s: %w", p.ID, ErrDuplicateID)
	}
	r.providers = append(r.providers, p)
	return p, nil
}

func (r *Registry) nextID(prefix string, counter *int, taken func(string) bool) string {
	for {
		*counter++
		id := fmt.Sprintf("%s%d", prefix, *counter)
		if !taken(id) {
			return id
		}
	}
}

// DeleteClient removes the client with the given id.
func (r *Registry) DeleteClient(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.clientIndex(id)
	if i < 0 {
		return fmt.Errorf("client %s: %w", id, ErrNotFound)
	}
	r.clients = append(r.clients[:i], r.clients[i+1:]...)
	return nil
}

// DeleteProvider removes the provider with the given id.
func (r *Registry) DeleteProvider(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.providerIndex(id)
	if i < 0 {
		return fmt.Errorf("provider %s: %w", id, ErrNotFound)
	}
	r.providers = append(r.providers[:i], r.providers[i+1:]...)
	return nil
}

func (r *Registry) clientIndex(id string) int {
	for i, c := range r.clients {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func (r *Registry) providerIndex(id string) int {
	for i, p := range r.providers {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func (r *Registry) Clients() []model.Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]model.Client{}, r.clients...)
}

func (r *Registry) Providers() []model.Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]model.Provider{}, r.providers...)
}

// Dataset snapshots the registry.
func (r *Registry) Dataset() model.Dataset {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return model.Dataset{
		Clients:   append([]model.Client{}, r.clients...),
		Providers: append([]model.Provider{}, r.providers...),
		Timeslots: append([]model.Timeslot{}, r.timeslots...),
	}
}

// SetOutcome records the latest run and the dataset it ran on.
func (r *Registry) SetOutcome(ds model.Dataset, o schedule.Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last = &o
	r.lastSet = ds
}

// Outcome returns the latest run; ok is false when no run was attempted.
func (r *Registry) Outcome() (ds model.Dataset, o schedule.Outcome, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.last == nil {
		return model.Dataset{}, schedule.Outcome{}, false
	}
	return r.lastSet, *r.last, true
}
