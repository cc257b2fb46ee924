package cron

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Scope says where a job's effects land.
type Scope int

const (
	// ScopeInstance jobs act on this process's memory and run on every replica.
	ScopeInstance Scope = iota
	// ScopeShared jobs act on shared storage and run on one replica at a time.
	ScopeShared
)

func (s Scope) String() string {
	if s == ScopeShared {
		return "shared"
	}
	return "instance"
}

// Job is a unit of housekeeping work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Entry binds a job to its cadence.
type Entry struct {
	Job   Job
	Every time.Duration
	Scope Scope
}

type scheduled struct {
	Entry
	lastRun time.Time
}

// Registry holds the scheduled jobs. It is owned by a single Service loop.
type Registry struct {
	entries []*scheduled
	names   map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{names: map[string]struct{}{}}
}

// Register adds an entry. Names must be unique and cadences positive.
func (r *Registry) Register(entry Entry) error {
	if entry.Job == nil {
		return fmt.Errorf("job required")
	}
	name := strings.TrimSpace(entry.Job.Name())
	if name == "" {
		return fmt.Errorf("job name required")
	}
	if entry.Every <= 0 {
		return fmt.Errorf("job %s: cadence must be positive", name)
	}
	if _, dup := r.names[name]; dup {
		return fmt.Errorf("job %s already registered", name)
	}
	r.names[name] = struct{}{}
	r.entries = append(r.entries, &scheduled{Entry: entry})
	return nil
}

// Entries returns the registered entries in the order they were added.
func (r *Registry) Entries() []Entry {
	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Entry)
	}
	return out
}

func (r *Registry) hasShared() bool {
	for _, e := range r.entries {
		if e.Scope == ScopeShared {
			return true
		}
	}
	return false
}

func (r *Registry) shortestCadence() time.Duration {
	var shortest time.Duration
	for _, e := range r.entries {
		if shortest == 0 || e.Every < shortest {
			shortest = e.Every
		}
	}
	return shortest
}

// due lists entries of the given scope whose cadence elapsed by now. slack
// absorbs ticker drift so a job on the tick cadence is not pushed a full tick.
func (r *Registry) due(now time.Time, scope Scope, slack time.Duration) []*scheduled {
	var out []*scheduled
	for _, e := range r.entries {
		if e.Scope != scope {
			continue
		}
		if e.lastRun.IsZero() || now.Sub(e.lastRun)+slack >= e.Every {
			out = append(out, e)
		}
	}
	return out
}
