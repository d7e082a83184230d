/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package actorstate

import (
	"fmt"
	"sync"
	"time"

	"github.com/acronis/go-botkit/internal/lrumap"
	"github.com/acronis/go-botkit/log"
)

// TrackerOpts represents options for creating a Tracker.
type TrackerOpts struct {
	// Logger is used for logging. No logging by default.
	Logger log.FieldLogger

	// TimeNowProvider allows overriding the time source in tests.
	TimeNowProvider func() time.Time
}

// Tracker keeps the session state of up to MaxActors actors.
// It is safe for concurrent use. Expired selections and scratch values are
// dropped lazily on read and in bulk by PurgeExpired.
type Tracker struct {
	selectionTTL time.Duration
	scratchTTL   time.Duration
	timeNow      func() time.Time
	logger       log.FieldLogger

	mu     sync.Mutex
	actors *lrumap.Map[string, *actorState]
}

type actorState struct {
	role         Role
	selection    Selection
	hasSelection bool
	scratch      map[string]scratchValue
	flags        map[string]struct{}
}

type scratchValue struct {
	value string
	setAt time.Time
}

// NewTracker creates a new Tracker described by the Config.
// A nil cfg means default configuration.
func NewTracker(cfg *Config) (*Tracker, error) {
	return NewTrackerWithOpts(cfg, TrackerOpts{})
}

// NewTrackerWithOpts creates a new Tracker with the provided options.
func NewTrackerWithOpts(cfg *Config, opts TrackerOpts) (*Tracker, error) {
	if cfg == nil {
		cfg = NewDefaultConfig()
	} else {
		cfgCopy := *cfg
		cfg = &cfgCopy
		if cfg.MaxActors == 0 {
			cfg.MaxActors = DefaultMaxActors
		}
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = log.NewDisabledLogger()
	}
	if opts.TimeNowProvider == nil {
		opts.TimeNowProvider = time.Now
	}
	actors, err := lrumap.New[string, *actorState](cfg.MaxActors)
	if err != nil {
		return nil, fmt.Errorf("create actors map: %w", err)
	}
	return &Tracker{
		selectionTTL: time.Duration(cfg.SelectionTTL),
		scratchTTL:   time.Duration(cfg.ScratchTTL),
		timeNow:      opts.TimeNowProvider,
		logger:       opts.Logger,
		actors:       actors,
	}, nil
}

// SetRole assigns a role to the actor.
func (t *Tracker) SetRole(actorID string, role Role) error {
	if _, err := ParseRole(string(role)); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state(actorID).role = role
	return nil
}

// Role returns the actor's role, RoleManager when none was set.
func (t *Tracker) Role(actorID string) Role {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.actors.Get(actorID)
	if !ok || st.role == "" {
		return RoleManager
	}
	return st.role
}

// SetSelection records the actor's current working choice.
// Name and code must both be non-empty.
func (t *Tracker) SetSelection(actorID, name, code string) error {
	if name == "" || code == "" {
		return fmt.Errorf("selection name and code should not be empty")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	st := t.state(actorID)
	st.selection = Selection{Name: name, Code: code, ChosenAt: t.timeNow()}
	st.hasSelection = true
	return nil
}

// Selection returns the actor's current selection.
// An expired selection is dropped and reported as absent.
func (t *Tracker) Selection(actorID string) (Selection, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.actors.Get(actorID)
	if !ok || !st.hasSelection {
		return Selection{}, false
	}
	if t.expired(st.selection.ChosenAt, t.selectionTTL) {
		st.selection = Selection{}
		st.hasSelection = false
		return Selection{}, false
	}
	return st.selection, true
}

// SetScratch stores an ad-hoc short-lived value for the actor.
func (t *Tracker) SetScratch(actorID, key, value string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st := t.state(actorID)
	if st.scratch == nil {
		st.scratch = make(map[string]scratchValue)
	}
	st.scratch[key] = scratchValue{value: value, setAt: t.timeNow()}
}

// Scratch returns the actor's scratch value for the key.
// An expired value is dropped and reported as absent.
func (t *Tracker) Scratch(actorID, key string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.actors.Get(actorID)
	if !ok {
		return "", false
	}
	sv, ok := st.scratch[key]
	if !ok {
		return "", false
	}
	if t.expired(sv.setAt, t.scratchTTL) {
		delete(st.scratch, key)
		return "", false
	}
	return sv.value, true
}

// SetFlag raises an untimed flag for the actor.
func (t *Tracker) SetFlag(actorID, flag string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st := t.state(actorID)
	if st.flags == nil {
		st.flags = make(map[string]struct{})
	}
	st.flags[flag] = struct{}{}
}

// ClearFlag lowers the actor's flag. Clearing an absent flag is a no-op.
func (t *Tracker) ClearFlag(actorID, flag string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if st, ok := t.actors.Get(actorID); ok {
		delete(st.flags, flag)
	}
}

// HasFlag reports whether the actor's flag is raised.
func (t *Tracker) HasFlag(actorID, flag string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.actors.Get(actorID)
	if !ok {
		return false
	}
	_, has := st.flags[flag]
	return has
}

// ClearTransient drops the actor's selection, scratch values and flags.
// The role survives, clearing state never demotes an actor.
func (t *Tracker) ClearTransient(actorID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.actors.Get(actorID)
	if !ok {
		return
	}
	st.selection = Selection{}
	st.hasSelection = false
	st.scratch = nil
	st.flags = nil
	if stateEmpty(st) {
		t.actors.Remove(actorID)
	}
}

// Forget removes the actor entirely, role included.
func (t *Tracker) Forget(actorID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.actors.Remove(actorID)
}

// PurgeExpired drops all expired selections and scratch values and removes
// actors left with no state. It returns the number of dropped values.
// Intended for a periodic worker.
func (t *Tracker) PurgeExpired() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.timeNow()
	purged := 0
	t.actors.Range(func(_ string, st *actorState) bool {
		if st.hasSelection && t.expiredAt(now, st.selection.ChosenAt, t.selectionTTL) {
			st.selection = Selection{}
			st.hasSelection = false
			purged++
		}
		for key, sv := range st.scratch {
			if t.expiredAt(now, sv.setAt, t.scratchTTL) {
				delete(st.scratch, key)
				purged++
			}
		}
		return true
	})
	removed := t.actors.RemoveIf(func(_ string, st *actorState) bool {
		return stateEmpty(st)
	})
	if purged > 0 || removed > 0 {
		t.logger.Debug("purged expired actor state",
			log.Int("purged_values", purged), log.Int("removed_actors", removed))
	}
	return purged
}

// Len returns the number of tracked actors.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.actors.Len()
}

// state returns the actor's state, creating it when absent.
// The caller must hold t.mu.
func (t *Tracker) state(actorID string) *actorState {
	st, _ := t.actors.GetOrAdd(actorID, func() *actorState {
		return &actorState{}
	})
	return st
}

func (t *Tracker) expired(setAt time.Time, ttl time.Duration) bool {
	return t.expiredAt(t.timeNow(), setAt, ttl)
}

// expiredAt reports whether a value set at setAt has outlived ttl. A zero ttl
// disables expiry.
func (t *Tracker) expiredAt(now, setAt time.Time, ttl time.Duration) bool {
	return ttl > 0 && now.Sub(setAt) >= ttl
}

func stateEmpty(st *actorState) bool {
	return (st.role == "" || st.role == RoleManager) &&
		!st.hasSelection && len(st.scratch) == 0 && len(st.flags) == 0
}
