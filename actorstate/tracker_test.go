/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package actorstate

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

func TestParseRole(t *testing.T) {
	for _, role := range []Role{RoleManager, RoleAdmin, RoleDispatch} {
		parsed, err := ParseRole(string(role))
		require.NoError(t, err)
		require.Equal(t, role, parsed)
	}
	_, err := ParseRole("superuser")
	require.ErrorIs(t, err, ErrUnknownRole)
	_, err = ParseRole("")
	require.ErrorIs(t, err, ErrUnknownRole)
}

type TrackerTestSuite struct {
	suite.Suite
	now     time.Time
	tracker *Tracker
}

func TestTracker(t *testing.T) {
	suite.Run(t, &TrackerTestSuite{})
}

func (ts *TrackerTestSuite) SetupTest() {
	ts.now = time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	ts.tracker = ts.newTracker(nil)
}

func (ts *TrackerTestSuite) newTracker(cfg *Config) *Tracker {
	tracker, err := NewTrackerWithOpts(cfg, TrackerOpts{
		TimeNowProvider: func() time.Time { return ts.now },
	})
	ts.Require().NoError(err)
	return tracker
}

func (ts *TrackerTestSuite) advance(d time.Duration) {
	ts.now = ts.now.Add(d)
}

func (ts *TrackerTestSuite) TestRoleDefaultsToManager() {
	ts.Equal(RoleManager, ts.tracker.Role("actor-1"))
}

func (ts *TrackerTestSuite) TestSetRole() {
	ts.Require().NoError(ts.tracker.SetRole("actor-1", RoleAdmin))
	ts.Equal(RoleAdmin, ts.tracker.Role("actor-1"))

	ts.Require().NoError(ts.tracker.SetRole("actor-1", RoleDispatch))
	ts.Equal(RoleDispatch, ts.tracker.Role("actor-1"))

	err := ts.tracker.SetRole("actor-1", "superuser")
	ts.Require().ErrorIs(err, ErrUnknownRole)
	ts.Equal(RoleDispatch, ts.tracker.Role("actor-1"))
}

func (ts *TrackerTestSuite) TestSelectionLifecycle() {
	_, ok := ts.tracker.Selection("actor-1")
	ts.False(ok)

	ts.Require().Error(ts.tracker.SetSelection("actor-1", "", "code-1"))
	ts.Require().Error(ts.tracker.SetSelection("actor-1", "name-1", ""))

	ts.Require().NoError(ts.tracker.SetSelection("actor-1", "Main warehouse", "wh-1"))
	sel, ok := ts.tracker.Selection("actor-1")
	ts.Require().True(ok)
	ts.Equal("Main warehouse", sel.Name)
	ts.Equal("wh-1", sel.Code)
	ts.True(sel.ChosenAt.Equal(ts.now))

	ts.advance(DefaultSelectionTTL - time.Second)
	_, ok = ts.tracker.Selection("actor-1")
	ts.True(ok)

	ts.advance(time.Second)
	_, ok = ts.tracker.Selection("actor-1")
	ts.False(ok)
}

func (ts *TrackerTestSuite) TestSelectionReplaced() {
	ts.Require().NoError(ts.tracker.SetSelection("actor-1", "First", "c-1"))
	ts.advance(time.Minute)
	ts.Require().NoError(ts.tracker.SetSelection("actor-1", "Second", "c-2"))

	sel, ok := ts.tracker.Selection("actor-1")
	ts.Require().True(ok)
	ts.Equal("Second", sel.Name)
	ts.True(sel.ChosenAt.Equal(ts.now))
}

func (ts *TrackerTestSuite) TestScratch() {
	_, ok := ts.tracker.Scratch("actor-1", "draft")
	ts.False(ok)

	ts.tracker.SetScratch("actor-1", "draft", "hello")
	v, ok := ts.tracker.Scratch("actor-1", "draft")
	ts.Require().True(ok)
	ts.Equal("hello", v)

	ts.advance(DefaultScratchTTL)
	_, ok = ts.tracker.Scratch("actor-1", "draft")
	ts.False(ok)

	ts.tracker.SetScratch("actor-1", "draft", "again")
	v, ok = ts.tracker.Scratch("actor-1", "draft")
	ts.Require().True(ok)
	ts.Equal("again", v)
}

func (ts *TrackerTestSuite) TestFlags() {
	ts.False(ts.tracker.HasFlag("actor-1", "support_mode"))

	ts.tracker.SetFlag("actor-1", "support_mode")
	ts.True(ts.tracker.HasFlag("actor-1", "support_mode"))
	ts.False(ts.tracker.HasFlag("actor-1", "other"))

	ts.tracker.ClearFlag("actor-1", "support_mode")
	ts.False(ts.tracker.HasFlag("actor-1", "support_mode"))

	ts.tracker.ClearFlag("actor-2", "never_set")
}

func (ts *TrackerTestSuite) TestClearTransientKeepsRole() {
	ts.Require().NoError(ts.tracker.SetRole("actor-1", RoleAdmin))
	ts.Require().NoError(ts.tracker.SetSelection("actor-1", "Main", "c-1"))
	ts.tracker.SetScratch("actor-1", "draft", "hello")
	ts.tracker.SetFlag("actor-1", "support_mode")

	ts.tracker.ClearTransient("actor-1")

	_, ok := ts.tracker.Selection("actor-1")
	ts.False(ok)
	_, ok = ts.tracker.Scratch("actor-1", "draft")
	ts.False(ok)
	ts.False(ts.tracker.HasFlag("actor-1", "support_mode"))
	ts.Equal(RoleAdmin, ts.tracker.Role("actor-1"))
	ts.Equal(1, ts.tracker.Len())
}

func (ts *TrackerTestSuite) TestClearTransientDropsEmptyActor() {
	ts.tracker.SetFlag("actor-1", "support_mode")
	ts.Equal(1, ts.tracker.Len())

	ts.tracker.ClearTransient("actor-1")
	ts.Equal(0, ts.tracker.Len())
}

func (ts *TrackerTestSuite) TestForget() {
	ts.Require().NoError(ts.tracker.SetRole("actor-1", RoleAdmin))
	ts.tracker.Forget("actor-1")
	ts.Equal(RoleManager, ts.tracker.Role("actor-1"))
	ts.Equal(0, ts.tracker.Len())
}

func (ts *TrackerTestSuite) TestPurgeExpired() {
	ts.Require().NoError(ts.tracker.SetSelection("actor-1", "Main", "c-1"))
	ts.tracker.SetScratch("actor-1", "draft", "hello")
	ts.tracker.SetScratch("actor-2", "draft", "there")
	ts.Require().NoError(ts.tracker.SetRole("actor-3", RoleAdmin))

	ts.advance(DefaultSelectionTTL + time.Minute)
	purged := ts.tracker.PurgeExpired()
	ts.Equal(3, purged)

	// Emptied actors are gone, the admin survives.
	ts.Equal(1, ts.tracker.Len())
	ts.Equal(RoleAdmin, ts.tracker.Role("actor-3"))

	ts.Equal(0, ts.tracker.PurgeExpired())
}

func (ts *TrackerTestSuite) TestEvictionBeyondMaxActors() {
	tracker := ts.newTracker(&Config{MaxActors: 3})
	for i := 1; i <= 4; i++ {
		ts.Require().NoError(tracker.SetRole(fmt.Sprintf("actor-%d", i), RoleAdmin))
	}
	ts.Equal(3, tracker.Len())
	ts.Equal(RoleManager, tracker.Role("actor-1"))
	ts.Equal(RoleAdmin, tracker.Role("actor-4"))
}

func (ts *TrackerTestSuite) TestZeroTTLNeverExpires() {
	tracker := ts.newTracker(&Config{MaxActors: 10})
	ts.Require().NoError(tracker.SetSelection("actor-1", "Main", "c-1"))
	tracker.SetScratch("actor-1", "draft", "hello")

	ts.advance(1000 * time.Hour)
	_, ok := tracker.Selection("actor-1")
	ts.True(ok)
	_, ok = tracker.Scratch("actor-1", "draft")
	ts.True(ok)
	ts.Equal(0, tracker.PurgeExpired())
}

func TestTrackerConcurrentAccess(t *testing.T) {
	tracker, err := NewTracker(&Config{MaxActors: 100})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				actorID := fmt.Sprintf("actor-%d-%d", g, i%20)
				tracker.SetScratch(actorID, "draft", "v")
				tracker.Scratch(actorID, "draft")
				tracker.SetFlag(actorID, "busy")
				tracker.HasFlag(actorID, "busy")
				tracker.ClearTransient(actorID)
			}
		}(g)
	}
	wg.Wait()
	require.LessOrEqual(t, tracker.Len(), 100)
}
