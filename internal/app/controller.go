// Package app owns the interactive terminal client: a small view-state
// controller plus the REPL that renders each screen and wires the profile
// store, insight requester, and voice lab together.
package app

import (
	"errors"
	"fmt"
	"sync"

	"github.com/lordslab/lordslab/internal/metrics"
	"github.com/lordslab/lordslab/internal/profile"
)

// Screen identifies the active view.
type Screen int

const (
	ScreenLogin Screen = iota
	ScreenAthlete
	ScreenVoice
	ScreenCoach
)

func (s Screen) String() string {
	switch s {
	case ScreenLogin:
		return "login"
	case ScreenAthlete:
		return "athlete"
	case ScreenVoice:
		return "voice"
	case ScreenCoach:
		return "coach"
	default:
		return "unknown"
	}
}

// ErrNotLoggedIn is returned for screen actions that need a profile.
var ErrNotLoggedIn = errors.New("not logged in")

// Controller tracks which screen is active and who is logged in. All
// transitions go through its methods; the REPL never mutates state directly.
type Controller struct {
	mu       sync.Mutex
	screen   Screen
	current  profile.Record
	loggedIn bool
	metrics  metrics.Metrics
}

// NewController starts at the login screen with default metrics.
func NewController() *Controller {
	return &Controller{screen: ScreenLogin, metrics: metrics.Default()}
}

// Screen returns the active screen.
func (c *Controller) Screen() Screen {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.screen
}

// Login records the profile and routes to the role's home screen.
func (c *Controller) Login(rec profile.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = rec
	c.loggedIn = true
	c.metrics = metrics.Default()
	if rec.Role == profile.RoleCoach {
		c.screen = ScreenCoach
	} else {
		c.screen = ScreenAthlete
	}
}

// Logout clears the profile and returns to login from any screen.
func (c *Controller) Logout() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = profile.Record{}
	c.loggedIn = false
	c.screen = ScreenLogin
}

// Current returns the logged-in profile.
func (c *Controller) Current() (profile.Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.loggedIn {
		return profile.Record{}, ErrNotLoggedIn
	}
	return c.current, nil
}

// EnterVoice moves from the athlete screen to the voice lab.
func (c *Controller) EnterVoice() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.screen != ScreenAthlete {
		return fmt.Errorf("voice lab opens from the athlete screen, not %s", c.screen)
	}
	c.screen = ScreenVoice
	return nil
}

// LeaveVoice returns from the voice lab to the athlete screen. It is the
// landing spot for every session end, clean or not, so it accepts being
// called when the voice screen is already gone.
func (c *Controller) LeaveVoice() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.screen == ScreenVoice {
		c.screen = ScreenAthlete
	}
}

// SetMetrics validates and stores the athlete's self-reported values.
func (c *Controller) SetMetrics(m metrics.Metrics) error {
	if err := m.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics = m
	return nil
}

// Metrics returns the current self-reported values.
func (c *Controller) Metrics() metrics.Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.metrics
}
