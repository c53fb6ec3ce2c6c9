package version

import (
	"context"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"qbank/internal/remote"
	"qbank/internal/snapshot"
)

// State of the boot check: idle → checking → migrating|update-required → idle.
type State int

const (
	StateIdle State = iota
	StateChecking
	StateMigrating
	StateUpdateRequired
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateChecking:
		return "checking"
	case StateMigrating:
		return "migrating"
	case StateUpdateRequired:
		return "update-required"
	default:
		return "unknown"
	}
}

// MarkerStore persists the last app version that successfully ran here.
type MarkerStore interface {
	VersionMarker() (string, error)
	SetVersionMarker(version string) error
}

// Gate is the remote minimum-version source. A nil gate skips the check.
type Gate interface {
	MinimumVersion(ctx context.Context) (remote.VersionGate, error)
}

// Manager compares the stored version marker against the running build and
// clears the volatile seed cache on mismatch, leaving user data alone. It
// separately consults the server-declared floor version, which can block
// app entry regardless of local state.
type Manager struct {
	running string
	markers MarkerStore
	seeds   snapshot.Store
	gate    Gate

	state State
}

func NewManager(running string, markers MarkerStore, seeds snapshot.Store, gate Gate) *Manager {
	return &Manager{
		running: running,
		markers: markers,
		seeds:   seeds,
		gate:    gate,
		state:   StateIdle,
	}
}

// Result of a boot check.
type Result struct {
	State          State
	MinimumVersion string
	UpdateMessage  string
	// Migrated means the seed cache was cleared and the marker rewritten;
	// the process must fully reload so the store reseeds from the asset.
	Migrated bool
}

// State returns the manager's current state.
func (m *Manager) State() State {
	return m.state
}

// Check runs the boot sequence. The gate is consulted first when reachable;
// an unreachable gate never blocks entry. Then any marker mismatch, not
// just "less than", triggers a migration, guaranteeing that schema or
// content changes bundled with a release are always picked up.
func (m *Manager) Check(ctx context.Context) (Result, error) {
	m.state = StateChecking
	defer func() {
		if m.state == StateChecking || m.state == StateMigrating {
			m.state = StateIdle
		}
	}()

	if m.gate != nil {
		gate, err := m.gate.MinimumVersion(ctx)
		if err != nil {
			// Never block the user on a gate we could not reach.
			log.WithError(err).Warn("version gate unreachable, continuing")
		} else if !AtLeast(m.running, gate.MinimumVersion) {
			// Terminal until the user installs a qualifying build.
			m.state = StateUpdateRequired
			return Result{
				State:          StateUpdateRequired,
				MinimumVersion: gate.MinimumVersion,
				UpdateMessage:  gate.ForceUpdateMessage,
			}, nil
		}
	}

	marker, err := m.markers.VersionMarker()
	if err != nil {
		return Result{}, errors.Wrap(err, "read version marker")
	}

	if marker == m.running {
		return Result{State: StateIdle}, nil
	}

	m.state = StateMigrating
	log.WithFields(log.Fields{
		"stored":  marker,
		"running": m.running,
	}).Info("version mismatch, clearing seed cache")

	// Only the seed-derived snapshot is volatile; attempts and bookmarks
	// stay untouched.
	if err := m.seeds.Delete(); err != nil {
		log.WithError(err).Warn("failed to clear seed snapshot")
	}

	if err := m.markers.SetVersionMarker(m.running); err != nil {
		return Result{}, errors.Wrap(err, "write version marker")
	}

	return Result{State: StateMigrating, Migrated: true}, nil
}
