// Package session drives one debug connection. A Session owns the machine,
// the monitor and the transport for the connection's lifetime, alternating
// between trap service and debuggee execution until the host disconnects,
// the core parks, or the surrounding context is cancelled.
package session

import (
	"context"
	"sync"

	"github.com/trapmon-dev/trapmon/internal/machine"
	"github.com/trapmon-dev/trapmon/internal/machine/debugio"
	"github.com/trapmon-dev/trapmon/internal/monitor"
)

// Snapshot is the diagnostics view of a session, copied at trap boundaries
// so readers never race the dispatch loop.
type Snapshot struct {
	Regs    machine.RegisterFile
	Halt    int // vector being serviced, 0 between episodes
	Traps   uint64
	Acks    int
	Slot    monitor.OpcodeSlot
	Parked  bool
	Running bool
}

// Session binds a machine to a monitor over one transport.
type Session struct {
	mach *machine.Machine
	mon  *monitor.Monitor

	mu   sync.Mutex
	snap Snapshot
}

// New builds a session around mach speaking through tr.
func New(mach *machine.Machine, tr monitor.Transport) *Session {
	cfg := debugio.Bind(mach)
	cfg.Transport = tr
	return &Session{mach: mach, mon: monitor.New(cfg)}
}

// Run services traps until the transport dies, the machine parks, or ctx
// is cancelled. The first trap is synthesized so the host sees a halted
// target the moment it connects. The returned error is nil for a clean
// park, the transport's error when the host went away, or ctx.Err() after
// a cancellation.
func (s *Session) Run(ctx context.Context) error {
	vec := machine.VecTrap
	s.mach.IntController().Raise(vec)
	for {
		s.publish(vec)
		res, err := s.mon.HandleTrap(s.mach.Regs(), vec)
		if err != nil {
			s.finish()
			return err
		}
		if res.IsStep() {
			n := res.Steps()
			if n < 1 {
				n = 1
			}
			vec = s.mach.RunSteps(n)
		} else {
			vec = s.mach.Run(ctx)
		}
		if vec == 0 {
			s.finish()
			return ctx.Err()
		}
	}
}

// Snapshot returns the state last published at a trap boundary.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

func (s *Session) publish(vec int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Traps++
	s.snap.Halt = vec
	s.fillLocked(true)
}

func (s *Session) finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Halt = 0
	s.fillLocked(false)
}

func (s *Session) fillLocked(running bool) {
	s.snap.Regs = *s.mach.Regs()
	s.snap.Slot = s.mon.Slot()
	s.snap.Acks = s.mach.IntController().AckCount()
	s.snap.Parked = s.mach.Parked()
	s.snap.Running = running
}
