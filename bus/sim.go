package bus

import "sync"

// Sim is a loop-back Bus implementation: every cycle succeeds with the full
// expected working counter unless degraded has been toggled on, letting
// tests drive the bus supervisor's recovery path deterministically.
type Sim struct {
	mu          sync.Mutex
	slaveCount  int
	expectedWKC int
	degraded    bool
	states      map[int]SlaveState
}

// NewSim returns a simulated bus pre-configured with slaveCount slaves.
func NewSim(slaveCount int) *Sim {
	states := make(map[int]SlaveState, slaveCount)
	for i := 1; i <= slaveCount; i++ {
		states[i] = StateOp
	}
	return &Sim{slaveCount: slaveCount, expectedWKC: slaveCount, states: states}
}

func (s *Sim) Bringup(_ string) (int, int, bool, error) {
	return s.slaveCount, s.expectedWKC, true, nil
}

func (s *Sim) SendProcess() {}

func (s *Sim) ReceiveProcess() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.degraded {
		return s.expectedWKC - 1
	}
	return s.expectedWKC
}

func (s *Sim) WriteSDO(int, uint16, uint8, []byte) int { return 1 }

func (s *Sim) SetDCSync0(int, bool, int64, int64) {}

func (s *Sim) ReadState() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.degraded {
		return 0
	}
	return s.expectedWKC
}

func (s *Sim) WriteState(slave int, target SlaveState) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if slave == 0 {
		for id := range s.states {
			s.states[id] = target
		}
		return s.expectedWKC
	}
	s.states[slave] = target
	return 1
}

func (s *Sim) ReconfigSlave(slave int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[slave] = StateSafeOp
	return 1
}

func (s *Sim) RecoverSlave(slave int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[slave] = StateOp
	s.degraded = false
	return 1
}

func (s *Sim) Statecheck(slave int) SlaveState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[slave]
}

func (s *Sim) Close() error { return nil }

// SetDegraded lets tests force the working counter below expected, driving
// the bus supervisor's recovery ladder.
func (s *Sim) SetDegraded(d bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.degraded = d
	if d {
		for id := range s.states {
			s.states[id] = StatePreOp
		}
	}
}
