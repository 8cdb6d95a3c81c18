package scheduler

import "sync"

// CostMeter accumulates the USD spent on oracle calls since process start.
type CostMeter struct {
	mu        sync.Mutex
	oracle    float64
	synthesis float64
}

// AddOracle records decomposition oracle spend.
func (m *CostMeter) AddOracle(cost float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.oracle += cost
}

// AddSynthesis records synthesis oracle spend.
func (m *CostMeter) AddSynthesis(cost float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.synthesis += cost
}

// Totals returns the accumulated decomposition and synthesis spend.
func (m *CostMeter) Totals() (oracle, synthesis float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.oracle, m.synthesis
}

// Reset zeroes both totals.
func (m *CostMeter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.oracle = 0
	m.synthesis = 0
}
