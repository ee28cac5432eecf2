package cart

import (
	"github.com/nikolayk812/storefront-cart/internal/domain"
)

// Subscribe registers fn for every engine state transition. fn runs on the
// goroutine performing the operation and must not call mutating operations.
func (m *Manager) Subscribe(fn func(domain.StateChange)) (cancel func()) {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()

	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn

	return func() {
		m.stateMu.Lock()
		defer m.stateMu.Unlock()
		delete(m.subs, id)
	}
}

func (m *Manager) State() domain.EngineState {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	return m.state
}

func (m *Manager) updateState(apply func(*domain.EngineState)) {
	m.stateMu.Lock()
	old := m.state
	apply(&m.state)
	change := domain.StateChange{Old: old, New: m.state}

	subs := make([]func(domain.StateChange), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.stateMu.Unlock()

	for _, fn := range subs {
		m.safeCall("state subscriber", func() { fn(change) })
	}
}

func (m *Manager) startLoading() {
	m.updateState(func(s *domain.EngineState) {
		s.IsLoading = true
	})
}

// finishLoading clears the loading flag; on change it also stamps the time
// and bumps the version, all in one transition.
func (m *Manager) finishLoading(changed bool) {
	m.updateState(func(s *domain.EngineState) {
		s.IsLoading = false
		if changed {
			now := m.clock.Now()
			s.LastUpdated = &now
			s.Version++
		}
	})
}
