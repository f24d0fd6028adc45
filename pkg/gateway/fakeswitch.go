package gateway

// FakeSwitchSource is an in-memory LimitSwitchSource test double: tests
// push SwitchEvents directly onto it to simulate a microcontroller
// reporting a limit-switch edge mid-motion.
type FakeSwitchSource struct {
	ch chan SwitchEvent
}

// NewFakeSwitchSource returns a FakeSwitchSource with reasonable buffering
// so a test can push an event without a concurrent reader already blocked
// on Events().
func NewFakeSwitchSource() *FakeSwitchSource {
	return &FakeSwitchSource{ch: make(chan SwitchEvent, 8)}
}

func (s *FakeSwitchSource) Events() <-chan SwitchEvent { return s.ch }

// Push delivers ev to any Controller subscribed to this source.
func (s *FakeSwitchSource) Push(ev SwitchEvent) { s.ch <- ev }
