package store

import "testing"

func TestPebbleMetricsOnClosedStoreIsZero(t *testing.T) {
	var s Store
	m := s.PebbleMetrics()
	if m.WALBytes != 0 || m.L0Files != 0 {
		t.Errorf("PebbleMetrics() on an unopened store = %+v, want the zero value", m)
	}
}

func TestPebbleMetricsReflectsOpenStore(t *testing.T) {
	s := openTestStore(t)
	m := s.PebbleMetrics()
	if m.WALBytes == 0 {
		t.Error("expected a nonzero WALBytes proxy once the store has a live directory")
	}
}
