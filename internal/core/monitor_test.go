package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeProber struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (f *fakeProber) Probe(context.Context, Endpoint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.err
}

func (f *fakeProber) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeProber) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestMonitor_Check(t *testing.T) {
	prober := &fakeProber{}
	m := NewMonitor(prober, testSnapshots(), 0, nil)

	assert.Equal(t, "unknown", m.Status().Status)

	st := m.Check(context.Background())
	assert.True(t, st.IsOnline)
	assert.Equal(t, "online", st.Status)
	assert.Equal(t, "printer.local:9100", st.Address)
	assert.NotNil(t, st.LastChecked)

	prober.setErr(ErrTransportConnectionRefused)
	st = m.Check(context.Background())
	assert.False(t, st.IsOnline)
	assert.Equal(t, "offline", st.Status)
	assert.Equal(t, ErrTransportConnectionRefused.Error(), st.Error)
	assert.Equal(t, st, m.Status())
}

func TestMonitor_Loop(t *testing.T) {
	prober := &fakeProber{}
	m := NewMonitor(prober, testSnapshots(), 10*time.Millisecond, nil)
	m.Start()

	assert.Eventually(t, func() bool { return prober.count() >= 2 }, time.Second, 5*time.Millisecond)
	m.Stop()
	assert.True(t, m.Status().IsOnline)
}
