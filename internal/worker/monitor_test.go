package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/support-rag/internal/core/domain"
	"github.com/custodia-labs/support-rag/internal/core/ports/driven/mocks"
	"github.com/custodia-labs/support-rag/internal/runtime"
)

func TestNewMonitor_Defaults(t *testing.T) {
	m := NewMonitor(MonitorConfig{})
	assert.Equal(t, DefaultInterval, m.interval)
	assert.Equal(t, 10*time.Second, m.timeout)
	assert.NotNil(t, m.logger)
}

func TestMonitor_RunOnce(t *testing.T) {
	llm := mocks.NewMockLLMService()
	services := runtime.NewServices(domain.NewRuntimeConfig("memory", ""))
	services.SetLLMService(llm)

	storeErr := errors.New("connection refused")
	var failing atomic.Bool
	m := NewMonitor(MonitorConfig{
		Services: services,
		Probes: []Probe{
			{Name: "vector_store", Check: func(ctx context.Context) error {
				if failing.Load() {
					return storeErr
				}
				return nil
			}},
		},
	})

	status := m.RunOnce(context.Background())
	assert.Equal(t, "ok", status.Probes["vector_store"])
	assert.True(t, status.LLM)
	assert.False(t, status.Embedding)
	assert.True(t, services.Config().LLMAvailable())

	failing.Store(true)
	llm.PingErr = errors.New("401")
	status = m.RunOnce(context.Background())
	assert.Equal(t, "connection refused", status.Probes["vector_store"])
	assert.False(t, status.LLM)
	assert.False(t, services.Config().LLMAvailable())

	assert.Equal(t, status.Probes, m.Status().Probes)
}

func TestMonitor_StartStop(t *testing.T) {
	var calls atomic.Int32
	m := NewMonitor(MonitorConfig{
		Interval: 10 * time.Millisecond,
		Probes: []Probe{
			{Name: "redis", Check: func(ctx context.Context) error {
				calls.Add(1)
				return nil
			}},
		},
	})

	m.Start(context.Background())
	require.GreaterOrEqual(t, calls.Load(), int32(1), "first round runs synchronously")
	assert.True(t, m.Status().Running)

	// Starting twice is a no-op
	m.Start(context.Background())

	require.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, 5*time.Millisecond)

	m.Stop()
	assert.False(t, m.Status().Running)

	after := calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, calls.Load())

	// Stopping twice is a no-op
	m.Stop()
}

func TestMonitor_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m := NewMonitor(MonitorConfig{Interval: 5 * time.Millisecond})

	m.Start(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		m.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("monitor did not stop after context cancellation")
	}
}
