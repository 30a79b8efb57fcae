package slotindex

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/slotindex/internal/metrics"
	"github.com/arloliu/slotindex/variables"
)

// recordingMetrics counts the index and relay events tests assert on.
type recordingMetrics struct {
	*metrics.NopMetrics

	mu                   sync.Mutex
	admissions           map[ActionTaken]int
	watermarkRegressions map[string]int
	fenceRegressions     map[string]int
	invalidated          int
	waitRetries          int
	transitions          []State
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		NopMetrics:           metrics.NewNop(),
		admissions:           make(map[ActionTaken]int),
		watermarkRegressions: make(map[string]int),
		fenceRegressions:     make(map[string]int),
	}
}

func (m *recordingMetrics) RecordAdmission(action ActionTaken) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.admissions[action]++
}

func (m *recordingMetrics) RecordWatermarkRegression(channel string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.watermarkRegressions[channel]++
}

func (m *recordingMetrics) RecordFenceRegression(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fenceRegressions[kind]++
}

func (m *recordingMetrics) RecordSlotInvalidated() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invalidated++
}

func (m *recordingMetrics) RecordWaitRetry() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.waitRetries++
}

func (m *recordingMetrics) RecordStateTransition(_, to State, _ float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitions = append(m.transitions, to)
}

func (m *recordingMetrics) admissionCount(action ActionTaken) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.admissions[action]
}

func (m *recordingMetrics) waitRetryCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.waitRetries
}

// recordingHooks captures decision hook invocations.
type recordingHooks struct {
	mu           sync.Mutex
	admissions   []Admission
	regressions  [][2]TimesliceID
	fenceFaults  []string
	invalidated  []SlotIndex
	outputFences []OldestOutputInfo
	states       []State
}

func (r *recordingHooks) hooks() *Hooks {
	return &Hooks{
		OnAdmission: func(_ TimesliceID, a Admission) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.admissions = append(r.admissions, a)
		},
		OnWatermarkRegression: func(_ ChannelIndex, reported, stored TimesliceID) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.regressions = append(r.regressions, [2]TimesliceID{reported, stored})
		},
		OnFenceRegression: func(kind string, _, _ TimesliceID) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.fenceFaults = append(r.fenceFaults, kind)
		},
		OnSlotInvalidated: func(s SlotIndex, _ TimesliceID) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.invalidated = append(r.invalidated, s)
		},
		OnOutputFence: func(info OldestOutputInfo) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.outputFences = append(r.outputFences, info)
		},
		OnStateChanged: func(_ context.Context, _, to State) error {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.states = append(r.states, to)

			return nil
		},
	}
}

func (r *recordingHooks) stateHistory() []State {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]State(nil), r.states...)
}

func dataChannels(names ...string) []ChannelInfo {
	out := make([]ChannelInfo, len(names))
	for i, n := range names {
		out[i] = ChannelInfo{Name: n, Kind: ChannelKindData}
	}

	return out
}

func newTestIndex(t *testing.T, lanes, slots int, policy BackpressurePolicy, channels []ChannelInfo, opts ...Option) *Index {
	t.Helper()

	idx, err := NewIndex(IndexConfig{MaxLanes: lanes, Slots: slots, Backpressure: policy}, channels, opts...)
	require.NoError(t, err)

	return idx
}

func ctxFor(ts TimesliceID) *variables.Context {
	return variables.NewForTimeslice(ts)
}

// rosterSource is a fixed ChannelSource for relay tests.
type rosterSource struct {
	channels []ChannelInfo
	err      error
}

func (s rosterSource) ListChannels(context.Context) ([]ChannelInfo, error) {
	if s.err != nil {
		return nil, s.err
	}

	return append([]ChannelInfo(nil), s.channels...), nil
}

func newStartedRelay(t *testing.T, cfg Config, channels []ChannelInfo, opts ...Option) *Relay {
	t.Helper()

	relay, err := NewRelay(&cfg, rosterSource{channels: channels}, opts...)
	require.NoError(t, err)
	require.NoError(t, relay.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = relay.Stop(ctx)
	})

	return relay
}
