package hooks

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cognaterra/better-drinking-bird/internal/config"
	"github.com/cognaterra/better-drinking-bird/internal/sentinel"
	"github.com/cognaterra/better-drinking-bird/internal/telemetry"
)

type recorderStub struct {
	telemetry.NoOpRecorder
	decisions []string
}

func (r *recorderStub) RecordDecision(_ context.Context, event, decision string) {
	r.decisions = append(r.decisions, event+":"+decision)
}

func activeState(mode sentinel.Mode) *MockStateReader {
	state := &MockStateReader{}
	state.On("IsPaused", mock.Anything).Return(false, "").Maybe()
	state.On("Mode", mock.Anything).Return(mode, "").Maybe()
	return state
}

func TestSupervisor_Dispatch(t *testing.T) {
	tests := []struct {
		name     string
		event    *Event
		state    func() *MockStateReader
		pipeline func() *MockPipeline
		want     Decision
	}{
		{
			name:  "paused allows without running the pipeline",
			event: &Event{HookEventName: EventPreToolUse, Cwd: "/repo"},
			state: func() *MockStateReader {
				state := &MockStateReader{}
				state.On("IsPaused", "/repo").Return(true, "/repo/.bdb-paused")
				return state
			},
			pipeline: func() *MockPipeline { return &MockPipeline{} },
			want:     Allow("BDB is paused"),
		},
		{
			name:     "interactive mode allows stop",
			event:    &Event{HookEventName: EventStop, Cwd: "/repo"},
			state:    func() *MockStateReader { return activeState(sentinel.ModeInteractive) },
			pipeline: func() *MockPipeline { return &MockPipeline{} },
			want:     Allow("Interactive mode"),
		},
		{
			name:  "interactive mode still runs safety checks",
			event: &Event{HookEventName: EventPreToolUse, Cwd: "/repo"},
			state: func() *MockStateReader { return activeState(sentinel.ModeInteractive) },
			pipeline: func() *MockPipeline {
				p := &MockPipeline{}
				p.On("Handle", mock.Anything, mock.Anything).Return(Block("no", "no"), nil).Once()
				return p
			},
			want: Block("no", "no"),
		},
		{
			name:     "unknown event",
			event:    &Event{HookEventName: "SessionStart", Cwd: "/repo"},
			state:    func() *MockStateReader { return activeState(sentinel.ModeDefault) },
			pipeline: func() *MockPipeline { return &MockPipeline{} },
			want:     Allow("No handler for SessionStart"),
		},
		{
			name:  "pipeline error allows",
			event: &Event{HookEventName: EventPreToolUse, Cwd: "/repo"},
			state: func() *MockStateReader { return activeState(sentinel.ModeDefault) },
			pipeline: func() *MockPipeline {
				p := &MockPipeline{}
				p.On("Handle", mock.Anything, mock.Anything).Return(Decision{}, errors.New("disk on fire")).Once()
				return p
			},
			want: Allow("Internal error: disk on fire"),
		},
		{
			name:  "pipeline panic allows",
			event: &Event{HookEventName: EventPreToolUse, Cwd: "/repo"},
			state: func() *MockStateReader { return activeState(sentinel.ModeDefault) },
			pipeline: func() *MockPipeline {
				p := &MockPipeline{}
				p.On("Handle", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
					panic("nil map")
				}).Return(Decision{}, nil).Once()
				return p
			},
			want: Allow("Internal error: nil map"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := tt.state()
			pipeline := tt.pipeline()
			recorder := &recorderStub{}

			s := NewSupervisor(state, recorder, testLogger())
			s.Register(EventPreToolUse, pipeline)
			s.Register(EventStop, pipeline)

			got := s.Dispatch(context.Background(), tt.event)

			assert.Equal(t, tt.want, got)
			assert.Equal(t, []string{tt.event.HookEventName + ":" + string(tt.want.Kind)}, recorder.decisions)
			pipeline.AssertExpectations(t)
		})
	}
}

func TestSupervisor_NilEvent(t *testing.T) {
	s := NewSupervisor(nil, nil, testLogger())
	assert.Equal(t, Allow("No event"), s.Dispatch(context.Background(), nil))
}

func TestNewSupervisorFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Hooks.ToolFailure.Enabled = false

	s := NewSupervisorFromConfig(cfg, Dependencies{
		State:    activeState(sentinel.ModeDefault),
		Killer:   &MockProcessKiller{},
		Branches: &MockBranchResolver{},
		Logger:   testLogger(),
	})

	assert.Contains(t, s.pipelines, EventStop)
	assert.Contains(t, s.pipelines, EventPreToolUse)
	assert.Contains(t, s.pipelines, EventPreCompact)
	assert.NotContains(t, s.pipelines, EventPostToolUseFailure)

	got := s.Dispatch(context.Background(), &Event{HookEventName: EventPostToolUseFailure})
	assert.Equal(t, Allow("No handler for PostToolUseFailure"), got)
}

func TestSupervisor_EndToEnd(t *testing.T) {
	s := NewSupervisorFromConfig(config.Default(), Dependencies{
		State:    activeState(sentinel.ModeDefault),
		Killer:   &MockProcessKiller{},
		Branches: &MockBranchResolver{},
		Logger:   testLogger(),
	})

	got := s.Dispatch(context.Background(), bashEvent(t, "git reset --hard HEAD~1", "/repo"))
	require.Equal(t, KindBlock, got.Kind)
	assert.Contains(t, got.Message, "destroys work")

	got = s.Dispatch(context.Background(), bashEvent(t, "git status", "/repo"))
	assert.Equal(t, KindAllow, got.Kind)
}
