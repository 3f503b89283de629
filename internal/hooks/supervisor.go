package hooks

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/sirupsen/logrus"

	"github.com/cognaterra/better-drinking-bird/internal/config"
	"github.com/cognaterra/better-drinking-bird/internal/llm"
	"github.com/cognaterra/better-drinking-bird/internal/safety"
	"github.com/cognaterra/better-drinking-bird/internal/sentinel"
	"github.com/cognaterra/better-drinking-bird/internal/telemetry"
)

// StateReader reports the pause flag and supervision mode for a directory.
type StateReader interface {
	IsPaused(cwd string) (bool, string)
	Mode(cwd string) (sentinel.Mode, string)
}

// Supervisor routes events to their pipelines. It never returns an error:
// pipeline failures and panics become Allow.
type Supervisor struct {
	pipelines map[string]Pipeline
	state     StateReader
	recorder  telemetry.Recorder
	logger    logrus.FieldLogger
}

// NewSupervisor creates a Supervisor with no pipelines registered.
func NewSupervisor(state StateReader, recorder telemetry.Recorder, logger logrus.FieldLogger) *Supervisor {
	if recorder == nil {
		recorder = telemetry.NewNoOpRecorder()
	}
	return &Supervisor{
		pipelines: make(map[string]Pipeline),
		state:     state,
		recorder:  recorder,
		logger:    logger,
	}
}

// Register routes eventName to pipeline.
func (s *Supervisor) Register(eventName string, pipeline Pipeline) {
	s.pipelines[eventName] = pipeline
}

// Dependencies are the collaborators built once per process.
type Dependencies struct {
	// Client is the model client; nil means no model is configured.
	Client   llm.Client
	State    StateReader
	Recorder telemetry.Recorder
	Killer   ProcessKiller
	Branches safety.BranchResolver
	Logger   logrus.FieldLogger
}

// NewSupervisorFromConfig registers a pipeline for every enabled hook.
func NewSupervisorFromConfig(cfg config.Config, deps Dependencies) *Supervisor {
	s := NewSupervisor(deps.State, deps.Recorder, deps.Logger)
	hooks := cfg.Hooks

	if hooks.Stop.Enabled {
		client := telemetry.InstrumentClient(deps.Client, s.recorder, "stop")
		s.Register(EventStop, NewStopPipeline(hooks.Stop, client, deps.Killer, deps.Logger.WithField("hook", EventStop)))
	}
	if hooks.PreTool.Enabled {
		client := telemetry.InstrumentClient(deps.Client, s.recorder, "pre_tool")
		s.Register(EventPreToolUse, NewPreToolPipeline(hooks.PreTool, cfg.Blocklist, client, deps.Branches, deps.Logger.WithField("hook", EventPreToolUse)))
	}
	if hooks.ToolFailure.Enabled {
		client := telemetry.InstrumentClient(deps.Client, s.recorder, "tool_failure")
		s.Register(EventPostToolUseFailure, NewToolFailurePipeline(hooks.ToolFailure, client, deps.Logger.WithField("hook", EventPostToolUseFailure)))
	}
	if hooks.PreCompact.Enabled {
		s.Register(EventPreCompact, NewPreCompactPipeline(hooks.PreCompact, deps.Logger.WithField("hook", EventPreCompact)))
	}
	return s
}

// Dispatch decides event.
func (s *Supervisor) Dispatch(ctx context.Context, event *Event) Decision {
	if event == nil {
		return Allow("No event")
	}

	logger := s.logger.WithFields(logrus.Fields{
		"event":      event.HookEventName,
		"tool":       event.ToolName,
		"session_id": event.SessionID,
		"cwd":        event.Cwd,
	})

	decision := s.dispatch(ctx, event, logger)
	s.recorder.RecordDecision(ctx, event.HookEventName, string(decision.Kind))
	logger.WithField("decision", decision.Kind).Infof("decided: %s", decision.Reason)
	return decision
}

func (s *Supervisor) dispatch(ctx context.Context, event *Event, logger logrus.FieldLogger) Decision {
	if s.state != nil {
		if paused, path := s.state.IsPaused(event.Cwd); paused {
			logger.WithField("sentinel", path).Debug("supervision paused")
			return Allow("BDB is paused")
		}
		if mode, _ := s.state.Mode(event.Cwd); mode == sentinel.ModeInteractive && event.HookEventName == EventStop {
			return Allow("Interactive mode")
		}
	}

	pipeline, ok := s.pipelines[event.HookEventName]
	if !ok {
		return Allow("No handler for " + event.HookEventName)
	}
	return s.run(ctx, pipeline, event, logger)
}

func (s *Supervisor) run(ctx context.Context, pipeline Pipeline, event *Event, logger logrus.FieldLogger) (decision Decision) {
	defer func() {
		if r := recover(); r != nil {
			logger.WithFields(logrus.Fields{
				"panic": fmt.Sprint(r),
				"stack": string(debug.Stack()),
				"input": event.SerializedInput(),
			}).Error("pipeline panicked, allowing")
			decision = Allow(fmt.Sprintf("Internal error: %v", r))
		}
	}()

	var err error
	decision, err = pipeline.Handle(ctx, event)
	if err != nil {
		logger.WithError(err).WithField("input", event.SerializedInput()).Error("pipeline failed, allowing")
		return Allow("Internal error: " + err.Error())
	}
	return decision
}
