package orchestration

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/mohammad-safakhou/talentmatch/internal/stream"
	"github.com/mohammad-safakhou/talentmatch/internal/telemetry"
	"github.com/mohammad-safakhou/talentmatch/provider"
)

// ToolRunner executes named tools. Execute never fails at the Go level:
// tool errors come back as structured JSON the observer can read.
type ToolRunner interface {
	Execute(ctx context.Context, name string, params map[string]interface{}) string
	Names() []string
}

// Options tune the loop. Zero values fall back to defaults.
type Options struct {
	MaxTurns       int // outer plan/execute/observe turns before the run is cut off (default 10)
	MaxStepRetries int // observer-ordered retries of one step before it proceeds anyway (default 3)
	Logger         *log.Logger
}

func (o Options) withDefaults() Options {
	if o.MaxTurns <= 0 {
		o.MaxTurns = 10
	}
	if o.MaxStepRetries <= 0 {
		o.MaxStepRetries = 3
	}
	if o.Logger == nil {
		o.Logger = log.New(os.Stdout, "[SRC] ", log.LstdFlags)
	}
	return o
}

// Request is one user interaction with the loop: a fresh task, or a reply
// to a pending question carried alongside the serialized state.
type Request struct {
	Message string
	State   *State
}

// Loop runs the planner/executor/observer cycle for a sourcing task. Runs
// pause whenever the user must weigh in; the returned State re-enters the
// loop exactly where it left off.
type Loop struct {
	roles roles
	tools ToolRunner
	opts  Options
}

func NewLoop(gw provider.Gateway, tools ToolRunner, opts Options) *Loop {
	opts = opts.withDefaults()
	return &Loop{
		roles: roles{gw: gw, logger: opts.Logger},
		tools: tools,
		opts:  opts,
	}
}

type stepVerdict int

const (
	stepAdvance stepVerdict = iota
	stepAgain
	stepReplanned
	stepFinished
	stepPaused
)

// Run drives the loop until the observer finishes the task, a pause hands
// control to the user, or the turn budget runs out. The returned State is
// always usable: on pause it carries everything needed to resume.
func (l *Loop) Run(ctx context.Context, req Request, sink stream.Sink) (*State, error) {
	st := req.State
	if st == nil {
		st = &State{MainTask: req.Message, PendingAction: PendingNone}
	}
	defer func() { telemetry.OrchestrationTurns.Observe(float64(st.TurnCount)) }()

	if st.PendingAction == PendingAskUser {
		done, err := l.resume(ctx, st, req.Message, sink)
		if done || err != nil {
			return st, err
		}
	}

	for st.TurnCount < l.opts.MaxTurns {
		st.TurnCount++
		if err := sink.Send(statusEvent(fmt.Sprintf("Turn %d: starting", st.TurnCount))); err != nil {
			return st, err
		}

		if st.Plan == nil {
			plan, err := l.roles.plan(ctx, st.MainTask, st.TaskHistory)
			if err != nil {
				l.fail(sink, err)
				return st, err
			}
			st.Plan = plan
			st.CurrentStepIndex = 0
			if err := sink.Send(stream.Event{Type: "planner_output", Data: plan}); err != nil {
				return st, err
			}
		}

		verdict, err := l.executePlan(ctx, st, sink)
		if err != nil {
			return st, err
		}
		switch verdict {
		case stepReplanned:
			continue
		case stepFinished, stepPaused:
			return st, nil
		}

		// Every step proceeded without an explicit finish.
		err = sink.Send(stream.Event{Type: "final_result", Data: map[string]interface{}{
			"summary":      "Plan executed successfully.",
			"task_history": st.TaskHistory,
		}})
		return st, err
	}

	err := sink.Send(statusEvent("Process finished."))
	return st, err
}

// executePlan walks the remaining steps of the current plan.
func (l *Loop) executePlan(ctx context.Context, st *State, sink stream.Sink) (stepVerdict, error) {
	retries := map[int]int{}
	for st.CurrentStepIndex < len(st.Plan.Steps) {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		step := st.Plan.Steps[st.CurrentStepIndex]
		if err := sink.Send(statusEvent(fmt.Sprintf("Executing step %d: %s", step.Step, step.Task))); err != nil {
			return 0, err
		}

		result, question, paused, err := l.executeStep(ctx, st, step, sink)
		if err != nil {
			l.fail(sink, err)
			return 0, err
		}
		if paused {
			// The index moves past the paused step now; resume runs the
			// observer on it with the user's reply as the result.
			st.CurrentStepIndex++
			st.PendingAction = PendingAskUser
			err := sink.Send(stream.Event{Type: "user_feedback_request", Data: map[string]interface{}{
				"question":    question,
				"agent_state": st,
			}})
			return stepPaused, err
		}
		if err := sink.Send(stream.Event{Type: "executor_output", Data: map[string]interface{}{
			"step":   step,
			"result": result,
		}}); err != nil {
			return 0, err
		}

		d, err := l.roles.observe(ctx, st, step, result)
		if err != nil {
			l.fail(sink, err)
			return 0, err
		}
		if err := sink.Send(stream.Event{Type: "observer_output", Data: d}); err != nil {
			return 0, err
		}

		verdict := l.applyDecision(st, step, result, d, retries, false)
		switch verdict {
		case stepAdvance, stepAgain:
			continue
		case stepFinished:
			err := sink.Send(stream.Event{Type: "final_result", Data: map[string]interface{}{
				"summary":      d.Summary,
				"task_history": st.TaskHistory,
			}})
			return stepFinished, err
		case stepPaused:
			err := sink.Send(stream.Event{Type: "user_feedback_request", Data: map[string]interface{}{
				"question":    d.Summary,
				"agent_state": st,
			}})
			return stepPaused, err
		case stepReplanned:
			return stepReplanned, nil
		}
	}
	return stepAdvance, nil
}

// executeStep runs the executor once and materialises its action.
func (l *Loop) executeStep(ctx context.Context, st *State, step Step, sink stream.Sink) (result, question string, paused bool, err error) {
	act, err := l.roles.execute(ctx, st, step, l.tools.Names())
	if err != nil {
		return "", "", false, err
	}

	switch act.Action {
	case "generate_content":
		return act.Content, "", false, nil

	case "tool_call":
		switch act.Tool {
		case "ask_user":
			q, _ := act.Parameters["question"].(string)
			if q == "" {
				q = step.Task
			}
			return "", q, true, nil

		case "show_preview":
			// Rendering happens on the consumer side; the loop only needs
			// the acknowledgement so the observer sees a completed step.
			if err := sink.Send(stream.Event{Type: "show_preview", Data: act.Parameters}); err != nil {
				return "", "", false, err
			}
			return `{"status":"ok","message":"preview delivered to user"}`, "", false, nil

		default:
			if err := sink.Send(stream.Event{Type: "tool_call", Data: map[string]interface{}{
				"tool":       act.Tool,
				"parameters": act.Parameters,
			}}); err != nil {
				return "", "", false, err
			}
			return l.tools.Execute(ctx, act.Tool, act.Parameters), "", false, nil
		}

	default:
		// Unstructured output still counts as the step's result; the
		// observer decides whether it was good enough.
		if act.Content != "" {
			return act.Content, "", false, nil
		}
		return act.raw, "", false, nil
	}
}

// applyDecision mutates the state according to the observer's ruling.
// advanced tells whether CurrentStepIndex already sits past the step, which
// is the case on the resume path.
func (l *Loop) applyDecision(st *State, step Step, result string, d Decision, retries map[int]int, advanced bool) stepVerdict {
	switch d.Decision {
	case Retry:
		retries[step.Step]++
		if retries[step.Step] <= l.opts.MaxStepRetries {
			l.opts.Logger.Printf("step %d retry %d/%d", step.Step, retries[step.Step], l.opts.MaxStepRetries)
			if advanced {
				st.CurrentStepIndex--
			}
			return stepAgain
		}
		// Retry budget spent. Record the step as-is with an annotation and
		// move on rather than looping forever.
		d.Summary = fmt.Sprintf("retry budget exhausted after %d attempts; proceeding with last result", l.opts.MaxStepRetries)
		st.TaskHistory = append(st.TaskHistory, HistoryEntry{Step: step, Result: result, ObserverDecision: d})
		if !advanced {
			st.CurrentStepIndex++
		}
		return stepAdvance

	case Replan:
		st.TaskHistory = append(st.TaskHistory, HistoryEntry{Step: step, Result: result, ObserverDecision: d})
		if d.FeedbackToPlanner != "" {
			st.MainTask = fmt.Sprintf("%s\n[Observer feedback: %s]", st.MainTask, d.FeedbackToPlanner)
		}
		st.Plan = nil
		st.CurrentStepIndex = 0
		return stepReplanned

	case Finish:
		st.TaskHistory = append(st.TaskHistory, HistoryEntry{Step: step, Result: result, ObserverDecision: d})
		return stepFinished

	case Pause:
		if !advanced {
			st.CurrentStepIndex++
		}
		st.PendingAction = PendingAskUser
		return stepPaused

	default: // Proceed
		st.TaskHistory = append(st.TaskHistory, HistoryEntry{Step: step, Result: result, ObserverDecision: d})
		if !advanced {
			st.CurrentStepIndex++
		}
		return stepAdvance
	}
}

// resume re-enters a paused run: the observer judges the paused step with
// the user's reply standing in as its result. It reports whether the run is
// done (finished, paused again, or failed) before the main loop resumes.
func (l *Loop) resume(ctx context.Context, st *State, message string, sink stream.Sink) (bool, error) {
	if st.Plan == nil || st.CurrentStepIndex == 0 || st.CurrentStepIndex > len(st.Plan.Steps) {
		err := fmt.Errorf("resume state is inconsistent: no paused step to pick up")
		l.fail(sink, err)
		return true, err
	}
	st.PendingAction = PendingNone
	step := st.Plan.Steps[st.CurrentStepIndex-1]
	result := fmt.Sprintf("The user was asked for input and replied: %s", message)

	if err := sink.Send(statusEvent("Resuming with user input.")); err != nil {
		return true, err
	}
	d, err := l.roles.observe(ctx, st, step, result)
	if err != nil {
		l.fail(sink, err)
		return true, err
	}
	if err := sink.Send(stream.Event{Type: "observer_output", Data: d}); err != nil {
		return true, err
	}

	switch l.applyDecision(st, step, result, d, map[int]int{}, true) {
	case stepFinished:
		err := sink.Send(stream.Event{Type: "final_result", Data: map[string]interface{}{
			"summary":      d.Summary,
			"task_history": st.TaskHistory,
		}})
		return true, err
	case stepPaused:
		err := sink.Send(stream.Event{Type: "user_feedback_request", Data: map[string]interface{}{
			"question":    d.Summary,
			"agent_state": st,
		}})
		return true, err
	}
	return false, nil
}

func (l *Loop) fail(sink stream.Sink, err error) {
	l.opts.Logger.Printf("run failed: %v", err)
	_ = sink.Send(stream.Event{Type: "error", Data: map[string]interface{}{"error": err.Error()}})
}

func statusEvent(msg string) stream.Event {
	return stream.Event{Type: "status_update", Data: map[string]interface{}{"message": msg}}
}
