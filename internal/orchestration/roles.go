package orchestration

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/mohammad-safakhou/talentmatch/internal/agentjson"
	"github.com/mohammad-safakhou/talentmatch/internal/telemetry"
	"github.com/mohammad-safakhou/talentmatch/provider"
)

const plannerPrompt = `You are the planning component of a talent sourcing assistant.
Break the user's task into a short ordered list of concrete steps. Each step
must be achievable by a single model call or a single tool invocation.

Respond with JSON only, in this exact shape:
{"plan": [{"step": 1, "task": "..."}, {"step": 2, "task": "..."}]}`

const executorPrompt = `You are the execution component of a talent sourcing assistant.
You are given the overall task, the plan, what has already happened, and the
one step you must perform now. Perform only that step.

Available tools: %s

Respond with JSON only, in one of these shapes:
{"action": "generate_content", "content": "..."}
{"action": "tool_call", "tool_name": "...", "parameters": {...}}`

const observerPrompt = `You are the quality control component of a talent sourcing assistant.
Given the plan, the step just executed, and its result, decide what happens next.

Respond with JSON only:
{"decision": "proceed"} when the result is acceptable and the plan continues
{"decision": "retry"} when the same step should run again
{"decision": "replan", "feedback_to_planner": "..."} when the plan itself is wrong
{"decision": "finish", "summary": "..."} when the overall task is complete
{"decision": "pause", "summary": "..."} when the user must weigh in before continuing`

// execAction is the executor's parsed output. An unrecognised action keeps
// the raw completion so the observer can still judge it.
type execAction struct {
	Action     string                 `json:"action"`
	Content    string                 `json:"content"`
	Tool       string                 `json:"tool_name"`
	Parameters map[string]interface{} `json:"parameters"`
	raw        string
}

const roleCallRetries = 3

// roles wraps the gateway with the three fixed personas of the loop.
type roles struct {
	gw     provider.Gateway
	logger *log.Logger
}

// callJSON retries transient gateway failures, then parses the completion
// into v. Exhausting the retries is fatal for the run.
func (r roles) callJSON(ctx context.Context, role, system string, user string, v interface{}) error {
	msgs := []provider.Message{{Role: "user", Content: user}}

	var lastErr error
	for attempt := 1; attempt <= roleCallRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		raw, err := r.gw.Complete(ctx, system, msgs, true)
		if err != nil {
			telemetry.GatewayCalls.WithLabelValues(role, "error").Inc()
			r.logger.Printf("%s attempt %d failed: %v", role, attempt, err)
			lastErr = err
			continue
		}
		telemetry.GatewayCalls.WithLabelValues(role, "ok").Inc()
		if _, perr := agentjson.Unmarshal(raw, v); perr != nil {
			r.logger.Printf("%s attempt %d returned unparseable output: %v", role, attempt, perr)
			lastErr = perr
			continue
		}
		return nil
	}
	return fmt.Errorf("%s unusable after %d attempts: %w", role, roleCallRetries, lastErr)
}

func (r roles) plan(ctx context.Context, mainTask string, history []HistoryEntry) (*Plan, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Task: %s\n", mainTask)
	if len(history) > 0 {
		b.WriteString("\nWork already done:\n")
		b.WriteString(renderHistory(history))
	}

	var p Plan
	if err := r.callJSON(ctx, "planner", plannerPrompt, b.String(), &p); err != nil {
		return nil, err
	}
	if len(p.Steps) == 0 {
		return nil, fmt.Errorf("planner produced an empty plan")
	}
	return &p, nil
}

func (r roles) execute(ctx context.Context, st *State, step Step, toolNames []string) (execAction, error) {
	planJSON, _ := json.Marshal(st.Plan)

	var b strings.Builder
	fmt.Fprintf(&b, "Overall task: %s\n", st.MainTask)
	fmt.Fprintf(&b, "Plan: %s\n", planJSON)
	if len(st.TaskHistory) > 0 {
		b.WriteString("History:\n")
		b.WriteString(renderHistory(st.TaskHistory))
	}
	fmt.Fprintf(&b, "\nCurrent step %d: %s\n", step.Step, step.Task)

	system := fmt.Sprintf(executorPrompt, strings.Join(toolNames, ", "))

	var act execAction
	// The executor is allowed to answer in prose; a parse failure becomes an
	// unknown action whose raw text flows through to the observer.
	msgs := []provider.Message{{Role: "user", Content: b.String()}}
	raw, err := r.gw.Complete(ctx, system, msgs, true)
	if err != nil {
		telemetry.GatewayCalls.WithLabelValues("executor", "error").Inc()
		return execAction{}, fmt.Errorf("executor call: %w", err)
	}
	telemetry.GatewayCalls.WithLabelValues("executor", "ok").Inc()
	if _, perr := agentjson.Unmarshal(raw, &act); perr != nil {
		r.logger.Printf("executor output not structured, passing raw text through: %v", perr)
		return execAction{raw: raw}, nil
	}
	act.raw = raw
	return act, nil
}

func (r roles) observe(ctx context.Context, st *State, step Step, result string) (Decision, error) {
	planJSON, _ := json.Marshal(st.Plan)

	var b strings.Builder
	fmt.Fprintf(&b, "Overall task: %s\n", st.MainTask)
	fmt.Fprintf(&b, "Plan: %s\n", planJSON)
	fmt.Fprintf(&b, "Step just executed (%d): %s\n", step.Step, step.Task)
	fmt.Fprintf(&b, "Result:\n%s\n", result)

	var d Decision
	if err := r.callJSON(ctx, "observer", observerPrompt, b.String(), &d); err != nil {
		return Decision{}, err
	}
	if !ValidDecision(d.Decision) {
		return Decision{}, fmt.Errorf("observer returned unknown decision %q", d.Decision)
	}
	return d, nil
}

func renderHistory(history []HistoryEntry) string {
	var b strings.Builder
	for _, h := range history {
		fmt.Fprintf(&b, "- step %d (%s): %s [%s]\n", h.Step.Step, h.Step.Task, truncate(h.Result, 400), h.ObserverDecision.Decision)
	}
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
