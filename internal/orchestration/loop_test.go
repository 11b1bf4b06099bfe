package orchestration

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"testing"

	"github.com/mohammad-safakhou/talentmatch/internal/stream"
	"github.com/mohammad-safakhou/talentmatch/provider"
)

type scriptedGateway struct {
	responses []string
	calls     int
}

func (g *scriptedGateway) Complete(ctx context.Context, system string, messages []provider.Message, wantJSON bool) (string, error) {
	if g.calls >= len(g.responses) {
		return "", errors.New("script exhausted")
	}
	r := g.responses[g.calls]
	g.calls++
	return r, nil
}

type fakeTools struct {
	calls []string
}

func (f *fakeTools) Execute(ctx context.Context, name string, params map[string]interface{}) string {
	f.calls = append(f.calls, name)
	return fmt.Sprintf(`{"tool":%q,"status":"ok"}`, name)
}

func (f *fakeTools) Names() []string { return []string{"search_resumes", "lookup_resume"} }

func planOf(tasks ...string) string {
	steps := make([]Step, len(tasks))
	for i, t := range tasks {
		steps[i] = Step{Step: i + 1, Task: t}
	}
	b, _ := json.Marshal(Plan{Steps: steps})
	return string(b)
}

func genContent(s string) string {
	return fmt.Sprintf(`{"action":"generate_content","content":%q}`, s)
}

func toolCall(name, paramsJSON string) string {
	return fmt.Sprintf(`{"action":"tool_call","tool_name":%q,"parameters":%s}`, name, paramsJSON)
}

func observed(d DecisionKind, extras string) string {
	if extras == "" {
		return fmt.Sprintf(`{"decision":%q}`, d)
	}
	return fmt.Sprintf(`{"decision":%q,%s}`, d, extras)
}

func quietOpts() Options {
	return Options{Logger: log.New(io.Discard, "", 0)}
}

func collect(t *testing.T, l *Loop, req Request) (*State, []stream.Event) {
	t.Helper()
	var events []stream.Event
	st, err := l.Run(context.Background(), req, stream.SinkFunc(func(e stream.Event) error {
		events = append(events, e)
		return nil
	}))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return st, events
}

func eventsOfType(events []stream.Event, typ string) []stream.Event {
	var out []stream.Event
	for _, e := range events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

func TestRunToFinish(t *testing.T) {
	gw := &scriptedGateway{responses: []string{
		planOf("draft outreach message", "show it to the user"),
		genContent("Hi Sam, we have a role for you."),
		observed(Proceed, ""),
		toolCall("show_preview", `{"content":"Hi Sam"}`),
		observed(Finish, `"summary":"Outreach drafted and previewed."`),
	}}
	l := NewLoop(gw, &fakeTools{}, quietOpts())

	st, events := collect(t, l, Request{Message: "draft outreach for Sam"})

	finals := eventsOfType(events, "final_result")
	if len(finals) != 1 {
		t.Fatalf("expected one final_result, got %d", len(finals))
	}
	data := finals[0].Data.(map[string]interface{})
	if data["summary"] != "Outreach drafted and previewed." {
		t.Fatalf("unexpected summary: %v", data["summary"])
	}
	if len(st.TaskHistory) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(st.TaskHistory))
	}
	if st.PendingAction != PendingNone {
		t.Fatalf("finished run must not stay pending: %s", st.PendingAction)
	}
	if len(eventsOfType(events, "show_preview")) != 1 {
		t.Fatal("show_preview event missing")
	}
}

func TestToolCallFlowsThroughRunner(t *testing.T) {
	gw := &scriptedGateway{responses: []string{
		planOf("find matching resumes"),
		toolCall("search_resumes", `{"query":"golang"}`),
		observed(Finish, `"summary":"done"`),
	}}
	tools := &fakeTools{}
	l := NewLoop(gw, tools, quietOpts())

	st, events := collect(t, l, Request{Message: "find golang candidates"})

	if len(tools.calls) != 1 || tools.calls[0] != "search_resumes" {
		t.Fatalf("unexpected tool calls: %v", tools.calls)
	}
	if len(eventsOfType(events, "tool_call")) != 1 {
		t.Fatal("tool_call event missing")
	}
	if !strings.Contains(st.TaskHistory[0].Result, "search_resumes") {
		t.Fatalf("tool output missing from history: %q", st.TaskHistory[0].Result)
	}
}

func TestPauseSerializesStateAndResumes(t *testing.T) {
	gw := &scriptedGateway{responses: []string{
		planOf("ask the user for the target location", "search resumes there"),
		toolCall("ask_user", `{"question":"Which location should I target?"}`),
	}}
	l := NewLoop(gw, &fakeTools{}, quietOpts())

	st, events := collect(t, l, Request{Message: "source candidates"})

	reqs := eventsOfType(events, "user_feedback_request")
	if len(reqs) != 1 {
		t.Fatalf("expected one user_feedback_request, got %d", len(reqs))
	}
	data := reqs[0].Data.(map[string]interface{})
	if data["question"] != "Which location should I target?" {
		t.Fatalf("unexpected question: %v", data["question"])
	}
	if st.PendingAction != PendingAskUser {
		t.Fatalf("expected pending ask_user, got %s", st.PendingAction)
	}
	if st.CurrentStepIndex != 1 {
		t.Fatalf("index should sit past the paused step, got %d", st.CurrentStepIndex)
	}

	// The state round-trips through JSON without drift.
	first, err := json.Marshal(st)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var restored State
	if err := json.Unmarshal(first, &restored); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	second, err := json.Marshal(&restored)
	if err != nil {
		t.Fatalf("remarshal: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("state drifted through serialization:\n%s\n%s", first, second)
	}

	// Resume with the user's answer; the observer judges the paused step
	// first, then the plan continues.
	gw2 := &scriptedGateway{responses: []string{
		observed(Proceed, ""),
		toolCall("search_resumes", `{"query":"golang berlin"}`),
		observed(Finish, `"summary":"Found candidates in Berlin."`),
	}}
	l2 := NewLoop(gw2, &fakeTools{}, quietOpts())

	st2, events2 := collect(t, l2, Request{Message: "Berlin", State: &restored})

	if len(eventsOfType(events2, "final_result")) != 1 {
		t.Fatal("resumed run did not finish")
	}
	if st2.PendingAction != PendingNone {
		t.Fatalf("resumed run must clear pending action, got %s", st2.PendingAction)
	}
	if len(st2.TaskHistory) != 2 {
		t.Fatalf("expected 2 history entries after resume, got %d", len(st2.TaskHistory))
	}
	if !strings.Contains(st2.TaskHistory[0].Result, "Berlin") {
		t.Fatalf("user reply missing from paused step result: %q", st2.TaskHistory[0].Result)
	}
}

func TestReplanFoldsFeedbackAndKeepsHistory(t *testing.T) {
	gw := &scriptedGateway{responses: []string{
		planOf("search for any resume"),
		genContent("found nothing useful"),
		observed(Replan, `"feedback_to_planner":"narrow the search to Go engineers"`),
		planOf("search for Go engineers"),
		genContent("three strong profiles"),
		observed(Finish, `"summary":"done"`),
	}}
	l := NewLoop(gw, &fakeTools{}, quietOpts())

	st, events := collect(t, l, Request{Message: "find someone"})

	if len(eventsOfType(events, "planner_output")) != 2 {
		t.Fatal("expected two planning passes")
	}
	if !strings.Contains(st.MainTask, "narrow the search to Go engineers") {
		t.Fatalf("feedback not folded into the task: %q", st.MainTask)
	}
	// History survives the replan: the discarded step stays recorded.
	if len(st.TaskHistory) != 2 {
		t.Fatalf("expected 2 history entries across replans, got %d", len(st.TaskHistory))
	}
	if st.TaskHistory[0].ObserverDecision.Decision != Replan {
		t.Fatalf("first entry should record the replan: %+v", st.TaskHistory[0])
	}
}

func TestRetryBudgetExhaustionProceeds(t *testing.T) {
	opts := quietOpts()
	opts.MaxStepRetries = 2
	gw := &scriptedGateway{responses: []string{
		planOf("flaky step"),
		genContent("attempt 1"),
		observed(Retry, ""),
		genContent("attempt 2"),
		observed(Retry, ""),
		genContent("attempt 3"),
		observed(Retry, ""),
	}}
	l := NewLoop(gw, &fakeTools{}, opts)

	st, events := collect(t, l, Request{Message: "do the flaky thing"})

	if len(eventsOfType(events, "final_result")) != 1 {
		t.Fatal("run should complete once the retry budget is spent")
	}
	if len(st.TaskHistory) != 1 {
		t.Fatalf("expected 1 history entry, got %d", len(st.TaskHistory))
	}
	entry := st.TaskHistory[0]
	if entry.Result != "attempt 3" {
		t.Fatalf("expected last attempt recorded, got %q", entry.Result)
	}
	if !strings.Contains(entry.ObserverDecision.Summary, "retry budget exhausted") {
		t.Fatalf("missing exhaustion annotation: %+v", entry.ObserverDecision)
	}
	if gw.calls != len(gw.responses) {
		t.Fatalf("unexpected extra gateway calls: %d", gw.calls)
	}
}

func TestTurnBudgetCutsOff(t *testing.T) {
	opts := quietOpts()
	opts.MaxTurns = 2
	gw := &scriptedGateway{responses: []string{
		planOf("step one"),
		genContent("r1"),
		observed(Replan, `"feedback_to_planner":"try again"`),
		planOf("step one again"),
		genContent("r2"),
		observed(Replan, `"feedback_to_planner":"still wrong"`),
	}}
	l := NewLoop(gw, &fakeTools{}, opts)

	st, events := collect(t, l, Request{Message: "never converges"})

	if len(eventsOfType(events, "final_result")) != 0 {
		t.Fatal("cut-off run must not claim a final result")
	}
	last := events[len(events)-1]
	if last.Type != "status_update" {
		t.Fatalf("expected closing status update, got %s", last.Type)
	}
	if msg := last.Data.(map[string]interface{})["message"]; msg != "Process finished." {
		t.Fatalf("unexpected closing message: %v", msg)
	}
	if st.TurnCount != 2 {
		t.Fatalf("expected 2 turns consumed, got %d", st.TurnCount)
	}
}

func TestUnstructuredExecutorOutputReachesObserver(t *testing.T) {
	gw := &scriptedGateway{responses: []string{
		planOf("summarise the role"),
		"The role is a senior Go position in Berlin.",
		observed(Finish, `"summary":"done"`),
	}}
	l := NewLoop(gw, &fakeTools{}, quietOpts())

	st, _ := collect(t, l, Request{Message: "summarise"})

	if !strings.Contains(st.TaskHistory[0].Result, "senior Go position") {
		t.Fatalf("raw executor text lost: %q", st.TaskHistory[0].Result)
	}
}
