package orchestration

// Step is one planner-produced unit of work.
type Step struct {
	Step int    `json:"step"`
	Task string `json:"task"`
}

// Plan is the ordered decomposition of the main task. It is produced
// atomically and never edited; a replan discards it entirely.
type Plan struct {
	Steps []Step `json:"plan"`
}

// DecisionKind is the closed set of observer verdicts.
type DecisionKind string

const (
	Proceed DecisionKind = "proceed"
	Retry   DecisionKind = "retry"
	Replan  DecisionKind = "replan"
	Finish  DecisionKind = "finish"
	Pause   DecisionKind = "pause"
)

// ValidDecision reports whether k is a known observer verdict.
func ValidDecision(k DecisionKind) bool {
	switch k {
	case Proceed, Retry, Replan, Finish, Pause:
		return true
	}
	return false
}

// Decision is the observer's control output for one executed step.
type Decision struct {
	Decision          DecisionKind `json:"decision"`
	FeedbackToPlanner string       `json:"feedback_to_planner,omitempty"`
	Summary           string       `json:"summary,omitempty"`
}

// HistoryEntry records one executed step together with the observer's
// ruling. Task history is append-only and survives replans.
type HistoryEntry struct {
	Step             Step     `json:"step"`
	Result           string   `json:"result"`
	ObserverDecision Decision `json:"observer_decision"`
}

// PendingAction marks why a run relinquished control.
type PendingAction string

const (
	PendingNone    PendingAction = "none"
	PendingAskUser PendingAction = "ask_user"
)

// State is the loop's complete resumable condition. It round-trips through
// JSON byte-for-byte at the pause boundary; callers treat it as opaque.
type State struct {
	Plan             *Plan          `json:"plan"`
	CurrentStepIndex int            `json:"current_step_index"`
	TaskHistory      []HistoryEntry `json:"task_history"`
	MainTask         string         `json:"main_task"`
	TurnCount        int            `json:"turn_count"`
	PendingAction    PendingAction  `json:"pending_action"`
}
