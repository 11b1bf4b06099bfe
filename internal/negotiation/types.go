package negotiation

import "time"

// Source identifies which side of the negotiation authored a message.
type Source string

const (
	Candidate Source = "candidate"
	Recruiter Source = "recruiter"
)

// Other returns the counterpart source.
func (s Source) Other() Source {
	if s == Candidate {
		return Recruiter
	}
	return Candidate
}

// MessageType is the closed set of message kinds a participant may emit.
type MessageType string

const (
	// Planning is private deliberation; it never reaches the counterpart.
	Planning MessageType = "planning"
	// Chatting is the only type projected into the counterpart's history.
	Chatting MessageType = "chatting"
	// Decision carries a terminal AGREE/REJECT payload for its author.
	Decision MessageType = "decision"
)

// ValidType reports whether t is one of the known message types.
func ValidType(t MessageType) bool {
	switch t {
	case Planning, Chatting, Decision:
		return true
	}
	return false
}

// Decision payloads recognised by the engine. Anything else maps to an
// Unknown verdict.
const (
	PayloadAgree  = "AGREE"
	PayloadReject = "REJECT"
)

// Verdict is a participant's terminal judgement.
type Verdict string

const (
	Suitable   Verdict = "SUITABLE"
	Unsuitable Verdict = "UNSUITABLE"
	Unknown    Verdict = "UNKNOWN"
)

// VerdictFromPayload maps a decision payload onto a verdict.
func VerdictFromPayload(payload string) Verdict {
	switch payload {
	case PayloadAgree:
		return Suitable
	case PayloadReject:
		return Unsuitable
	default:
		return Unknown
	}
}

// Outcome classifies a finished negotiation.
type Outcome string

const (
	Match     Outcome = "MATCH"
	NoMatch   Outcome = "NO_MATCH"
	Uncertain Outcome = "UNCERTAIN"
)

// ResolveOutcome combines both verdicts. A match needs mutual agreement; a
// single rejection is final; everything else stays uncertain.
func ResolveOutcome(candidate, recruiter Verdict) Outcome {
	if candidate == Suitable && recruiter == Suitable {
		return Match
	}
	if candidate == Unsuitable || recruiter == Unsuitable {
		return NoMatch
	}
	return Uncertain
}

// Message is one immutable ledger entry.
type Message struct {
	ID        int         `json:"id"`
	Source    Source      `json:"source"`
	Type      MessageType `json:"type"`
	Reasoning string      `json:"reasoning"`
	Payload   string      `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
	SessionID string      `json:"session_id"`
}

// State is the engine's position in the turn-taking machine.
type State string

const (
	AwaitingCandidate State = "AWAITING_CANDIDATE"
	AwaitingRecruiter State = "AWAITING_RECRUITER"
	CandidateDecided  State = "CANDIDATE_DECIDED"
	RecruiterDecided  State = "RECRUITER_DECIDED"
	BothDecided       State = "BOTH_DECIDED"
	TurnLimitReached  State = "TURN_LIMIT_REACHED"
)
