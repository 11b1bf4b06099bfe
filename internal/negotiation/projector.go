package negotiation

import (
	"encoding/json"

	"github.com/mohammad-safakhou/talentmatch/provider"
)

// Kickoff lines used when the counterpart has not said anything visible yet,
// so a participant always has a user turn to respond to.
const (
	candidateKickoff = "Hello! Thanks for your interest in the position. Feel free to ask me anything about the role, the team or the company."
	recruiterKickoff = "Hello! I represent a candidate who may be a good fit for your opening. Happy to walk you through their background."
)

// envelope is the JSON shape a participant's own messages keep in its
// history, so the model sees its full prior planning and decisions.
type envelope struct {
	Type      MessageType `json:"type"`
	Reasoning string      `json:"reasoning"`
	Payload   string      `json:"payload"`
}

// Projector derives each participant's visible slice of the ledger.
//
// Visibility rule: a participant sees every message it authored itself
// (assistant turns carrying the full type/reasoning/payload envelope) but
// only the CHATTING messages of its counterpart (user turns carrying the
// bare payload). Planning and decisions stay private to their author.
type Projector struct {
	ledger *Ledger
}

// NewProjector builds a projector over the given ledger.
func NewProjector(ledger *Ledger) *Projector {
	return &Projector{ledger: ledger}
}

// History returns the message list participant p may be shown, in ledger
// order, with a synthesized kickoff line when the counterpart has not
// chatted yet.
func (pr *Projector) History(p Source) []provider.Message {
	var out []provider.Message
	counterpartSpoke := false

	for _, m := range pr.ledger.Messages() {
		if m.Source == p {
			env, err := json.Marshal(envelope{Type: m.Type, Reasoning: m.Reasoning, Payload: m.Payload})
			if err != nil {
				continue
			}
			out = append(out, provider.Message{Role: "assistant", Content: string(env)})
			continue
		}
		if m.Type == Chatting {
			counterpartSpoke = true
			out = append(out, provider.Message{Role: "user", Content: m.Payload})
		}
	}

	if !counterpartSpoke {
		kickoff := recruiterKickoff
		if p == Candidate {
			kickoff = candidateKickoff
		}
		out = append([]provider.Message{{Role: "user", Content: kickoff}}, out...)
	}
	return out
}
