package negotiation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/mohammad-safakhou/talentmatch/internal/agentjson"
	"github.com/mohammad-safakhou/talentmatch/internal/stream"
	"github.com/mohammad-safakhou/talentmatch/internal/telemetry"
	"github.com/mohammad-safakhou/talentmatch/provider"
)

const fallbackApology = "Sorry, I ran into a technical problem on my side. Could you repeat or rephrase that?"

// Options tune the engine. Zero values fall back to defaults.
type Options struct {
	MaxRounds        int // chat rounds before the negotiation is cut off (default 10)
	MaxPlanningTurns int // consecutive planning messages before control passes anyway (default 2)
	MaxCallRetries   int // gateway attempts before the synthetic fallback (default 3)
	Logger           *log.Logger
}

func (o Options) withDefaults() Options {
	if o.MaxRounds <= 0 {
		o.MaxRounds = 10
	}
	if o.MaxPlanningTurns <= 0 {
		o.MaxPlanningTurns = 2
	}
	if o.MaxCallRetries <= 0 {
		o.MaxCallRetries = 3
	}
	if o.Logger == nil {
		o.Logger = log.New(os.Stdout, "[NEG] ", log.LstdFlags)
	}
	return o
}

type participant struct {
	source  Source
	system  string
	decided bool
	verdict Verdict
}

// Engine drives the candidate/recruiter turn-taking state machine over a
// session-scoped ledger. One engine serves exactly one session and is not
// reused after Run returns.
type Engine struct {
	gateway   provider.Gateway
	ledger    *Ledger
	projector *Projector
	opts      Options

	state  State
	rounds int
	parts  map[Source]*participant
}

// Result is the final report of one negotiation run.
type Result struct {
	Outcome          Outcome `json:"outcome"`
	CandidateVerdict Verdict `json:"candidate_verdict"`
	RecruiterVerdict Verdict `json:"recruiter_verdict"`
	Rounds           int     `json:"rounds"`
	Summary          Summary `json:"summary"`
}

// NewEngine builds an engine over a fresh ledger. The candidate sees the
// full resume and the desensitized job description; the recruiter sees the
// inverse.
func NewEngine(gw provider.Gateway, ledger *Ledger, candidate, recruiter Brief, opts Options) *Engine {
	opts = opts.withDefaults()
	return &Engine{
		gateway:   gw,
		ledger:    ledger,
		projector: NewProjector(ledger),
		opts:      opts,
		state:     AwaitingCandidate,
		parts: map[Source]*participant{
			Candidate: {source: Candidate, system: candidateSystem(candidate)},
			Recruiter: {source: Recruiter, system: recruiterSystem(recruiter)},
		},
	}
}

// State returns the engine's current machine state.
func (e *Engine) State() State { return e.state }

// Run executes the negotiation until both sides decide or the round budget
// runs out, emitting progress events along the way. A sink error means the
// consumer disconnected: the ledger is cleared and no further gateway calls
// are made.
func (e *Engine) Run(ctx context.Context, sink stream.Sink) (Result, error) {
	if err := sink.Send(stream.Event{Type: "start", Data: map[string]interface{}{
		"session_id": e.ledger.SessionID(),
		"max_rounds": e.opts.MaxRounds,
	}}); err != nil {
		return e.abort(), err
	}

	active := e.parts[Candidate]
	// The turn guard bounds pathological transcripts (endless planning with
	// no chat) that the round counter alone would never terminate.
	maxTurns := e.opts.MaxRounds * 8
	for turns := 0; e.rounds < e.opts.MaxRounds && turns < maxTurns; turns++ {
		if e.parts[Candidate].decided && e.parts[Recruiter].decided {
			break
		}
		if err := ctx.Err(); err != nil {
			return e.abort(), err
		}
		if active.decided {
			active = e.parts[active.source.Other()]
			continue
		}

		if err := sink.Send(stream.Event{Type: "progress", Data: map[string]interface{}{
			"state":  e.state,
			"round":  e.rounds,
			"active": active.source,
		}}); err != nil {
			return e.abort(), err
		}

		yielded, err := e.takeTurn(ctx, sink, active)
		if err != nil {
			return e.abort(), err
		}
		if yielded {
			active = e.parts[active.source.Other()]
		}
	}

	cand, rec := e.parts[Candidate], e.parts[Recruiter]
	if !(cand.decided && rec.decided) {
		e.state = TurnLimitReached
	}

	res := Result{
		Outcome:          ResolveOutcome(e.verdict(cand), e.verdict(rec)),
		CandidateVerdict: e.verdict(cand),
		RecruiterVerdict: e.verdict(rec),
		Rounds:           e.rounds,
		Summary:          e.ledger.Summary(),
	}

	telemetry.NegotiationRounds.Observe(float64(e.rounds))
	telemetry.NegotiationOutcomes.WithLabelValues(string(res.Outcome)).Inc()

	if err := sink.Send(stream.Event{Type: "decisions", Data: map[string]interface{}{
		"candidate": res.CandidateVerdict,
		"recruiter": res.RecruiterVerdict,
	}}); err != nil {
		return res, err
	}
	err := sink.Send(stream.Event{Type: "complete", Data: res})
	return res, err
}

// takeTurn lets one participant act. It reports whether control passes to
// the counterpart: planning keeps the turn until the planning budget is
// spent, chatting and decisions always yield.
func (e *Engine) takeTurn(ctx context.Context, sink stream.Sink, p *participant) (bool, error) {
	for planned := 0; ; {
		env, err := e.respond(ctx, p)
		if err != nil {
			return false, err
		}
		msg, err := e.ledger.Append(p.source, env.Type, env.Reasoning, env.Payload)
		if err != nil {
			return false, err
		}

		switch env.Type {
		case Planning:
			if err := sink.Send(stream.Event{Type: "planning", Data: map[string]interface{}{
				"source":     p.source,
				"message_id": msg.ID,
			}}); err != nil {
				return false, err
			}
			planned++
			if planned >= e.opts.MaxPlanningTurns {
				// A participant that only thinks cannot hold the floor
				// forever; hand over without a visible message.
				e.opts.Logger.Printf("%s spent its planning budget without chatting", p.source)
				return true, nil
			}
			continue

		case Chatting:
			// Candidate opens; a round completes when the recruiter, the
			// designated second mover, replies.
			if p.source == Recruiter {
				e.rounds++
			}
			e.state = awaiting(p.source.Other())
			return true, sink.Send(stream.Event{Type: "chatting", Data: map[string]interface{}{
				"source":  p.source,
				"payload": env.Payload,
				"round":   e.rounds,
			}})

		case Decision:
			p.decided = true
			p.verdict = VerdictFromPayload(env.Payload)
			e.state = decidedState(p.source, e.parts)
			return true, sink.Send(stream.Event{Type: "decision", Data: map[string]interface{}{
				"source":  p.source,
				"verdict": p.verdict,
			}})

		default:
			// respond() validates the type; reaching here is a bug.
			return false, fmt.Errorf("unexpected message type %q", env.Type)
		}
	}
}

// respond calls the gateway with the participant's projected history,
// retrying a bounded number of times before degrading to a synthetic
// chatting message so the protocol keeps moving.
func (e *Engine) respond(ctx context.Context, p *participant) (envelope, error) {
	history := e.projector.History(p.source)

	var lastErr error
	for attempt := 1; attempt <= e.opts.MaxCallRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return envelope{}, err
		}

		raw, err := e.gateway.Complete(ctx, p.system, history, true)
		if err != nil {
			telemetry.GatewayCalls.WithLabelValues(string(p.source), "error").Inc()
			e.opts.Logger.Printf("%s gateway attempt %d failed: %v", p.source, attempt, err)
			lastErr = err
			continue
		}
		if strings.TrimSpace(raw) == "" {
			telemetry.GatewayCalls.WithLabelValues(string(p.source), "empty").Inc()
			lastErr = errors.New("empty completion")
			continue
		}
		telemetry.GatewayCalls.WithLabelValues(string(p.source), "ok").Inc()

		var env envelope
		if _, perr := agentjson.Unmarshal(raw, &env); perr != nil {
			e.opts.Logger.Printf("%s attempt %d returned unparseable output: %v", p.source, attempt, perr)
			lastErr = perr
			continue
		}
		if !ValidType(env.Type) {
			lastErr = fmt.Errorf("invalid message type %q", env.Type)
			continue
		}
		if env.Payload == "" {
			lastErr = errors.New("missing payload field")
			continue
		}
		return env, nil
	}

	telemetry.FallbackMessages.WithLabelValues(string(p.source)).Inc()
	e.opts.Logger.Printf("%s degraded to fallback after %d attempts: %v", p.source, e.opts.MaxCallRetries, lastErr)
	return envelope{
		Type:      Chatting,
		Reasoning: fmt.Sprintf("model response unusable after %d attempts: %v", e.opts.MaxCallRetries, lastErr),
		Payload:   fallbackApology,
	}, nil
}

// abort performs best-effort cleanup after an external termination.
func (e *Engine) abort() Result {
	cand, rec := e.parts[Candidate], e.parts[Recruiter]
	res := Result{
		Outcome:          Uncertain,
		CandidateVerdict: e.verdict(cand),
		RecruiterVerdict: e.verdict(rec),
		Rounds:           e.rounds,
		Summary:          e.ledger.Summary(),
	}
	e.ledger.Clear()
	return res
}

func (e *Engine) verdict(p *participant) Verdict {
	if !p.decided {
		return Unknown
	}
	return p.verdict
}

func awaiting(s Source) State {
	if s == Candidate {
		return AwaitingCandidate
	}
	return AwaitingRecruiter
}

func decidedState(s Source, parts map[Source]*participant) State {
	if parts[Candidate].decided && parts[Recruiter].decided {
		return BothDecided
	}
	if s == Candidate {
		return CandidateDecided
	}
	return RecruiterDecided
}
