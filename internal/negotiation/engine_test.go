package negotiation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"testing"

	"github.com/mohammad-safakhou/talentmatch/internal/stream"
	"github.com/mohammad-safakhou/talentmatch/provider"
)

// scriptedGateway replays canned completions in order, cycling when the
// script is shorter than the run.
type scriptedGateway struct {
	responses []string
	cycle     bool
	calls     int
}

func (g *scriptedGateway) Complete(ctx context.Context, system string, messages []provider.Message, wantJSON bool) (string, error) {
	if g.calls >= len(g.responses) {
		if !g.cycle {
			return "", errors.New("script exhausted")
		}
		g.calls = g.calls % len(g.responses)
	}
	r := g.responses[g.calls]
	g.calls++
	return r, nil
}

func chatting(text string) string {
	return fmt.Sprintf(`{"type":"chatting","reasoning":"r","payload":"%s"}`, text)
}

func decision(payload string) string {
	return fmt.Sprintf(`{"type":"decision","reasoning":"r","payload":"%s"}`, payload)
}

func quietOpts() Options {
	return Options{Logger: log.New(io.Discard, "", 0)}
}

func runEngine(t *testing.T, gw provider.Gateway, opts Options) (Result, []stream.Event) {
	t.Helper()
	ledger := NewLedger("test-session")
	eng := NewEngine(gw, ledger, Brief{}, Brief{}, opts)
	var events []stream.Event
	res, err := eng.Run(context.Background(), stream.SinkFunc(func(e stream.Event) error {
		events = append(events, e)
		return nil
	}))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return res, events
}

func TestBothAgreeIsMatch(t *testing.T) {
	gw := &scriptedGateway{responses: []string{decision(PayloadAgree), decision(PayloadAgree)}}
	res, _ := runEngine(t, gw, quietOpts())
	if res.Outcome != Match {
		t.Fatalf("expected MATCH, got %s", res.Outcome)
	}
	if res.CandidateVerdict != Suitable || res.RecruiterVerdict != Suitable {
		t.Fatalf("unexpected verdicts: %+v", res)
	}
}

func TestOneRejectIsNoMatch(t *testing.T) {
	gw := &scriptedGateway{responses: []string{decision(PayloadAgree), decision(PayloadReject)}}
	res, _ := runEngine(t, gw, quietOpts())
	if res.Outcome != NoMatch {
		t.Fatalf("expected NO_MATCH, got %s", res.Outcome)
	}
	if res.RecruiterVerdict != Unsuitable {
		t.Fatalf("expected recruiter UNSUITABLE, got %s", res.RecruiterVerdict)
	}
}

func TestRoundLimitYieldsUncertain(t *testing.T) {
	gw := &scriptedGateway{responses: []string{chatting("still talking")}, cycle: true}
	opts := quietOpts()
	opts.MaxRounds = 3
	res, _ := runEngine(t, gw, opts)
	if res.Outcome != Uncertain {
		t.Fatalf("expected UNCERTAIN, got %s", res.Outcome)
	}
	if res.CandidateVerdict != Unknown || res.RecruiterVerdict != Unknown {
		t.Fatalf("verdicts should stay UNKNOWN: %+v", res)
	}
	if res.Rounds != 3 {
		t.Fatalf("expected 3 rounds, got %d", res.Rounds)
	}
}

func TestRoundCountsRecruiterReplies(t *testing.T) {
	// candidate chat, recruiter chat, candidate decision, recruiter decision
	gw := &scriptedGateway{responses: []string{
		chatting("hello"),
		chatting("hello back"),
		decision(PayloadAgree),
		decision(PayloadAgree),
	}}
	res, events := runEngine(t, gw, quietOpts())
	if res.Rounds != 1 {
		t.Fatalf("expected 1 round, got %d", res.Rounds)
	}

	var chatRounds []int
	for _, e := range events {
		if e.Type == "chatting" {
			data := e.Data.(map[string]interface{})
			chatRounds = append(chatRounds, data["round"].(int))
		}
	}
	// Candidate's opener reports round 0, the recruiter's reply closes round 1.
	if len(chatRounds) != 2 || chatRounds[0] != 0 || chatRounds[1] != 1 {
		t.Fatalf("unexpected round progression: %v", chatRounds)
	}
}

func TestUnusableOutputDegradesToFallback(t *testing.T) {
	// Three junk completions exhaust the candidate's retries, then the
	// conversation proceeds normally.
	gw := &scriptedGateway{responses: []string{
		"not json at all",
		"still not json",
		"{\"broken\":",
		chatting("recruiter reply"),
		decision(PayloadAgree),
		decision(PayloadAgree),
	}}
	ledger := NewLedger("s1")
	eng := NewEngine(gw, ledger, Brief{}, Brief{}, quietOpts())
	res, err := eng.Run(context.Background(), stream.Discard)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Outcome != Match {
		t.Fatalf("expected MATCH after degraded turn, got %s", res.Outcome)
	}

	msgs := eng.ledger.Filter(Candidate, Chatting)
	if len(msgs) == 0 {
		t.Fatal("fallback chatting message missing from ledger")
	}
	if msgs[0].Payload != fallbackApology {
		t.Fatalf("expected apology payload, got %q", msgs[0].Payload)
	}
	if msgs[0].Reasoning == "" {
		t.Fatal("fallback reasoning should name the failure")
	}
}

func TestStateMachineTerminalStates(t *testing.T) {
	gw := &scriptedGateway{responses: []string{decision(PayloadAgree), decision(PayloadAgree)}}
	ledger := NewLedger("s1")
	eng := NewEngine(gw, ledger, Brief{}, Brief{}, quietOpts())
	if eng.State() != AwaitingCandidate {
		t.Fatalf("initial state: %s", eng.State())
	}
	if _, err := eng.Run(context.Background(), stream.Discard); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if eng.State() != BothDecided {
		t.Fatalf("expected BOTH_DECIDED, got %s", eng.State())
	}
}

func TestConsumerDisconnectStopsGatewayCalls(t *testing.T) {
	gw := &scriptedGateway{responses: []string{chatting("hello")}, cycle: true}
	ledger := NewLedger("s1")
	eng := NewEngine(gw, ledger, Brief{}, Brief{}, quietOpts())

	ctx, cancel := context.WithCancel(context.Background())
	sent := 0
	_, err := eng.Run(ctx, stream.SinkFunc(func(e stream.Event) error {
		sent++
		if sent >= 2 {
			cancel()
		}
		return nil
	}))
	if err == nil {
		t.Fatal("expected cancellation error")
	}
	if ledger.Len() != 0 {
		t.Fatal("ledger should be cleared after abrupt termination")
	}
	callsAtCancel := gw.calls
	if callsAtCancel > 3 {
		t.Fatalf("engine kept calling the gateway after cancel: %d calls", callsAtCancel)
	}
}
