package negotiation

import "fmt"

const responseFormatRules = `
RESPONSE FORMAT:
Respond ONLY with a single JSON object of the form:
{
  "type": "planning" | "chatting" | "decision",
  "reasoning": "your private reasoning, never shown to the other side",
  "payload": "the message text; for decision it MUST be exactly AGREE or REJECT"
}
Do not include any other text or explanation.

RULES:
1. "planning" is private deliberation; use it before important replies.
2. "chatting" is the only content the other side can see.
3. Emit "decision" once you are confident; it ends your participation.
4. Ask focused questions; do not reveal information your briefing marks as confidential.`

const candidateSystemPrompt = `You are a professional job-seeking agent acting in the candidate's interest during a matching negotiation with a recruiting agent.

CANDIDATE RESUME (full, confidential details included):
%s

POSITION DESCRIPTION (desensitized, company identity withheld):
%s

CANDIDATE PROFILE:
%s
` + responseFormatRules

const recruiterSystemPrompt = `You are a professional recruiting agent acting in the employer's interest during a matching negotiation with a candidate's agent.

POSITION DESCRIPTION (full, confidential details included):
%s

CANDIDATE RESUME (desensitized, identity withheld):
%s

COMPANY HIRING PROFILE:
%s
` + responseFormatRules

// Brief carries the role-specific context blocks embedded into a
// participant's system prompt. Which side sees the full versus the
// desensitized document is decided by the caller; the engine only formats.
type Brief struct {
	Resume  string
	JD      string
	Profile string
}

func candidateSystem(b Brief) string {
	return fmt.Sprintf(candidateSystemPrompt, orNone(b.Resume), orNone(b.JD), orNone(b.Profile))
}

func recruiterSystem(b Brief) string {
	return fmt.Sprintf(recruiterSystemPrompt, orNone(b.JD), orNone(b.Resume), orNone(b.Profile))
}

func orNone(s string) string {
	if s == "" {
		return "(not provided)"
	}
	return s
}
