package tools

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"sort"

	"github.com/mohammad-safakhou/talentmatch/internal/telemetry"
)

// Tool is a named capability the executor can invoke. Invocations must be
// idempotent: the loop re-runs a step whenever the observer orders a retry.
type Tool interface {
	Name() string
	Invoke(ctx context.Context, params map[string]interface{}) (string, error)
}

// Dispatcher routes tool calls by name. Failures never surface as Go
// errors; they come back as JSON so the model can read and react to them.
type Dispatcher struct {
	logger *log.Logger
	tools  map[string]Tool
}

func NewDispatcher(logger *log.Logger, ts ...Tool) *Dispatcher {
	if logger == nil {
		logger = log.New(os.Stdout, "[TOOLS] ", log.LstdFlags)
	}
	d := &Dispatcher{logger: logger, tools: map[string]Tool{}}
	for _, t := range ts {
		d.tools[t.Name()] = t
	}
	return d
}

// Names lists the registered tools in stable order.
func (d *Dispatcher) Names() []string {
	out := make([]string, 0, len(d.tools))
	for name := range d.tools {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Execute runs the named tool and always returns a JSON document.
func (d *Dispatcher) Execute(ctx context.Context, name string, params map[string]interface{}) string {
	t, ok := d.tools[name]
	if !ok {
		d.logger.Printf("unknown tool requested: %q", name)
		telemetry.ToolInvocations.WithLabelValues(name, "unknown").Inc()
		return errorJSON("unknown tool: " + name)
	}

	out, err := t.Invoke(ctx, params)
	if err != nil {
		d.logger.Printf("tool %s failed: %v", name, err)
		telemetry.ToolInvocations.WithLabelValues(name, "error").Inc()
		return errorJSON(err.Error())
	}
	telemetry.ToolInvocations.WithLabelValues(name, "ok").Inc()
	return out
}

func errorJSON(msg string) string {
	b, _ := json.Marshal(map[string]string{"error": msg})
	return string(b)
}
