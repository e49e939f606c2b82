package harness

import "fmt"

// Trace event types.
const (
	EventStep         = "step"
	EventPrint        = "print"
	EventError        = "error"
	EventWarn         = "warn"
	EventRunning      = "running"
	EventStopping     = "stopping"
	EventStopped      = "stopped"
	EventScriptEnding = "scriptEnding"
	EventFinished     = "finished"
	EventDoneRunning  = "doneRunning"
)

// TraceEvent is one recorded occurrence.
type TraceEvent struct {
	Seq     int64  `json:"seq"`
	Type    string `json:"type"`
	Name    string `json:"name,omitempty"`
	Entity  string `json:"entity,omitempty"`
	Message string `json:"message,omitempty"`
}

// Key identifies the event in trace_order assertions: the type, followed
// by the message (or the name, when there is no message).
func (ev TraceEvent) Key() string {
	switch {
	case ev.Message != "":
		return ev.Type + ":" + ev.Message
	case ev.Name != "":
		return ev.Type + ":" + ev.Name
	}
	return ev.Type
}

func (ev TraceEvent) String() string {
	s := fmt.Sprintf("[%d] %s", ev.Seq, ev.Type)
	if ev.Name != "" {
		s += " " + ev.Name
	}
	if ev.Entity != "" {
		s += " entity=" + ev.Entity
	}
	if ev.Message != "" {
		s += fmt.Sprintf(" %q", ev.Message)
	}
	return s
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every assertion held and every step ran.
	Pass bool `json:"pass"`

	// Trace holds the recorded events in order.
	Trace []TraceEvent `json:"trace"`

	// Errors holds failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State holds host counters captured before shutdown, for host_state
	// assertions.
	State map[string]int `json:"state,omitempty"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		State:  make(map[string]int),
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
