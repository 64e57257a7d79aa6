package harness

// TraceEvent records what one step did. Pull and push steps produce one
// event per reconciled record; edit steps produce a single event.
type TraceEvent struct {
	Step     int    `json:"step"`
	Action   string `json:"action"`
	RecordID string `json:"record_id,omitempty"`
	RowID    string `json:"row_id,omitempty"`
	Outcome  string `json:"outcome,omitempty"`
	Created  int    `json:"created,omitempty"`
	Updated  int    `json:"updated,omitempty"`
	Deleted  int    `json:"deleted,omitempty"`
	Rejected int    `json:"rejected,omitempty"`
	Message  string `json:"message,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace lists step events in order.
	Trace []TraceEvent `json:"trace"`

	// Errors explains each failed expectation.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a trace event.
func (r *Result) AddTrace(ev TraceEvent) {
	r.Trace = append(r.Trace, ev)
}

// Outcomes returns the outcome of every record reconciled by a step.
func (r *Result) Outcomes(step int) map[string]string {
	out := make(map[string]string)
	for _, ev := range r.Trace {
		if ev.Step == step && ev.Outcome != "" {
			out[ev.RecordID] = ev.Outcome
		}
	}
	return out
}
