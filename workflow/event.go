package workflow

// Event is a closed union of everything a Run can report on its event
// stream, mirroring how graph.Next in the teacher closes Goto/Stop/Terminal
// into one type rather than leaving routing decisions untyped.
type Event interface {
	isEvent()
}

// ExecutorInvoked is emitted immediately before a Handler runs.
type ExecutorInvoked struct {
	RunID      string
	Superstep  int
	ExecutorID string
	Input      any
}

func (ExecutorInvoked) isEvent() {}

// ExecutorCompleted is emitted immediately after a Handler returns
// successfully.
type ExecutorCompleted struct {
	RunID      string
	Superstep  int
	ExecutorID string
	Output     any
}

func (ExecutorCompleted) isEvent() {}

// AgentRunEvent carries a progress update from an agent.Agent running
// inside an executor (see the agent package), surfaced on the workflow's
// event stream without needing its own dataflow edges.
type AgentRunEvent struct {
	RunID      string
	ExecutorID string
	Update     any
}

func (AgentRunEvent) isEvent() {}

// RequestInfoEvent pauses the run: it is emitted when an executor calls
// Context.RequestInfo, and Run.Execute returns control to the caller until
// SendResponses supplies a matching response.
type RequestInfoEvent struct {
	RunID      string
	RequestID  string
	ExecutorID string
	Request    any
}

func (RequestInfoEvent) isEvent() {}

// WorkflowOutputEvent is the terminal success event: the run has no more
// runnable work and Output holds its final result.
type WorkflowOutputEvent struct {
	RunID  string
	Output any
}

func (WorkflowOutputEvent) isEvent() {}

// ErrorKind classifies an ErrorEvent for callers deciding whether to abort
// or continue.
type ErrorKind string

const (
	ErrorKindHandler           ErrorKind = "handler"
	ErrorKindNoHandler         ErrorKind = "no_handler"
	ErrorKindNoResponseHandler ErrorKind = "no_response_handler"
	ErrorKindPartition         ErrorKind = "partition"
	ErrorKindConfig            ErrorKind = "config"
	ErrorKindCancelled         ErrorKind = "cancelled"
)

// ErrorEvent reports a run-time failure. Whether the run aborts after
// emitting one depends on ErrorKind and any configured SupervisorFunc; see
// Run.Execute.
type ErrorEvent struct {
	RunID      string
	Superstep  int
	ExecutorID string
	Kind       ErrorKind
	Err        error
}

func (ErrorEvent) isEvent() {}
