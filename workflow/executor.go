// Package workflow implements a dataflow graph runtime: executors
// connected by edges, dispatched by the runtime type of the message they
// receive rather than by a single shared state type.
package workflow

import "reflect"

// Executor is a node in a Workflow. Each Executor declares the set of
// message types it can handle; the runner dispatches an incoming Message to
// the Handler whose InputType matches (or is assignable from) the
// message's concrete type.
type Executor interface {
	ID() string
	Handlers() []Handler
}

// ResponseHandlerProvider is implemented by Executors that participate in
// the Request/Response Mixin (see requestinfo.go): they handle a response
// correlated to a request they previously emitted, rather than a fresh
// message routed by an edge.
type ResponseHandlerProvider interface {
	ResponseHandlers() []ResponseHandler
}

// Context is threaded through every Handler invocation. It carries the
// message's provenance, the run's SharedState, and the means to emit
// further messages, pause for external input, or end the run.
type Context struct {
	RunID      string
	Superstep  int
	ExecutorID string
	State      *SharedState

	emit    func(msg Message)
	request func(req any) (requestID string)
	events  func(ev Event)
}

// SendMessage enqueues msg for delivery on the next superstep. TargetID, if
// set, restricts delivery to a single executor; otherwise delivery follows
// the workflow's edge groups.
func (c *Context) SendMessage(data any, targetID *string) {
	c.emit(Message{Data: data, SourceID: c.ExecutorID, TargetID: targetID})
}

// RequestInfo pauses the run pending an external response, returning the
// requestId the caller must pass to Run.SendResponses. See requestinfo.go.
func (c *Context) RequestInfo(req any) string {
	return c.request(req)
}

// Yield emits an Event to the run's event stream without affecting
// dataflow (used for progress reporting, e.g. AgentRunEvent).
func (c *Context) Yield(ev Event) {
	c.events(ev)
}

// Handler binds one message type to the function that processes it.
// ContextOutputTypes is documentary: it records what the Handler emits,
// and Builder.Build does not check it against edge targets. It is
// optional; leave nil when the Executor is polymorphic about what it sends
// downstream.
type Handler struct {
	InputType          reflect.Type
	Fn                 func(ctx *Context, data any) error
	ContextOutputTypes []reflect.Type
}

// NewHandler builds a Handler for message type T using a generic helper so
// callers don't have to spell out reflect.TypeOf themselves.
func NewHandler[T any](fn func(ctx *Context, data T) error) Handler {
	var zero T
	return Handler{
		InputType: reflect.TypeOf(zero),
		Fn: func(ctx *Context, data any) error {
			typed, ok := data.(T)
			if !ok {
				return &HandlerError{ExecutorID: ctx.ExecutorID, Message: "message type mismatch"}
			}
			return fn(ctx, typed)
		},
	}
}

// ResponseHandler binds a (request type, response type) pair to the
// function invoked when a matching response arrives. RequestType must
// match the type of the value originally passed to Context.RequestInfo.
type ResponseHandler struct {
	RequestType  reflect.Type
	ResponseType reflect.Type
	Fn           func(ctx *Context, original, response any) error
}

// NewResponseHandler builds a ResponseHandler for request type Req and
// response type Resp.
func NewResponseHandler[Req, Resp any](fn func(ctx *Context, original Req, response Resp) error) ResponseHandler {
	var zeroReq Req
	var zeroResp Resp
	return ResponseHandler{
		RequestType:  reflect.TypeOf(zeroReq),
		ResponseType: reflect.TypeOf(zeroResp),
		Fn: func(ctx *Context, original, response any) error {
			typedReq, ok := original.(Req)
			if !ok {
				return &HandlerError{ExecutorID: ctx.ExecutorID, Message: "request type mismatch"}
			}
			typedResp, ok := response.(Resp)
			if !ok {
				return &HandlerError{ExecutorID: ctx.ExecutorID, Message: "response type mismatch"}
			}
			return fn(ctx, typedReq, typedResp)
		},
	}
}

// Message is one unit of dataflow between executors.
type Message struct {
	Data         any
	SourceID     string
	TargetID     *string
	TraceContext map[string]string
}
