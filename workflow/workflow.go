package workflow

import "reflect"

// Workflow is an immutable, validated graph: a set of Executors and the
// EdgeGroups connecting them, with a designated start executor.
type Workflow struct {
	executors  map[string]Executor
	edgeGroups []EdgeGroup
	startID    string

	// handlersByType indexes each executor's Handlers by InputType for
	// O(1) dispatch instead of a linear scan per message.
	handlersByType map[string]map[string]Handler // executorID -> typeKey -> Handler

	// responseHandlers indexes ResponseHandlerProvider executors by
	// (executorID, requestTypeKey) for the Request/Response Mixin.
	responseHandlers map[string]map[string]ResponseHandler
}

// Builder assembles a Workflow incrementally and validates it on Build.
type Builder struct {
	executors  map[string]Executor
	edgeGroups []EdgeGroup
	startID    string
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{executors: make(map[string]Executor)}
}

// AddExecutor registers an executor. Adding a second executor with the
// same ID replaces the first; Build does not report the duplicate.
func (b *Builder) AddExecutor(e Executor) *Builder {
	b.executors[e.ID()] = e
	return b
}

// AddEdgeGroup registers an EdgeGroup.
func (b *Builder) AddEdgeGroup(g EdgeGroup) *Builder {
	b.edgeGroups = append(b.edgeGroups, g)
	return b
}

// StartAt designates the executor that receives the Run's initial input.
func (b *Builder) StartAt(executorID string) *Builder {
	b.startID = executorID
	return b
}

// Build validates the accumulated executors and edges and returns the
// resulting Workflow, or a *ConfigError describing the first problem found.
func (b *Builder) Build() (*Workflow, error) {
	if b.startID == "" {
		return nil, &ConfigError{Message: "no start executor configured"}
	}
	if _, ok := b.executors[b.startID]; !ok {
		return nil, &ConfigError{Message: "start executor " + b.startID + " is not registered"}
	}

	handlersByType := make(map[string]map[string]Handler, len(b.executors))
	responseHandlers := make(map[string]map[string]ResponseHandler, len(b.executors))

	for id, ex := range b.executors {
		byType := make(map[string]Handler)
		for _, h := range ex.Handlers() {
			key := typeKey(h.InputType)
			byType[key] = h
		}
		handlersByType[id] = byType

		provider, ok := ex.(ResponseHandlerProvider)
		if !ok {
			continue
		}
		byReq := make(map[string]ResponseHandler)
		for _, rh := range provider.ResponseHandlers() {
			key := typeKey(rh.RequestType) + "|" + typeKey(rh.ResponseType)
			if _, dup := byReq[key]; dup {
				return nil, &ConfigError{Message: "executor " + id + " registers duplicate response handler", Cause: ErrDuplicateResponseHandler}
			}
			byReq[key] = rh
		}
		responseHandlers[id] = byReq
	}

	for _, g := range b.edgeGroups {
		for _, src := range g.SourceIDs() {
			if _, ok := b.executors[src]; !ok {
				return nil, &ConfigError{Message: "edge group references unknown source executor " + src}
			}
		}
	}

	return &Workflow{
		executors:        b.executors,
		edgeGroups:       b.edgeGroups,
		startID:          b.startID,
		handlersByType:   handlersByType,
		responseHandlers: responseHandlers,
	}, nil
}

func typeKey(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}

// lookupHandler finds the Handler on executorID whose InputType matches (or
// is assignable from) data's concrete type.
func (wf *Workflow) lookupHandler(executorID string, data any) (Handler, bool) {
	byType, ok := wf.handlersByType[executorID]
	if !ok {
		return Handler{}, false
	}
	t := reflect.TypeOf(data)
	if h, ok := byType[typeKey(t)]; ok {
		return h, true
	}
	for _, h := range byType {
		if typeAssignable(t, h.InputType) {
			return h, true
		}
	}
	return Handler{}, false
}

// lookupResponseHandler finds the ResponseHandler on executorID matching
// the (request, response) type pair recorded when Context.RequestInfo was
// called: an exact type match first, otherwise one whose declared types the
// values are assignable to.
func (wf *Workflow) lookupResponseHandler(executorID string, requestData, responseData any) (ResponseHandler, bool) {
	byReq, ok := wf.responseHandlers[executorID]
	if !ok {
		return ResponseHandler{}, false
	}
	reqType, respType := reflect.TypeOf(requestData), reflect.TypeOf(responseData)
	if rh, ok := byReq[typeKey(reqType)+"|"+typeKey(respType)]; ok {
		return rh, true
	}
	for _, rh := range byReq {
		if typeAssignable(reqType, rh.RequestType) && typeAssignable(respType, rh.ResponseType) {
			return rh, true
		}
	}
	return ResponseHandler{}, false
}
