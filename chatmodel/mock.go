package chatmodel

import (
	"context"
	"sync"
)

// MockClient is a test double for Client. It replays a configured sequence
// of responses and records every call it receives, following the teacher's
// MockChatModel shape (graph/model/mock.go) widened to the Response type.
type MockClient struct {
	// Responses is returned in order, one per call. The last response
	// repeats once the slice is exhausted.
	Responses []Response

	// Err, if set, is returned instead of a response.
	Err error

	mu        sync.Mutex
	Calls     []Request
	callIndex int
}

// Chat implements Client.
func (m *MockClient) Chat(_ context.Context, req Request) (Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, req)

	if m.Err != nil {
		return Response{}, m.Err
	}
	if len(m.Responses) == 0 {
		return Response{}, nil
	}

	idx := m.callIndex
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	} else {
		m.callIndex++
	}
	return m.Responses[idx], nil
}
