package store

import "encoding/json"

// marshalState and unmarshalState serialize a checkpoint's SharedState
// snapshot for the SQL-backed stores, which persist it as a TEXT/JSON
// column rather than a typed table (SharedState's keys are
// application-defined and not known to the store).
func marshalState(state map[string]any) (string, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func unmarshalState(data string) (map[string]any, error) {
	if data == "" {
		return map[string]any{}, nil
	}
	state := make(map[string]any)
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return nil, err
	}
	return state, nil
}
