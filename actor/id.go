// Package actor hosts long-lived, addressable, message-driven actors: one
// goroutine per live actor, serialized per-actor message processing, and a
// request/response correlation layer with streaming progress updates.
package actor

import (
	"fmt"
	"regexp"
)

var instancePattern = regexp.MustCompile(`^[A-Za-z0-9_.\-~]+$`)

// Id addresses a single actor: a type name (the registered factory key)
// plus an instance id scoped to one conversation, conventionally a UUID
// with hyphens removed.
type Id struct {
	Type     string
	Instance string
}

// NewId validates typ and instance and returns the corresponding Id.
func NewId(typ, instance string) (Id, error) {
	if typ == "" {
		return Id{}, fmt.Errorf("actor: type name must not be empty")
	}
	if !instancePattern.MatchString(instance) {
		return Id{}, fmt.Errorf("actor: instance id %q does not match %s", instance, instancePattern.String())
	}
	return Id{Type: typ, Instance: instance}, nil
}

// String renders the id as "type/instance", used as the actor table key.
func (id Id) String() string {
	return id.Type + "/" + id.Instance
}
