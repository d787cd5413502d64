package wasm

import "github.com/google/uuid"

// TagInstance is a tag's runtime identity, used by the exception-handling
// proposal's throw/catch matching. Two tags match only if they are the
// *same* TagInstance (by ID), never by structural signature equality alone
// — this is what lets two modules each import the same host-declared tag
// and still observe throw/catch across the boundary correctly, while two
// unrelated tags that merely share a payload signature never accidentally
// match.
type TagInstance struct {
	ID   uuid.UUID
	Type *FunctionType // payload signature; Results is always empty
}

// NewTagInstance allocates a TagInstance with a fresh process-unique ID.
func NewTagInstance(t *FunctionType) *TagInstance {
	return &TagInstance{ID: uuid.New(), Type: t}
}
