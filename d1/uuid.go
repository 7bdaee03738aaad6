package d1

import (
	"strings"

	"github.com/google/uuid"
)

// A plain uuid.UUID binds as a 16 byte blob. The two wrappers below bind it
// as text instead.

// HyphenatedUUID binds as the 36 character "8-4-4-4-12" text form.
type HyphenatedUUID uuid.UUID

func (u HyphenatedUUID) String() string { return uuid.UUID(u).String() }

// SimpleUUID binds as 32 hex characters with no hyphens.
type SimpleUUID uuid.UUID

func (u SimpleUUID) String() string {
	return strings.ReplaceAll(uuid.UUID(u).String(), "-", "")
}

func decodeUUID(raw any) (uuid.UUID, error) {
	if b, ok := asBytes(raw); ok {
		return uuid.FromBytes(b)
	}
	if s, ok := raw.(string); ok {
		return uuid.Parse(s)
	}
	return uuid.Nil, errMismatch("uuid", raw)
}
