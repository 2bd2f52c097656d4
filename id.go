package bus

import (
	"github.com/google/uuid"
)

// ID is a UUID v7 envelope identifier. The embedded millisecond timestamp
// makes freshly generated IDs sort in creation order.
type ID struct {
	uuid.UUID
}

// NewID returns a new UUID v7 identifier.
func NewID() (ID, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return ID{}, err
	}

	return ID{UUID: id}, nil
}

// ParseID parses a canonical UUID string into an ID.
func ParseID(value string) (ID, error) {
	id, err := uuid.Parse(value)
	if err != nil {
		return ID{}, ErrInvalidID
	}

	return ID{UUID: id}, nil
}

// IsZero reports whether the ID is all zeros.
func (id ID) IsZero() bool {
	return id.UUID == uuid.Nil
}

// IDGenerator creates new identifiers.
type IDGenerator interface {
	// New returns a new identifier.
	New() (ID, error)
}

// UUIDv7Generator produces UUID v7 identifiers.
type UUIDv7Generator struct{}

// New creates a new UUID v7 identifier.
func (UUIDv7Generator) New() (ID, error) {
	return NewID()
}
