package geom

import (
	"fmt"

	"github.com/google/uuid"
)

// EntityID is an opaque identifier for a geometry entity. IDs are unique
// across the store and are reused across recalculations only while they
// denote the same logical entity.
type EntityID string

// LayerID identifies a layer in the scene.
type LayerID string

// ZeroEntity is the zero EntityID.
const ZeroEntity EntityID = ""

// IsZero reports whether the ID is unset.
func (id EntityID) IsZero() bool { return id == "" }

// Short returns a truncated form of the ID for log messages.
func (id EntityID) Short() string {
	if len(id) <= 8 {
		return string(id)
	}
	return string(id[:8])
}

// NewEntityID mints a fresh random entity ID.
func NewEntityID() EntityID {
	return EntityID(uuid.NewString())
}

// DerivedEntityID builds a deterministic child ID from an owner ID and an
// index, used for array clones so that count-stable reruns address the same
// entities.
func DerivedEntityID(owner EntityID, kind string, index int) EntityID {
	return EntityID(fmt.Sprintf("%s/%s-%d", owner, kind, index))
}
