package state

import (
	ferrors "git.home.luguber.info/inful/treestate/internal/foundation/errors"
)

var (
	// ErrUnbound is returned when an entity that no container initialised is asked to update.
	ErrUnbound = ferrors.StateError("entity is not bound to a container").Build()

	// ErrNoEntity is returned when an update targets a path with no entity.
	ErrNoEntity = ferrors.NotFoundError("no entity stored at path").Build()

	// ErrKindReplaced is returned when an update arrives through a hook whose
	// entity has since been replaced by one of a different kind.
	ErrKindReplaced = ferrors.StateError("entity was replaced by a different kind").Build()
)
