package pubsub

import (
	"slices"
	"strings"
)

// Separator delimits path segments.
const Separator = "."

// Join appends child to parent. An empty parent yields child.
func Join(parent, child string) string {
	switch {
	case parent == "":
		return child
	case child == "":
		return parent
	default:
		return parent + Separator + child
	}
}

// IsWithin reports whether path equals root or is one of its descendants.
func IsWithin(path, root string) bool {
	return path == root || strings.HasPrefix(path, root+Separator)
}

// ChangeBatch is the ordered, duplicate-free list of paths changed in one flush.
type ChangeBatch []string

// Contains reports whether path changed in this batch.
func (b ChangeBatch) Contains(path string) bool {
	return slices.Contains(b, path)
}

// Touches reports whether root or any descendant of root changed.
func (b ChangeBatch) Touches(root string) bool {
	for _, p := range b {
		if IsWithin(p, root) {
			return true
		}
	}
	return false
}
