package session

// The active child selection is stored under this key in the user's
// metadata.
const activeChildKey = "active_child"

// Resolution is the tagged result of resolving the active child.
type Resolution struct {
	// OK is true when a non-empty child id was resolved.
	OK bool

	// ChildID is the resolved identifier; empty unless OK.
	ChildID string

	// Reason explains a failed resolution.
	Reason string
}

// Resolver answers which child the current operation is scoped to.
type Resolver struct {
	source Source
}

// NewResolver creates a resolver reading from the given session source.
func NewResolver(source Source) *Resolver {
	return &Resolver{source: source}
}

// Resolve reads the active child selection from the current session's user
// metadata. It never mutates the session and never caches; callers re-resolve
// before each scoped operation.
func (r *Resolver) Resolve() Resolution {
	sess, err := r.source.Current()
	if err != nil {
		return Resolution{Reason: "failed to load session: " + err.Error()}
	}
	if sess == nil || sess.User == nil {
		return Resolution{Reason: "not signed in"}
	}

	childID, _ := sess.User.Metadata[activeChildKey].(string)
	if childID == "" {
		return Resolution{Reason: "no active child selected"}
	}

	return Resolution{OK: true, ChildID: childID}
}
