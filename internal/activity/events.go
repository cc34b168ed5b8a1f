package activity

import "context"

// Listener observes structural changes after they are committed.
// Implementations must not call back into the Store synchronously with the
// expectation of seeing uncommitted state; they receive copies.
type Listener interface {
	ActivityCreated(ctx context.Context, a *Activity)
	MemberJoined(ctx context.Context, a *Activity, m Member)
	ActivityUpdated(ctx context.Context, a *Activity)
}
