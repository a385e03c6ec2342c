package radio

import "time"

// Artifact is one message file discovered in the pager directory.
type Artifact struct {
	// Path is relative to the watched root, slash separated.
	Path      string
	Text      string
	CreatedAt time.Time
}
