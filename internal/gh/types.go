package gh

import "fmt"

// State is the lifecycle state of a pull request as reported by gh.
type State string

// State values.
const (
	StateOpen   State = "OPEN"
	StateClosed State = "CLOSED"
	StateMerged State = "MERGED"
)

// Terminal reports whether the PR can no longer change (merged or closed).
func (s State) Terminal() bool {
	return s == StateMerged || s == StateClosed
}

// CheckStatus aggregates CI check results for a PR at a point in time.
// It is recomputed on every query, never updated incrementally.
// Invariant: Pass + Fail + Pending == Total after classification.
type CheckStatus struct {
	Total   int
	Pass    int
	Fail    int
	Pending int
}

// Settled reports whether all counted checks have finished.
func (c CheckStatus) Settled() bool {
	return c.Pending == 0
}

// Snapshot is an immutable point-in-time view of a pull request.
// A fresh value is produced by each query; previous snapshots are retained
// by callers only as fallback display values.
type Snapshot struct {
	Number            int
	Title             string
	URL               string
	State             State
	Checks            CheckStatus
	UnresolvedThreads int
}

// RepoIdentity identifies a repository by owner and name.
// Cached per session once resolved; a remote change within a session
// lifetime is treated as never happening.
type RepoIdentity struct {
	Owner string
	Name  string
}

func (r RepoIdentity) String() string {
	return fmt.Sprintf("%s/%s", r.Owner, r.Name)
}
