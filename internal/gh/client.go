// Package gh is the read-only query adapter over the GitHub CLI.
// Every query is bounded by a timeout and degrades to "no result" on any
// failure; nothing in this package ever propagates a transport error upward.
package gh

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"time"

	"github.com/mark3labs/prtrackr/internal/errors"
	"github.com/mark3labs/prtrackr/internal/logger"
)

// Default per-call timeouts. PR metadata is a single API round trip; the
// review-thread query goes through GraphQL and is allowed more headroom.
const (
	DefaultViewTimeout    = 5 * time.Second
	DefaultThreadsTimeout = 15 * time.Second
)

// prFields is the --json field list for snapshot queries.
const prFields = "number,title,url,state,statusCheckRollup"

// Client shells out to gh. The zero value is not usable; call NewClient.
type Client struct {
	ViewTimeout    time.Duration
	ThreadsTimeout time.Duration
}

// NewClient returns a Client with default timeouts.
func NewClient() *Client {
	return &Client{
		ViewTimeout:    DefaultViewTimeout,
		ThreadsTimeout: DefaultThreadsTimeout,
	}
}

// rawPR mirrors gh pr view --json output. Optional fields default to their
// zero values here so nothing partial escapes the adapter.
type rawPR struct {
	Number            int        `json:"number"`
	Title             string     `json:"title"`
	URL               string     `json:"url"`
	State             string     `json:"state"`
	StatusCheckRollup []rawCheck `json:"statusCheckRollup"`
}

// SnapshotByBranch queries the PR associated with branch in dir.
// Returns nil when there is no PR or the query fails; the two cases are
// deliberately indistinguishable to callers (both mean "no result").
func (c *Client) SnapshotByBranch(dir, branch string) *Snapshot {
	if branch == "" {
		return nil
	}
	out, err := c.runGH(dir, c.ViewTimeout, "pr", "view", branch, "--json", prFields)
	if err != nil {
		logger.Debug("no PR for branch %q in %s: %v", branch, dir, err)
		return nil
	}
	snap := c.parseSnapshot(out)
	if snap != nil {
		c.fillThreads(dir, "", snap)
	}
	return snap
}

// SnapshotByNumber queries a pinned PR by explicit repo and number.
// repo is "owner/name". Returns nil on any failure.
func (c *Client) SnapshotByNumber(dir, repo string, number int) *Snapshot {
	if repo == "" || number <= 0 {
		return nil
	}
	out, err := c.runGH(dir, c.ViewTimeout,
		"pr", "view", strconv.Itoa(number), "--repo", repo, "--json", prFields)
	if err != nil {
		logger.Debug("pinned PR %s#%d query failed: %v", repo, number, err)
		return nil
	}
	snap := c.parseSnapshot(out)
	if snap != nil {
		c.fillThreads(dir, repo, snap)
	}
	return snap
}

// RepoIdentity resolves the owner/name of the repository at dir.
// Returns nil on failure; identity is cached per session by the caller.
func (c *Client) RepoIdentity(dir string) *RepoIdentity {
	out, err := c.runGH(dir, c.ViewTimeout, "repo", "view", "--json", "owner,name")
	if err != nil {
		logger.Debug("repo identity query failed in %s: %v", dir, err)
		return nil
	}

	var raw struct {
		Owner struct {
			Login string `json:"login"`
		} `json:"owner"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(out, &raw); err != nil || raw.Owner.Login == "" || raw.Name == "" {
		logger.Debug("repo identity parse failed in %s: %v", dir, err)
		return nil
	}
	return &RepoIdentity{Owner: raw.Owner.Login, Name: raw.Name}
}

// PullRef is a lightweight PR reference, used for shell completion.
type PullRef struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
}

// ListOpen returns the open PRs of the repository at dir.
// Degrades to nil on any failure, like every other query here.
func (c *Client) ListOpen(dir string) []PullRef {
	out, err := c.runGH(dir, c.ViewTimeout, "pr", "list", "--state", "open", "--json", "number,title")
	if err != nil {
		logger.Debug("pr list failed in %s: %v", dir, err)
		return nil
	}
	var refs []PullRef
	if err := json.Unmarshal(out, &refs); err != nil {
		logger.Debug("pr list output unparseable: %v", err)
		return nil
	}
	return refs
}

// parseSnapshot converts raw gh output into a Snapshot.
// Malformed output is treated exactly like a failed query.
func (c *Client) parseSnapshot(out []byte) *Snapshot {
	var raw rawPR
	if err := json.Unmarshal(out, &raw); err != nil {
		logger.Debug("gh pr view output unparseable: %v", err)
		return nil
	}
	if raw.Number == 0 {
		return nil
	}

	state := State(raw.State)
	switch state {
	case StateOpen, StateClosed, StateMerged:
	default:
		// An unexpected state string is a malformed response.
		logger.Debug("unexpected PR state %q for #%d", raw.State, raw.Number)
		return nil
	}

	return &Snapshot{
		Number: raw.Number,
		Title:  raw.Title,
		URL:    raw.URL,
		State:  state,
		Checks: aggregateChecks(raw.StatusCheckRollup),
	}
}

// threadsQuery counts unresolved review threads via the GraphQL API.
const threadsQuery = `query($owner:String!,$name:String!,$number:Int!){
  repository(owner:$owner,name:$name){
    pullRequest(number:$number){
      reviewThreads(first:100){nodes{isResolved}}
    }
  }
}`

// fillThreads populates UnresolvedThreads on snap. This is a secondary
// query: its failure must not fail the snapshot, so it degrades to 0.
func (c *Client) fillThreads(dir, repo string, snap *Snapshot) {
	owner, name, ok := splitRepo(repo)
	if !ok {
		id := c.RepoIdentity(dir)
		if id == nil {
			return
		}
		owner, name = id.Owner, id.Name
	}

	out, err := c.runGH(dir, c.ThreadsTimeout,
		"api", "graphql",
		"-f", "query="+threadsQuery,
		"-f", "owner="+owner,
		"-f", "name="+name,
		"-F", "number="+strconv.Itoa(snap.Number))
	if err != nil {
		logger.Debug("review threads query failed for #%d: %v", snap.Number, err)
		return
	}

	var raw struct {
		Data struct {
			Repository struct {
				PullRequest struct {
					ReviewThreads struct {
						Nodes []struct {
							IsResolved bool `json:"isResolved"`
						} `json:"nodes"`
					} `json:"reviewThreads"`
				} `json:"pullRequest"`
			} `json:"repository"`
		} `json:"data"`
	}
	if err := json.Unmarshal(out, &raw); err != nil {
		logger.Debug("review threads parse failed for #%d: %v", snap.Number, err)
		return
	}

	count := 0
	for _, n := range raw.Data.Repository.PullRequest.ReviewThreads.Nodes {
		if !n.IsResolved {
			count++
		}
	}
	snap.UnresolvedThreads = count
}

// splitRepo splits "owner/name" into its parts.
func splitRepo(repo string) (owner, name string, ok bool) {
	for i := 0; i < len(repo); i++ {
		if repo[i] == '/' {
			owner, name = repo[:i], repo[i+1:]
			return owner, name, owner != "" && name != ""
		}
	}
	return "", "", false
}

// runGH executes gh in dir with a bounded timeout. Failures come back as
// transient errors: the query methods log them and degrade to "no result".
func (c *Client) runGH(dir string, timeout time.Duration, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "gh", args...)
	if dir != "" {
		cmd.Dir = dir
	}

	op := "gh " + args[0]
	if len(args) > 1 {
		op += " " + args[1]
	}

	out, err := cmd.Output()
	if ctx.Err() == context.DeadlineExceeded {
		return nil, errors.NewTransientError(op, fmt.Errorf("timed out after %s", timeout))
	}
	if err != nil {
		return nil, errors.NewTransientError(op, err)
	}
	return out, nil
}
