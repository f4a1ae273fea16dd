package gh

import (
	stderrors "errors"
	"testing"
	"time"

	"github.com/mark3labs/prtrackr/internal/errors"
)

func TestRunGH_FailureIsTransient(t *testing.T) {
	c := NewClient()

	// A fresh temp dir has no repository, so the query cannot succeed.
	_, err := c.runGH(t.TempDir(), 2*time.Second, "pr", "view")
	if err == nil {
		t.Fatal("expected error outside a repository")
	}

	var te *errors.TransientError
	if !stderrors.As(err, &te) {
		t.Fatalf("expected *errors.TransientError, got %T: %v", err, err)
	}
	if te.Op != "gh pr view" {
		t.Errorf("expected op %q, got %q", "gh pr view", te.Op)
	}
}

func TestSnapshotByBranch_EmptyBranch(t *testing.T) {
	if snap := NewClient().SnapshotByBranch(t.TempDir(), ""); snap != nil {
		t.Errorf("expected nil snapshot for empty branch, got %+v", snap)
	}
}
