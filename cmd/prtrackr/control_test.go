package main

import (
	"testing"

	"github.com/mark3labs/prtrackr/internal/git"
)

func TestWorktreeLine(t *testing.T) {
	tests := []struct {
		name string
		info git.Info
		want string
	}{
		{
			name: "clean",
			info: git.Info{Branch: "main", Hash: "a1b2c3d"},
			want: "worktree: main @ a1b2c3d",
		},
		{
			name: "dirty",
			info: git.Info{Branch: "feat", Hash: "a1b2c3d", Dirty: true},
			want: "worktree: feat @ a1b2c3d (dirty)",
		},
		{
			name: "diverged from upstream",
			info: git.Info{Branch: "feat", Hash: "a1b2c3d", Ahead: 2, Behind: 1},
			want: "worktree: feat @ a1b2c3d (ahead 2, behind 1)",
		},
		{
			name: "dirty and ahead",
			info: git.Info{Branch: "feat", Hash: "a1b2c3d", Dirty: true, Ahead: 1},
			want: "worktree: feat @ a1b2c3d (dirty, ahead 1)",
		},
		{
			name: "no commits yet",
			info: git.Info{Branch: "main"},
			want: "worktree: main",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := worktreeLine(&tt.info); got != tt.want {
				t.Errorf("worktreeLine() = %q, want %q", got, tt.want)
			}
		})
	}
}
