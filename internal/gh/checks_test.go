package gh

import "testing"

func TestClassifyCheck(t *testing.T) {
	tests := []struct {
		name     string
		check    rawCheck
		expected checkResult
	}{
		{"success conclusion", rawCheck{Name: "build", Conclusion: "SUCCESS"}, checkPass},
		{"neutral conclusion", rawCheck{Name: "lint", Conclusion: "NEUTRAL"}, checkPass},
		{"skipped conclusion", rawCheck{Name: "docs", Conclusion: "SKIPPED"}, checkPass},
		{"failure conclusion", rawCheck{Name: "test", Conclusion: "FAILURE"}, checkFail},
		{"timed out", rawCheck{Name: "e2e", Conclusion: "TIMED_OUT"}, checkFail},
		{"cancelled", rawCheck{Name: "deploy", Conclusion: "CANCELLED"}, checkFail},
		{"action required", rawCheck{Name: "gate", Conclusion: "ACTION_REQUIRED"}, checkFail},
		{"in progress", rawCheck{Name: "build", Status: "IN_PROGRESS"}, checkPending},
		{"queued", rawCheck{Name: "build", Status: "QUEUED"}, checkPending},
		{"waiting", rawCheck{Name: "build", Status: "WAITING"}, checkPending},
		{"completed without conclusion", rawCheck{Name: "app", Status: "COMPLETED"}, checkPass},
		// Unknown combinations are conservative: pending, never pass or fail.
		{"unrecognized conclusion", rawCheck{Name: "x", Conclusion: "STALE"}, checkPending},
		{"unrecognized status", rawCheck{Name: "x", Status: "SLEEPING"}, checkPending},
		{"named but empty", rawCheck{Name: "x"}, checkPending},
		// Legacy commit statuses report via state.
		{"legacy success", rawCheck{Context: "ci/jenkins", State: "SUCCESS"}, checkPass},
		{"legacy error", rawCheck{Context: "ci/jenkins", State: "ERROR"}, checkFail},
		// Ghost entries carry no identity and no status data at all.
		{"ghost entry", rawCheck{}, checkDropped},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyCheck(tt.check); got != tt.expected {
				t.Errorf("classifyCheck(%+v) = %v, expected %v", tt.check, got, tt.expected)
			}
		})
	}
}

func TestAggregateChecks(t *testing.T) {
	// Ghost entries are dropped, not counted as pending.
	raw := []rawCheck{
		{Conclusion: "SUCCESS"},
		{Conclusion: "FAILURE"},
		{Status: "IN_PROGRESS"},
		{},
	}

	got := aggregateChecks(raw)
	expected := CheckStatus{Total: 3, Pass: 1, Fail: 1, Pending: 1}
	if got != expected {
		t.Errorf("aggregateChecks = %+v, expected %+v", got, expected)
	}

	if got.Pass+got.Fail+got.Pending != got.Total {
		t.Error("counter invariant violated: pass+fail+pending != total")
	}
}

func TestAggregateChecks_Empty(t *testing.T) {
	got := aggregateChecks(nil)
	if got.Total != 0 {
		t.Errorf("expected zero counters for nil rollup, got %+v", got)
	}
	if !got.Settled() {
		t.Error("zero checks should count as settled")
	}
}

func TestParseSnapshot(t *testing.T) {
	c := NewClient()

	t.Run("valid open PR", func(t *testing.T) {
		out := []byte(`{"number":42,"title":"Add tracker","url":"https://github.com/acme/widgets/pull/42","state":"OPEN","statusCheckRollup":[{"name":"build","conclusion":"SUCCESS"},{"name":"test","status":"IN_PROGRESS"}]}`)
		snap := c.parseSnapshot(out)
		if snap == nil {
			t.Fatal("expected snapshot")
		}
		if snap.Number != 42 || snap.State != StateOpen {
			t.Errorf("unexpected snapshot: %+v", snap)
		}
		if snap.Checks.Total != 2 || snap.Checks.Pass != 1 || snap.Checks.Pending != 1 {
			t.Errorf("unexpected checks: %+v", snap.Checks)
		}
	})

	t.Run("malformed output is no result", func(t *testing.T) {
		if snap := c.parseSnapshot([]byte("not json")); snap != nil {
			t.Errorf("expected nil for malformed output, got %+v", snap)
		}
	})

	t.Run("unexpected state is no result", func(t *testing.T) {
		out := []byte(`{"number":7,"state":"DRAFTISH"}`)
		if snap := c.parseSnapshot(out); snap != nil {
			t.Errorf("expected nil for unexpected state, got %+v", snap)
		}
	})
}

func TestSplitRepo(t *testing.T) {
	if owner, name, ok := splitRepo("acme/widgets"); !ok || owner != "acme" || name != "widgets" {
		t.Errorf("splitRepo(acme/widgets) = %q %q %v", owner, name, ok)
	}
	if _, _, ok := splitRepo("nodash"); ok {
		t.Error("expected failure for repo without slash")
	}
	if _, _, ok := splitRepo("/widgets"); ok {
		t.Error("expected failure for empty owner")
	}
}
