package gh

import "strings"

// rawCheck is one entry of gh's statusCheckRollup output. Check runs carry
// name/status/conclusion; legacy commit statuses carry context/state.
type rawCheck struct {
	Name       string `json:"name"`
	Context    string `json:"context"`
	Status     string `json:"status"`
	Conclusion string `json:"conclusion"`
	State      string `json:"state"`
}

// checkResult is the classification of a single check entry.
type checkResult int

const (
	checkDropped checkResult = iota // ghost entry, excluded from counts
	checkPass
	checkFail
	checkPending
)

// classifyCheck buckets a single rollup entry. Conclusion is authoritative;
// status is consulted only when the conclusion says nothing. Unrecognized
// combinations count as pending: unknown must never be reported as success
// or failure.
func classifyCheck(c rawCheck) checkResult {
	conclusion := strings.ToUpper(c.Conclusion)
	if conclusion == "" {
		// Legacy commit statuses report via state instead.
		conclusion = strings.ToUpper(c.State)
	}

	switch conclusion {
	case "SUCCESS", "NEUTRAL", "SKIPPED":
		return checkPass
	case "FAILURE", "TIMED_OUT", "CANCELLED", "ACTION_REQUIRED", "ERROR":
		return checkFail
	}

	switch strings.ToUpper(c.Status) {
	case "IN_PROGRESS", "QUEUED", "PENDING", "WAITING":
		return checkPending
	case "COMPLETED":
		// Completed with no conclusion at all; gh occasionally reports this
		// for neutral third-party apps.
		return checkPass
	}

	if c.Name == "" && c.Context == "" && c.Status == "" && c.Conclusion == "" && c.State == "" {
		return checkDropped
	}

	return checkPending
}

// aggregateChecks folds rollup entries into counters.
// Ghost entries (no identity, no status data) are excluded entirely.
func aggregateChecks(raw []rawCheck) CheckStatus {
	var cs CheckStatus
	for _, c := range raw {
		switch classifyCheck(c) {
		case checkDropped:
			continue
		case checkPass:
			cs.Pass++
		case checkFail:
			cs.Fail++
		case checkPending:
			cs.Pending++
		}
		cs.Total++
	}
	return cs
}
