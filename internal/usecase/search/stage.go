package search

// Stage is a step of the query lifecycle.
type Stage int

// Query lifecycle stages, in order. Failed is terminal and reachable from
// Fetching, or from any stage on caller cancellation.
const (
	StageReceived Stage = iota
	StageFetching
	StageNormalizing
	StageFiltering
	StageBlending
	StageDone
	StageFailed
)

var stageNames = [...]string{
	StageReceived:    "received",
	StageFetching:    "fetching",
	StageNormalizing: "normalizing",
	StageFiltering:   "filtering",
	StageBlending:    "blending",
	StageDone:        "done",
	StageFailed:      "failed",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "unknown"
	}
	return stageNames[s]
}
