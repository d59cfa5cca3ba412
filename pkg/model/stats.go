package model

import "time"

// StageCounts holds the per-stage bill counts for one congress.
type StageCounts struct {
	Introduced        int `json:"introduced"`
	InCommittee       int `json:"in_committee"`
	PassedOneChamber  int `json:"passed_one_chamber"`
	PassedBothChamber int `json:"passed_both_chambers"`
	Vetoed            int `json:"vetoed"`
	ToPresident       int `json:"to_president"`
	Signed            int `json:"signed"`
	BecameLaw         int `json:"became_law"`
}

// TopPolicyArea is one entry of the top-N policy area ranking.
type TopPolicyArea struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// TopSponsor is one entry of the top-N sponsor ranking. Party and state are
// carried from any representative bill row of that sponsor.
type TopSponsor struct {
	Name  string `json:"name"`
	Party string `json:"party"`
	State string `json:"state"`
	Count int    `json:"count"`
}

// TimelineMetric is the mean number of days from a bill's earliest action to
// its earliest action matching the stage's triggers.
type TimelineMetric struct {
	Stage   int     `json:"stage"`
	AvgDays float64 `json:"avg_days"`
}

// CongressStats is the precomputed homepage aggregate for one congress. It
// is a pure projection of the bill tables and may be recomputed at any time.
type CongressStats struct {
	Congress        int              `json:"congress"`
	TotalCount      int              `json:"total_count"`
	HouseCount      int              `json:"house_count"`
	SenateCount     int              `json:"senate_count"`
	StageCounts     StageCounts      `json:"stage_counts"`
	TopPolicyAreas  []TopPolicyArea  `json:"top_policy_areas"`
	TopSponsors     []TopSponsor     `json:"top_sponsors"`
	TimelineMetrics []TimelineMetric `json:"timeline_metrics,omitempty"`
	ComputedAt      time.Time        `json:"computed_at"`
}
