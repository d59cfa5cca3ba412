// Package model defines the entities materialized by the ingestion core and
// read by the serving layer: bills, their child records, sync snapshots, and
// the precomputed per-congress aggregates.
package model

import (
	"fmt"
	"time"
)

// BillType is one of the eight congress.gov bill type abbreviations.
type BillType string

const (
	BillTypeHR      BillType = "hr"
	BillTypeS       BillType = "s"
	BillTypeHJRes   BillType = "hjres"
	BillTypeSJRes   BillType = "sjres"
	BillTypeHConRes BillType = "hconres"
	BillTypeSConRes BillType = "sconres"
	BillTypeHRes    BillType = "hres"
	BillTypeSRes    BillType = "sres"
)

// BillTypes lists all bill types in the canonical fan-out order used by the
// sync orchestrator.
var BillTypes = []BillType{
	BillTypeHR, BillTypeS,
	BillTypeHJRes, BillTypeSJRes,
	BillTypeHConRes, BillTypeSConRes,
	BillTypeHRes, BillTypeSRes,
}

// IsHouse reports whether the bill type originates in the House.
func (t BillType) IsHouse() bool {
	switch t {
	case BillTypeHR, BillTypeHJRes, BillTypeHConRes, BillTypeHRes:
		return true
	}
	return false
}

// Valid reports whether t is one of the eight known bill types.
func (t BillType) Valid() bool {
	for _, bt := range BillTypes {
		if t == bt {
			return true
		}
	}
	return false
}

// Endpoint bitmask positions. A bill is complete when SyncedEndpoints holds
// all five bits.
const (
	EndpointDetail    = 1
	EndpointActions   = 2
	EndpointSubjects  = 4
	EndpointSummaries = 8
	EndpointText      = 16

	EndpointsAll = EndpointDetail | EndpointActions | EndpointSubjects | EndpointSummaries | EndpointText
)

// BillID builds the natural key for a bill: number, type, congress
// concatenated, e.g. "1234hr119".
func BillID(congress int, billType BillType, number int) string {
	return fmt.Sprintf("%d%s%d", number, billType, congress)
}

// CurrentCongress computes the congress number in session at t.
func CurrentCongress(t time.Time) int {
	return (t.Year()-1789)/2 + 1
}

// Bill is the primary entity, one row per bill, keyed by BillID.
//
// SyncedEndpoints is NULL (nil) for legacy rows ingested before endpoint
// tracking existed; the backfill worker computes it from child presence.
type Bill struct {
	BillID             string
	Congress           int
	BillType           BillType
	BillNumber         int
	Title              string
	TitleWithoutNumber string
	IntroducedDate     string
	SponsorFirstName   string
	SponsorLastName    string
	SponsorParty       string
	SponsorState       string
	Stage              int
	StageDescription   string
	SyncedEndpoints    *int
	LastSyncAttempt    time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// SyncedMask returns the bitmask, treating legacy NULL as 0.
func (b *Bill) SyncedMask() int {
	if b.SyncedEndpoints == nil {
		return 0
	}
	return *b.SyncedEndpoints
}

// IsLegacy reports whether the bill predates endpoint tracking.
func (b *Bill) IsLegacy() bool { return b.SyncedEndpoints == nil }

// BillAction is a child of Bill, keyed by (billId, actionDate, actionCode).
// Rows without an action code are dropped at ingest.
type BillAction struct {
	BillID           string
	ActionCode       string
	ActionDate       string
	SourceSystemCode string
	SourceSystemName string
	Text             string
	Type             string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// BillSubject holds the policy area for a bill. At most one per bill.
type BillSubject struct {
	BillID               string
	PolicyAreaName       string
	PolicyAreaUpdateDate string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// BillSummary is keyed by (billId, versionCode). A newly observed summary
// replaces the stored one iff its UpdateDate is strictly greater.
type BillSummary struct {
	BillID      string
	VersionCode string
	ActionDate  string
	ActionDesc  string
	Text        string
	UpdateDate  string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// BillText is keyed by (billId, date, type). Text versions are immutable
// once stored.
type BillText struct {
	BillID    string
	Date      string
	Type      string
	TextURL   string
	PDFURL    string
	CreatedAt time.Time
	UpdatedAt time.Time
}
