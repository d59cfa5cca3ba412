// Package stage maps a bill's action history to its coarse legislative
// progress stage. Classification is a single pass over the actions with two
// early-return signals (became law, signed) and four deferred flags resolved
// by priority afterwards.
package stage

import "strings"

// Stage values. Higher is further along the pipeline; Vetoed (85) sits
// between PassedBothChambers and ToPresident by convention of the serving
// layer's ordering.
const (
	Introduced         = 20
	InCommittee        = 40
	PassedOneChamber   = 60
	PassedBothChambers = 80
	Vetoed             = 85
	ToPresident        = 90
	Signed             = 95
	BecameLaw          = 100
)

var descriptions = map[int]string{
	Introduced:         "Introduced",
	InCommittee:        "In Committee",
	PassedOneChamber:   "Passed One Chamber",
	PassedBothChambers: "Passed Both Chambers",
	Vetoed:             "Vetoed",
	ToPresident:        "To President",
	Signed:             "Signed",
	BecameLaw:          "Became Law",
}

// Description returns the canonical label for a stage value.
func Description(stage int) string {
	if d, ok := descriptions[stage]; ok {
		return d
	}
	return descriptions[Introduced]
}

// Action is the minimal view of a bill action the classifier needs.
type Action struct {
	Text       string
	Type       string
	ActionCode string
}

func codeIn(code string, set ...string) bool {
	if code == "" {
		return false
	}
	for _, s := range set {
		if code == s {
			return true
		}
	}
	return false
}

// Signals reports which stage triggers a single action carries. The first
// matching row of the trigger table wins, so one action carries at most one
// signal.
type Signals struct {
	BecameLaw    bool
	Signed       bool
	Vetoed       bool
	ToPresident  bool
	PassedHouse  bool
	PassedSenate bool
	Committee    bool
}

// Inspect matches one action against the trigger table.
func Inspect(a Action) Signals {
	text := strings.ToLower(a.Text)
	typ := strings.ToLower(a.Type)
	code := a.ActionCode

	switch {
	case strings.Contains(text, "became public law"),
		strings.Contains(text, "became private law"),
		typ == "becamelaw",
		codeIn(code, "36000", "E40000"):
		return Signals{BecameLaw: true}

	case strings.Contains(text, "signed by president"),
		typ == "signedbypresident",
		codeIn(code, "29000", "E30000"):
		return Signals{Signed: true}

	case strings.Contains(text, "vetoed"),
		strings.Contains(text, "veto message"),
		typ == "vetoed",
		codeIn(code, "31000", "E50000"):
		return Signals{Vetoed: true}

	case strings.Contains(text, "to president"),
		strings.Contains(text, "presented to president"),
		codeIn(code, "28000", "E20000"):
		return Signals{ToPresident: true}

	case strings.Contains(text, "passed house"),
		typ == "passedhouse",
		codeIn(code, "H32500"):
		return Signals{PassedHouse: true}

	case strings.Contains(text, "passed senate"),
		typ == "passedsenate",
		codeIn(code, "S32500"):
		return Signals{PassedSenate: true}

	case strings.Contains(text, "referred to"),
		strings.Contains(text, "committee"),
		codeIn(code, "5000", "14000", "H11100", "S11100"):
		return Signals{Committee: true}
	}

	return Signals{}
}

// Classify returns the progress stage and its canonical description for the
// given action history. An empty history classifies as Introduced.
//
// Became-law and signed signals return immediately so they always win, even
// over veto-looking text earlier in the list. Vetoed, to-president and
// chamber passages are collected as flags and resolved by priority after the
// pass. A vetoed-then-overridden bill still reports Vetoed; override is not
// modeled upstream.
func Classify(actions []Action) (int, string) {
	stage := Introduced

	var passedHouse, passedSenate, vetoed, toPresident bool

	for _, a := range actions {
		sig := Inspect(a)
		switch {
		case sig.BecameLaw:
			return BecameLaw, Description(BecameLaw)
		case sig.Signed:
			return Signed, Description(Signed)
		case sig.Vetoed:
			vetoed = true
		case sig.ToPresident:
			toPresident = true
		case sig.PassedHouse:
			passedHouse = true
		case sig.PassedSenate:
			passedSenate = true
		case sig.Committee:
			if stage == Introduced {
				stage = InCommittee
			}
		}
	}

	switch {
	case vetoed:
		stage = Vetoed
	case toPresident:
		stage = ToPresident
	case passedHouse && passedSenate:
		stage = PassedBothChambers
	case passedHouse || passedSenate:
		stage = PassedOneChamber
	}

	return stage, Description(stage)
}
