//go:build property
// +build property

// Property-based tests for the stage classifier: totality over arbitrary
// action histories and priority of the terminal signals.
package stage

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

var validStages = map[int]bool{
	Introduced: true, InCommittee: true, PassedOneChamber: true,
	PassedBothChambers: true, Vetoed: true, ToPresident: true,
	Signed: true, BecameLaw: true,
}

func actionsFrom(texts, types, codes []string) []Action {
	n := len(texts)
	if len(types) < n {
		n = len(types)
	}
	if len(codes) < n {
		n = len(codes)
	}
	out := make([]Action, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, Action{Text: texts[i], Type: types[i], ActionCode: codes[i]})
	}
	return out
}

// TestClassifyTotality verifies that every finite action list yields a valid
// stage with a matching canonical description.
func TestClassifyTotality(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("stage is always one of the eight values", prop.ForAll(
		func(texts, types, codes []string) bool {
			s, desc := Classify(actionsFrom(texts, types, codes))
			return validStages[s] && desc == Description(s)
		},
		gen.SliceOf(gen.AnyString()),
		gen.SliceOf(gen.AlphaString()),
		gen.SliceOf(gen.NumString()),
	))

	properties.TestingRun(t)
}

// TestClassifyBecameLawPriority verifies that a became-law action anywhere in
// the list forces stage 100 regardless of the other actions.
func TestClassifyBecameLawPriority(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("became law always wins", prop.ForAll(
		func(texts []string, pos uint8) bool {
			actions := make([]Action, 0, len(texts)+1)
			for _, tx := range texts {
				actions = append(actions, Action{Text: tx})
			}
			i := 0
			if len(actions) > 0 {
				i = int(pos) % (len(actions) + 1)
			}
			actions = append(actions[:i:i], append([]Action{{Text: "Became Public Law No: 1-1"}}, actions[i:]...)...)
			s, _ := Classify(actions)
			return s == BecameLaw
		},
		gen.SliceOf(gen.AnyString()),
		gen.UInt8(),
	))

	properties.TestingRun(t)
}

// TestClassifySignedPriority verifies that signed forces 95 unless a
// became-law action also appears.
func TestClassifySignedPriority(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("signed wins over deferred flags", prop.ForAll(
		func(vetoed, toPresident, house, senate bool) bool {
			var actions []Action
			if vetoed {
				actions = append(actions, Action{Text: "Vetoed by President"})
			}
			if toPresident {
				actions = append(actions, Action{Text: "Presented to President"})
			}
			if house {
				actions = append(actions, Action{Text: "Passed House"})
			}
			if senate {
				actions = append(actions, Action{Text: "Passed Senate"})
			}
			actions = append(actions, Action{Text: "Signed by President"})
			s, _ := Classify(actions)
			return s == Signed
		},
		gen.Bool(), gen.Bool(), gen.Bool(), gen.Bool(),
	))

	properties.TestingRun(t)
}

// TestClassifyChamberResolution verifies the 60/80 resolution from the two
// chamber-passage flags when no higher signal is present.
func TestClassifyChamberResolution(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("both chambers 80, one chamber 60", prop.ForAll(
		func(house, senate bool) bool {
			var actions []Action
			if house {
				actions = append(actions, Action{Text: "Passed House"})
			}
			if senate {
				actions = append(actions, Action{Text: "Passed Senate"})
			}
			s, _ := Classify(actions)
			switch {
			case house && senate:
				return s == PassedBothChambers
			case house || senate:
				return s == PassedOneChamber
			default:
				return s == Introduced
			}
		},
		gen.Bool(), gen.Bool(),
	))

	properties.TestingRun(t)
}
