package resolver

import "strings"

// Stage is a step of a single resolution. Stages are only ever entered in
// declaration order.
type Stage int

const (
	StageRaw Stage = iota
	StageUnpacked
	StageDecoded
	StageDecrypted
	StageManifestLocated
	StageVariantsResolved
)

var stageNames = [...]string{
	StageRaw:              "RAW",
	StageUnpacked:         "UNPACKED",
	StageDecoded:          "DECODED",
	StageDecrypted:        "DECRYPTED",
	StageManifestLocated:  "MANIFEST_LOCATED",
	StageVariantsResolved: "VARIANTS_RESOLVED",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "UNKNOWN"
	}
	return stageNames[s]
}

// Trace records how far a resolution got. Resolve never returns an error;
// Trace.Err carries the reason it stopped early, for debugging.
type Trace struct {
	Locator string
	Stages  []Stage

	// Text is the payload after unpacking, transforms and decryption
	Text     string
	MediaURL string
	Err      error
}

// Last returns the furthest stage reached
func (t Trace) Last() Stage {
	if len(t.Stages) == 0 {
		return StageRaw
	}
	return t.Stages[len(t.Stages)-1]
}

// Reached reports whether s was entered
func (t Trace) Reached(s Stage) bool {
	for _, st := range t.Stages {
		if st == s {
			return true
		}
	}
	return false
}

func (t Trace) String() string {
	names := make([]string, len(t.Stages))
	for i, s := range t.Stages {
		names[i] = s.String()
	}
	return strings.Join(names, " -> ")
}

func (t *Trace) enter(s Stage) {
	t.Stages = append(t.Stages, s)
}
