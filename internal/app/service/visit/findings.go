package visit

import (
	"strings"

	"github.com/fatflowers/autoinspect/pkg/apperr"
	"github.com/fatflowers/autoinspect/pkg/types"
)

// System is one entry of the fixed inspection catalogue.
type System struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

var Catalogue = []System{
	{Key: "engine", Name: "Engine"},
	{Key: "transmission", Name: "Transmission"},
	{Key: "brakes", Name: "Brakes"},
	{Key: "suspension", Name: "Suspension"},
	{Key: "steering", Name: "Steering"},
	{Key: "tires", Name: "Tires"},
	{Key: "battery", Name: "Battery"},
	{Key: "electrical", Name: "Electrical"},
	{Key: "lights", Name: "Lights"},
	{Key: "cooling", Name: "Cooling System"},
	{Key: "exhaust", Name: "Exhaust"},
	{Key: "fluids", Name: "Fluids"},
	{Key: "hvac", Name: "Air Conditioning"},
	{Key: "wipers", Name: "Wipers"},
	{Key: "body", Name: "Body & Paint"},
}

func LookupSystem(key string) (System, bool) {
	key = strings.ToLower(strings.TrimSpace(key))
	for _, s := range Catalogue {
		if s.Key == key {
			return s, true
		}
	}
	return System{}, false
}

// NormalizeFindings validates findings against the catalogue and returns them
// with canonical system keys and trimmed notes, in catalogue order.
func NormalizeFindings(in []types.SystemFinding) ([]types.SystemFinding, error) {
	byKey := make(map[string]types.SystemFinding, len(in))
	for _, f := range in {
		sys, ok := LookupSystem(f.System)
		if !ok {
			return nil, apperr.UnknownSystem.Withf("unknown vehicle system %q", f.System)
		}
		if !f.Status.Valid() {
			return nil, apperr.InvalidFindingStatus.Withf("invalid status %q for %s", f.Status, sys.Key)
		}
		if _, dup := byKey[sys.Key]; dup {
			return nil, apperr.InvalidArgument.Withf("system %s reported twice", sys.Key)
		}
		byKey[sys.Key] = types.SystemFinding{System: sys.Key, Status: f.Status, Note: strings.TrimSpace(f.Note)}
	}
	out := make([]types.SystemFinding, 0, len(byKey))
	for _, s := range Catalogue {
		if f, ok := byKey[s.Key]; ok {
			out = append(out, f)
		}
	}
	return out, nil
}

// CheckNotes enforces that every finding needing work says what is needed.
func CheckNotes(findings []types.SystemFinding) error {
	for _, f := range findings {
		if f.Status.RequiresNote() && f.Note == "" {
			return apperr.FindingNoteRequired.Withf("%s is %s but has no note", f.System, f.Status)
		}
	}
	return nil
}

// RenderFindings is the display text of a visit: one "System: STATUS - note"
// line per finding followed by the narrative.
func RenderFindings(findings []types.SystemFinding, narrative string) string {
	var b strings.Builder
	for _, f := range findings {
		name := f.System
		if sys, ok := LookupSystem(f.System); ok {
			name = sys.Name
		}
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(strings.ToUpper(strings.ReplaceAll(string(f.Status), "_", " ")))
		if f.Note != "" {
			b.WriteString(" - ")
			b.WriteString(f.Note)
		}
		b.WriteByte('\n')
	}
	if narrative = strings.TrimSpace(narrative); narrative != "" {
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(narrative)
	}
	return strings.TrimRight(b.String(), "\n")
}
