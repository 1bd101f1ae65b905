// Package matching proposes contractors for a project once it opens for
// bids. Matching is best-effort: its failures are logged, never returned to
// the homeowner who submitted the project.
package matching

import "strings"

// skillKeyword maps a phrase found in assessment recommendations to the
// contractor skill tag it implies.
type skillKeyword struct {
	phrase string
	skill  string
}

// vocabulary is checked in order; the first phrase that implies a skill
// decides its position in the result.
var vocabulary = []skillKeyword{
	{"ramp", "Ramp Installation"},
	{"grab bar", "Grab Bar Installation"},
	{"handrail", "Handrail Installation"},
	{"railing", "Handrail Installation"},
	{"stair lift", "Stair Lift Installation"},
	{"stairlift", "Stair Lift Installation"},
	{"widen", "Doorway Widening"},
	{"doorway", "Doorway Widening"},
	{"walk-in shower", "Bathroom Modification"},
	{"roll-in shower", "Bathroom Modification"},
	{"shower", "Bathroom Modification"},
	{"bathtub", "Bathroom Modification"},
	{"toilet", "Bathroom Modification"},
	{"lever", "Hardware Retrofit"},
	{"door handle", "Hardware Retrofit"},
	{"lighting", "Electrical"},
	{"outlet", "Electrical"},
	{"light switch", "Electrical"},
	{"flooring", "Flooring"},
	{"non-slip", "Flooring"},
	{"threshold", "Flooring"},
	{"countertop", "Kitchen Modification"},
	{"cabinet", "Kitchen Modification"},
	{"elevator", "Vertical Platform Lift"},
	{"platform lift", "Vertical Platform Lift"},
}

// RequiredSkills derives contractor skill tags from free-text
// recommendation details. Matching is a case-insensitive substring test;
// each skill appears once.
func RequiredSkills(details []string) []string {
	var skills []string
	seen := make(map[string]bool)
	for _, kw := range vocabulary {
		if seen[kw.skill] {
			continue
		}
		for _, d := range details {
			if strings.Contains(strings.ToLower(d), kw.phrase) {
				seen[kw.skill] = true
				skills = append(skills, kw.skill)
				break
			}
		}
	}
	return skills
}
