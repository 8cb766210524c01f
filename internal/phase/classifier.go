package phase

import (
	"strings"

	"github.com/gobwas/glob"
)

// Classifier maps a packet's title and description to a generation
// phase. Implementations must be pure: no side effects, no failure
// mode, and the same input always classifies to the same phase.
type Classifier interface {
	Classify(title, description string) Phase
}

// rule pairs a phase with the glob patterns that select it. Patterns
// are matched against the lowercased title and description.
type rule struct {
	phase    Phase
	patterns []glob.Glob
}

// KeywordClassifier classifies packets by ordered keyword rules. The
// first rule with a matching pattern wins; packets matching no rule
// fall through to the features phase.
type KeywordClassifier struct {
	rules []rule
}

// defaultRules are the patterns each phase is recognized by, in
// priority order. Scaffold outranks shared so that "initial shared
// setup" lands in scaffold.
var defaultRules = []struct {
	phase    Phase
	patterns []string
}{
	{PhaseScaffold, []string{"*setup*", "*initial*", "*scaffold*", "*config*", "*boilerplate*"}},
	{PhaseShared, []string{"*shared*", "*utility*", "*utilities*", "*util*", "*types*", "*common*", "*helper*"}},
	{PhaseIntegration, []string{"*navigation*", "*routing*", "*router*", "*layout*", "*integrat*", "*wire*"}},
	{PhasePolish, []string{"*test*", "*documentation*", "*docs*", "*readme*", "*cleanup*", "*polish*"}},
}

// NewKeywordClassifier creates a classifier with the default rule set.
func NewKeywordClassifier() *KeywordClassifier {
	c := &KeywordClassifier{}
	for _, dr := range defaultRules {
		r := rule{phase: dr.phase}
		for _, p := range dr.patterns {
			r.patterns = append(r.patterns, glob.MustCompile(p))
		}
		c.rules = append(c.rules, r)
	}
	return c
}

// Classify returns the phase for the given title and description.
// Matching is case-insensitive over the concatenated text.
func (c *KeywordClassifier) Classify(title, description string) Phase {
	text := strings.ToLower(title + " " + description)
	for _, r := range c.rules {
		for _, g := range r.patterns {
			if g.Match(text) {
				return r.phase
			}
		}
	}
	return PhaseFeatures
}

// Static is a Classifier that returns a fixed phase for every packet.
// Useful for targeting a single phase and for deterministic tests.
type Static struct {
	Phase Phase
}

// Classify returns the fixed phase.
func (s Static) Classify(title, description string) Phase {
	return s.Phase
}
