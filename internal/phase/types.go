// Package phase classifies work packets into generation phases and
// defines the strict ordering used to sequence packets within a project.
package phase

// Phase is a generation phase. Phases impose a total order on the
// packets of a project: scaffolding is generated before shared code,
// shared code before features, and so on.
type Phase string

const (
	// PhaseScaffold covers project setup, initial structure, and configuration.
	PhaseScaffold Phase = "scaffold"

	// PhaseShared covers shared utilities, types, and common modules.
	PhaseShared Phase = "shared"

	// PhaseFeatures covers feature work; this is the default phase.
	PhaseFeatures Phase = "features"

	// PhaseIntegration covers navigation, routing, and layout wiring.
	PhaseIntegration Phase = "integration"

	// PhasePolish covers tests and documentation.
	PhasePolish Phase = "polish"
)

// phaseOrder maps each phase to its position in the execution order.
var phaseOrder = map[Phase]int{
	PhaseScaffold:    0,
	PhaseShared:      1,
	PhaseFeatures:    2,
	PhaseIntegration: 3,
	PhasePolish:      4,
}

// String returns the string representation of the phase.
func (p Phase) String() string {
	return string(p)
}

// Order returns the phase's position in the execution order. Unknown
// phases sort after every known phase.
func (p Phase) Order() int {
	if o, ok := phaseOrder[p]; ok {
		return o
	}
	return len(phaseOrder)
}

// All returns every phase in execution order.
func All() []Phase {
	return []Phase{PhaseScaffold, PhaseShared, PhaseFeatures, PhaseIntegration, PhasePolish}
}
