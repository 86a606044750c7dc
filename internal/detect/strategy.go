package detect

import "context"

// Strategy probes one evidence source for installed components.
//
// Implementations must not return errors for partial failures: internal
// problems are logged by the strategy itself and whatever candidates could
// be confirmed are returned. A nil or empty slice simply means the source
// had no evidence for the requested targets.
type Strategy interface {
	// Name reports which detection method this strategy implements.
	Name() Method

	// Probe inspects the evidence source for the given logical component
	// names. An empty targets slice means "everything the source knows
	// about". Probe must honor ctx cancellation and deadlines.
	Probe(ctx context.Context, targets []string) []Candidate
}
