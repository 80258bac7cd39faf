package lifecycle

import "fmt"

// phasePair is the ordered pre/post phase pair for one operation.
type phasePair struct {
	pre  Phase
	post Phase
}

// operationPhases is the fixed operation-to-phases table. It is never
// extended at runtime.
var operationPhases = map[Operation]phasePair{
	OperationInstall:  {pre: PhasePreInstall, post: PhasePostInstall},
	OperationUpgrade:  {pre: PhasePreUpgrade, post: PhasePostUpgrade},
	OperationDelete:   {pre: PhasePreDelete, post: PhasePostDelete},
	OperationRollback: {pre: PhasePreRollback, post: PhasePostRollback},
}

// PhasesFor returns the ordered (pre, post) phase pair for an operation.
// Operation is a closed enumeration, so the failure path exists only as a
// defensive check against values smuggled in through conversion.
func PhasesFor(op Operation) (pre Phase, post Phase, err error) {
	pair, ok := operationPhases[op]
	if !ok {
		return "", "", NewPermanentError(fmt.Sprintf("unknown operation: %s", op), nil).
			WithCode(ErrCodeUnknownOperation)
	}
	return pair.pre, pair.post, nil
}
