package delivery

// DeliveryStatus represents the canonical, carrier-agnostic state of a shipment
type DeliveryStatus string

const (
	// StatusCreated indicates the shipment exists but has not been handed over
	StatusCreated DeliveryStatus = "CREATED"
	// StatusPickedUp indicates the carrier has collected the shipment
	StatusPickedUp DeliveryStatus = "PICKED_UP"
	// StatusInTransit indicates the shipment is moving through the carrier network
	StatusInTransit DeliveryStatus = "IN_TRANSIT"
	// StatusOutForDelivery indicates the shipment is on the last-mile vehicle
	StatusOutForDelivery DeliveryStatus = "OUT_FOR_DELIVERY"
	// StatusDelivered indicates the shipment reached the consignee
	StatusDelivered DeliveryStatus = "DELIVERED"
	// StatusRTOInitiated indicates the shipment is returning to origin
	StatusRTOInitiated DeliveryStatus = "RTO_INITIATED"
	// StatusRTODelivered indicates the return reached the origin
	StatusRTODelivered DeliveryStatus = "RTO_DELIVERED"
	// StatusCancelled indicates the shipment was cancelled
	StatusCancelled DeliveryStatus = "CANCELLED"
	// StatusLost indicates the carrier declared the shipment lost
	StatusLost DeliveryStatus = "LOST"
	// StatusException indicates a state that needs operator attention
	StatusException DeliveryStatus = "EXCEPTION"
)

// statusRanks orders the forward progression of the delivery lifecycle.
// Side-branch states (EXCEPTION, CANCELLED, LOST) have no rank; they are
// reachable from any non-terminal state.
var statusRanks = map[DeliveryStatus]int{
	StatusCreated:        10,
	StatusPickedUp:       20,
	StatusInTransit:      30,
	StatusOutForDelivery: 40,
	StatusDelivered:      50,
	StatusRTOInitiated:   60,
	StatusRTODelivered:   70,
}

// IsValid returns true if the status is a known canonical status
func (s DeliveryStatus) IsValid() bool {
	switch s {
	case StatusCreated, StatusPickedUp, StatusInTransit, StatusOutForDelivery,
		StatusDelivered, StatusRTOInitiated, StatusRTODelivered,
		StatusCancelled, StatusLost, StatusException:
		return true
	default:
		return false
	}
}

// String returns the string representation of DeliveryStatus
func (s DeliveryStatus) String() string {
	return string(s)
}

// Rank returns the forward-progression rank of the status and whether the
// status participates in the ranked progression at all.
func (s DeliveryStatus) Rank() (int, bool) {
	r, ok := statusRanks[s]
	return r, ok
}

// IsTerminal returns true if the status accepts no further transitions
// except into EXCEPTION.
func (s DeliveryStatus) IsTerminal() bool {
	switch s {
	case StatusDelivered, StatusCancelled, StatusRTODelivered, StatusLost:
		return true
	default:
		return false
	}
}

// IsSideBranch returns true for states reachable from any non-terminal state
func (s DeliveryStatus) IsSideBranch() bool {
	switch s {
	case StatusException, StatusCancelled, StatusLost:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether a transition from s to target is valid.
// Rules, in order:
//   - a repeat of the current status is a valid no-op (idempotent replay)
//   - terminal states accept only EXCEPTION
//   - EXCEPTION requires manual clearance; no automatic continuation
//   - side-branch states are reachable from any non-terminal state
//   - otherwise the target's rank must strictly exceed the current rank
func (s DeliveryStatus) CanTransitionTo(target DeliveryStatus) bool {
	if !target.IsValid() {
		return false
	}
	if target == s {
		return true
	}
	if s.IsTerminal() {
		return target == StatusException
	}
	if s == StatusException {
		return false
	}
	if target.IsSideBranch() {
		return true
	}
	currentRank, ok := s.Rank()
	if !ok {
		return false
	}
	targetRank, ok := target.Rank()
	if !ok {
		return false
	}
	return targetRank > currentRank
}

// IsNoOp reports whether applying target to s would be an idempotent replay
func (s DeliveryStatus) IsNoOp(target DeliveryStatus) bool {
	return s == target
}
