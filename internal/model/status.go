package model

// TipStatus is the lifecycle state of a tip.
type TipStatus string

const (
	StatusActive        TipStatus = "ACTIVE"
	StatusTarget1Hit    TipStatus = "TARGET_1_HIT"
	StatusTarget2Hit    TipStatus = "TARGET_2_HIT"
	StatusTarget3Hit    TipStatus = "TARGET_3_HIT"
	StatusAllTargetsHit TipStatus = "ALL_TARGETS_HIT"
	StatusStopLossHit   TipStatus = "STOPLOSS_HIT"
	StatusExpired       TipStatus = "EXPIRED"
)

// transitions is the full transition table of the tip lifecycle. A status
// missing from the map is terminal.
var transitions = map[TipStatus][]TipStatus{
	StatusActive:     {StatusTarget1Hit, StatusAllTargetsHit, StatusStopLossHit, StatusExpired},
	StatusTarget1Hit: {StatusTarget2Hit, StatusAllTargetsHit, StatusStopLossHit, StatusExpired},
	StatusTarget2Hit: {StatusTarget3Hit, StatusAllTargetsHit, StatusStopLossHit, StatusExpired},
	StatusTarget3Hit: {StatusAllTargetsHit, StatusStopLossHit, StatusExpired},
}

// Terminal reports whether no further transition can occur from s.
func (s TipStatus) Terminal() bool {
	_, open := transitions[s]
	return !open
}

// CanTransition reports whether the move from s to next is allowed by the
// transition table.
func (s TipStatus) CanTransition(next TipStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Hit reports whether s belongs to the target-hit family. For resolved tips
// this distinguishes a win from a stop-loss or expiry.
func (s TipStatus) Hit() bool {
	switch s {
	case StatusTarget1Hit, StatusTarget2Hit, StatusTarget3Hit, StatusAllTargetsHit:
		return true
	}
	return false
}

// TerminalStatuses lists every terminal status, in a stable order.
func TerminalStatuses() []TipStatus {
	return []TipStatus{StatusAllTargetsHit, StatusStopLossHit, StatusExpired}
}
