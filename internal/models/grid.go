package models

// CellStatus is the derived aggregate state of a (branch, week) grid cell.
// It is never persisted; the projector recomputes it from the visit store.
type CellStatus string

const (
	CellStatusNone      CellStatus = "none"
	CellStatusPlanned   CellStatus = "planned"
	CellStatusPartial   CellStatus = "partial"
	CellStatusDone      CellStatus = "done"
	CellStatusEmergency CellStatus = "emergency"
)

// DeriveCellStatus evaluates the status precedence over the visits matched to
// a cell. Emergency dominates regardless of completion; otherwise completion
// counts decide between done, partial and planned.
func DeriveCellStatus(visits []Visit) CellStatus {
	if len(visits) == 0 {
		return CellStatusNone
	}
	completed := 0
	for _, v := range visits {
		if v.Type == VisitTypeEmergency {
			return CellStatusEmergency
		}
		if v.Status == VisitStatusCompleted {
			completed++
		}
	}
	switch {
	case completed == len(visits):
		return CellStatusDone
	case completed > 0:
		return CellStatusPartial
	default:
		return CellStatusPlanned
	}
}
