package cart

import (
	"encoding/json"

	pkgerrors "github.com/angelmondragon/tourbook-backend/pkg/errors"
)

// snapshotVersion guards the persisted layout.
const snapshotVersion = 1

// Snapshot is the persisted form of a cart.
type Snapshot struct {
	Version       int      `json:"version"`
	Lines         []Line   `json:"lines"`
	Selected      []string `json:"selected,omitempty"`
	PaymentTarget string   `json:"payment_target,omitempty"`
}

// Snapshot captures the cart for persistence. Selected ids follow cart order.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{Version: snapshotVersion, PaymentTarget: s.target}
	snap.Lines = make([]Line, 0, len(s.lines))
	for _, line := range s.lines {
		snap.Lines = append(snap.Lines, line.Clone())
		if _, ok := s.selected[line.TourScheduleID]; ok {
			snap.Selected = append(snap.Selected, line.TourScheduleID)
		}
	}
	return snap
}

// Restore replaces the cart with a snapshot. Totals are recomputed, invalid
// or duplicate lines are rejected, and selections or targets that reference
// no line are dropped. An expired target is dropped on its next read.
func (s *Store) Restore(snap Snapshot) error {
	if snap.Version != snapshotVersion {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "unsupported cart snapshot version %d", snap.Version)
	}

	lines := make([]Line, 0, len(snap.Lines))
	ids := make(map[string]struct{}, len(snap.Lines))
	for _, line := range snap.Lines {
		if err := validateLine(line); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "restore line "+line.TourScheduleID)
		}
		if _, dup := ids[line.TourScheduleID]; dup {
			return pkgerrors.Newf(pkgerrors.CodeValidation, "restore: duplicate line %s", line.TourScheduleID)
		}
		ids[line.TourScheduleID] = struct{}{}
		line = line.Clone()
		line.TotalPrice = TotalOf(line.Tickets)
		lines = append(lines, line)
	}

	selected := make(map[string]struct{}, len(snap.Selected))
	for _, id := range snap.Selected {
		if _, ok := ids[id]; ok {
			selected[id] = struct{}{}
		}
	}
	target := ""
	if _, ok := ids[snap.PaymentTarget]; ok {
		target = snap.PaymentTarget
	}

	s.mu.Lock()
	s.lines = lines
	s.selected = selected
	s.target = target
	s.mu.Unlock()

	s.notify(OpRestore)
	return nil
}

// MarshalSnapshot encodes the cart as JSON.
func (s *Store) MarshalSnapshot() ([]byte, error) {
	return json.Marshal(s.Snapshot())
}

// UnmarshalSnapshot decodes JSON produced by MarshalSnapshot into the cart.
func (s *Store) UnmarshalSnapshot(data []byte) error {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode cart snapshot")
	}
	return s.Restore(snap)
}
