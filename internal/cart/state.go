package cart

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Line is a single product entry in the session cart. UnitPrice is the
// snapshot taken when the line was first added; later catalog repricing
// never touches an existing line.
type Line struct {
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"price"`
}

// State is the serialized cart blob stored per session. Lines are keyed by
// product ID so the same product always collapses onto one line.
type State struct {
	Lines    map[string]Line `json:"lines"`
	CouponID *uuid.UUID      `json:"coupon_id,omitempty"`
}

// NewState returns an empty cart state.
func NewState() *State {
	return &State{Lines: map[string]Line{}}
}

// DecodeState parses a stored cart blob.
func DecodeState(raw []byte) (*State, error) {
	var state State
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, err
	}
	if state.Lines == nil {
		state.Lines = map[string]Line{}
	}
	return &state, nil
}

// Encode serializes the state for storage.
func (s *State) Encode() ([]byte, error) {
	return json.Marshal(s)
}

// ItemCount sums the quantities across all lines.
func (s *State) ItemCount() int {
	count := 0
	for _, line := range s.Lines {
		count += line.Quantity
	}
	return count
}

// IsEmpty reports whether the cart holds no lines.
func (s *State) IsEmpty() bool {
	return len(s.Lines) == 0
}

// Total sums price times quantity across all lines.
func (s *State) Total() decimal.Decimal {
	total := decimal.Zero
	for _, line := range s.Lines {
		total = total.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	return total
}
