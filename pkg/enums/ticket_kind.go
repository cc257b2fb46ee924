package enums

import "fmt"

// TicketKind identifies the category of a purchasable ticket on a scheduled date.
type TicketKind string

const (
	TicketKindAdult           TicketKind = "adult"
	TicketKindChild           TicketKind = "child"
	TicketKindPerGroupOfThree TicketKind = "per_group_of_three"
	TicketKindPerGroupOfFive  TicketKind = "per_group_of_five"
	TicketKindPerGroupOfSeven TicketKind = "per_group_of_seven"
	TicketKindPerGroupOfTen   TicketKind = "per_group_of_ten"
)

var validTicketKinds = []TicketKind{
	TicketKindAdult,
	TicketKindChild,
	TicketKindPerGroupOfThree,
	TicketKindPerGroupOfFive,
	TicketKindPerGroupOfSeven,
	TicketKindPerGroupOfTen,
}

var ticketKindGroupSizes = map[TicketKind]int{
	TicketKindAdult:           1,
	TicketKindChild:           1,
	TicketKindPerGroupOfThree: 3,
	TicketKindPerGroupOfFive:  5,
	TicketKindPerGroupOfSeven: 7,
	TicketKindPerGroupOfTen:   10,
}

// String implements fmt.Stringer.
func (k TicketKind) String() string {
	return string(k)
}

// IsValid reports whether the value is a known TicketKind.
func (k TicketKind) IsValid() bool {
	for _, candidate := range validTicketKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// GroupSize returns how many travellers a single ticket of this kind admits.
// Unknown kinds admit nobody.
func (k TicketKind) GroupSize() int {
	return ticketKindGroupSizes[k]
}

// ParseTicketKind converts raw input into a TicketKind.
func ParseTicketKind(value string) (TicketKind, error) {
	for _, candidate := range validTicketKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid ticket kind %q", value)
}
