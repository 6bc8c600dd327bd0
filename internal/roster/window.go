package roster

// Slot sentinel values returned by MatchSlot.
const (
	// SlotNone means the session is still further out than the longest offset.
	SlotNone = -1
	// SlotPassed means the session start is already behind "now".
	SlotPassed = -2
)

// MatchSlot classifies the remaining hours until a session against the
// configured offsets (sorted descending). The matched slot is the smallest
// offset still >= the remaining hours; thresholds are inclusive and the
// descending evaluation order is the documented tie-break, so at most one
// slot ever matches.
func MatchSlot(remainingHours float64, offsets []int) int {
	if remainingHours < 0 {
		return SlotPassed
	}
	if len(offsets) == 0 || remainingHours > float64(offsets[0]) {
		return SlotNone
	}
	matched := SlotNone
	for i, offset := range offsets {
		if remainingHours <= float64(offset) {
			matched = i
		}
	}
	return matched
}
