package event

// History is an immutable, ordered view of records in store order.
// Callers must not modify the elements.
type History []Record

// Previous returns the most recent record before r (in store order) that
// shares r's source and attribute.
//
// r is located by its sequence number; records not present in h have no
// previous record.
func (h History) Previous(r Record) (Record, bool) {
	i := h.indexOf(r.Seq)
	if i < 0 {
		return Record{}, false
	}
	for j := i - 1; j >= 0; j-- {
		if h[j].SameStream(r) {
			return h[j], true
		}
	}
	return Record{}, false
}

// First reports whether r is the first record of its source and attribute in h.
func (h History) First(r Record) bool {
	if h.indexOf(r.Seq) < 0 {
		return false
	}
	_, ok := h.Previous(r)
	return !ok
}

// Filter returns the records for which keep returns true, in order.
func (h History) Filter(keep func(Record) bool) History {
	var out History
	for _, r := range h {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

// Last returns the final record, if any.
func (h History) Last() (Record, bool) {
	if len(h) == 0 {
		return Record{}, false
	}
	return h[len(h)-1], true
}

// indexOf finds the position of seq. Sequence numbers are strictly increasing
// in store order, so a binary search suffices.
func (h History) indexOf(seq int64) int {
	lo, hi := 0, len(h)
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if h[mid].Seq < seq {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < len(h) && h[lo].Seq == seq {
		return lo
	}
	return -1
}
