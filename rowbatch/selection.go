package rowbatch

// Selection is a per-row keep/drop vector paired with a batch.
type Selection []bool

func NewSelection(n int, selected bool) Selection {
	s := make(Selection, n)
	if selected {
		for i := range s {
			s[i] = true
		}
	}
	return s
}

// Any reports whether at least one row is selected.
func (s Selection) Any() bool {
	for _, v := range s {
		if v {
			return true
		}
	}
	return false
}

func (s Selection) Count() int {
	n := 0
	for _, v := range s {
		if v {
			n++
		}
	}
	return n
}
