package ring

// Range is a half-open id interval (Lower, Upper]. Lower > Upper
// signals a wrap-around interval that crosses the origin of the ring.
type Range struct {
	Lower Id `json:"lower"`
	Upper Id `json:"upper"`
}

// NewRange builds a half-open interval (lower, upper].
func NewRange(lower, upper Id) Range {
	return Range{Lower: lower, Upper: upper}
}

// Contains reports whether x falls in (r.Lower, r.Upper].
func (r Range) Contains(x Id) bool {
	return InHalfOpen(x, r.Lower, r.Upper)
}

func (r Range) String() string {
	return "(" + r.Lower.String()[:8] + ", " + r.Upper.String()[:8] + "]"
}
