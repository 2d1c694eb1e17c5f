package recharge

// res : simple storage bucket with capacity
type res struct {
	sto float64
	cap float64
}

// overflow : adds p to storage, keeps it within [0, cap] and returns what did
// not fit: the excess above cap (positive) or the unmet withdrawal (negative).
func (r *res) overflow(p float64) float64 {
	r.sto += p
	if r.sto < 0 {
		d := r.sto
		r.sto = 0.
		return d
	} else if r.sto > r.cap {
		d := r.sto - r.cap
		r.sto = r.cap
		return d
	}
	return 0.
}
