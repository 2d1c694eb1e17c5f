package forcing

import "time"

// Scaled returns a copy of s with every value multiplied by f, e.g. 1000 to
// go from m/d to mm/d or -1 to flip the sign of a pumping series.
func (s *Series) Scaled(f float64) *Series {
	o := &Series{Name: s.Name, Kind: s.Kind, T: make([]time.Time, len(s.T)), V: make([]float64, len(s.V))}
	copy(o.T, s.T)
	for i, v := range s.V {
		o.V[i] = v * f
	}
	return o
}
