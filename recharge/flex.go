package recharge

import (
	"math"

	"github.com/darigovresearch/pastas/param"
)

// FlexModel : bucket model, an optional interception store feeding a
// root-zone store. Percolation is ks (S/srmax)^gamma, root-zone evaporation
// declines linearly below lp*srmax, and water above the root-zone capacity
// leaves as preferential flow. Recharge is percolation plus preferential flow.
type FlexModel struct {
	Interception    bool
	InitialFraction float64 // root-zone storage at t0 as a fraction of srmax
}

// NewFlexModel : FlexModel constructor
func NewFlexModel() *FlexModel { return &FlexModel{Interception: true, InitialFraction: 0.5} }

func (*FlexModel) Name() string { return "FlexModel" }

func (m *FlexModel) Params() []param.Spec {
	ps := []param.Spec{
		{Role: "srmax", Initial: 250, PMin: 1e-5, PMax: 1e3, Vary: true},
		{Role: "lp", Initial: 0.25, PMin: 1e-5, PMax: 1, Vary: false},
		{Role: "ks", Initial: 100, PMin: 1e-5, PMax: 1e4, Vary: true},
		{Role: "gamma", Initial: 2, PMin: 1e-5, PMax: 20, Vary: true},
		{Role: "kv", Initial: 1, PMin: 0.25, PMax: 2, Vary: false},
	}
	if m.Interception {
		ps = append(ps, param.Spec{Role: "simax", Initial: 2, PMin: 0, PMax: 10, Vary: false})
	}
	return ps
}

// Balance holds the storages (end of step, in input unit times days) and
// fluxes (rates) of a FlexModel run. Error is the largest absolute water
// balance error of any step.
type Balance struct {
	Si, Sr                 []float64
	Ei, Ea, Pe, Perc, Pref []float64
	Recharge               []float64
	Error                  float64
}

func newBalance(n int) *Balance {
	mk := func() []float64 { return make([]float64, n) }
	return &Balance{Si: mk(), Sr: mk(), Ei: mk(), Ea: mk(), Pe: mk(), Perc: mk(), Pref: mk(), Recharge: mk()}
}

func (b *Balance) gap(t int, si, sr float64) {
	b.Si[t], b.Sr[t] = si, sr
	for _, x := range [][]float64{b.Ei, b.Ea, b.Pe, b.Perc, b.Pref, b.Recharge} {
		x[t] = math.NaN()
	}
}

func (m *FlexModel) Simulate(prec, evap, p []float64, dt float64) []float64 {
	return m.Fluxes(prec, evap, p, dt).Recharge
}

// Fluxes : runs the model and returns the full state trajectory. A step with a
// missing input yields NaN fluxes and leaves the storages untouched.
func (m *FlexModel) Fluxes(prec, evap, p []float64, dt float64) *Balance {
	n := len(prec)
	b := newBalance(n)
	srmax, lp, ks, gam, kv := p[0], p[1], p[2], p[3], p[4]
	si := res{}
	if m.Interception {
		si.cap = p[5]
	}
	sr := res{sto: math.Min(math.Max(m.InitialFraction, 0), 1) * srmax, cap: srmax}

	for t := 0; t < n; t++ {
		if math.IsNaN(prec[t]) || math.IsNaN(evap[t]) {
			b.gap(t, si.sto, sr.sto)
			continue
		}
		pr, ep := math.Max(prec[t], 0)*dt, math.Max(evap[t], 0)*dt
		s0 := si.sto + sr.sto

		pe, ei := pr, 0.
		if m.Interception {
			pe = math.Max(si.overflow(pr), 0) // throughfall
			ei = ep + si.overflow(-ep)
		}

		ea := (ep - ei) * kv * math.Min(1, sr.sto/(lp*srmax))
		perc := ks * dt * math.Pow(sr.sto/srmax, gam)
		pref := 0.
		if d := sr.overflow(pe - ea - perc); d > 0 {
			pref = d
		} else if d < 0 {
			f := (ea + perc + d) / (ea + perc)
			ea *= f
			perc *= f
		}

		// water balance
		if wb := math.Abs(si.sto + sr.sto - s0 - (pr - ei - ea - perc - pref)); wb > b.Error {
			b.Error = wb
		}

		b.Si[t], b.Sr[t] = si.sto, sr.sto
		b.Ei[t], b.Ea[t], b.Pe[t] = ei/dt, ea/dt, pe/dt
		b.Perc[t], b.Pref[t] = perc/dt, pref/dt
		b.Recharge[t] = (perc + pref) / dt
	}
	return b
}
