package rfunc

import "github.com/rotisserie/eris"

// Names lists the families known to New.
var Names = []string{
	"Exponential", "Gamma", "Hantush", "FourParam", "DoubleExponential", "Polder", "One", "HantushWellModel",
}

// New builds a family by name.
func New(name string, s Settings) (Family, error) {
	switch name {
	case "Exponential":
		return NewExponential(s), nil
	case "Gamma":
		return NewGamma(s), nil
	case "Hantush":
		return NewHantush(s), nil
	case "FourParam":
		return NewFourParam(s), nil
	case "DoubleExponential":
		return NewDoubleExponential(s), nil
	case "Polder":
		return NewPolder(s), nil
	case "One":
		return NewOne(s), nil
	case "HantushWellModel":
		return NewHantushWellModel(s), nil
	}
	return nil, eris.Wrapf(ErrUnknown, "rfunc: %q", name)
}

var directionNames = map[Direction]string{Increasing: "up", Decreasing: "down", Either: "either"}

func (d Direction) String() string { return directionNames[d] }

func ParseDirection(s string) (Direction, error) {
	for k, n := range directionNames {
		if n == s {
			return k, nil
		}
	}
	return 0, eris.Errorf("rfunc: direction %q", s)
}
