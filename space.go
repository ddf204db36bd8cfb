package spinbath

import (
	"fmt"

	"github.com/fumin/spinbath/mat"
)

// Positions of the fixed subsystems in a Space.
const (
	electronIndex = 0
	nucleusIndex  = 1
)

// neighborIndex returns the position of the k-th neighbor in a Space.
func neighborIndex(k int) int { return 2 + k }

type Subsystem struct {
	Label string
	Dim   int
}

// Space is an ordered tensor product of subsystems.
// The order is electron, ion nucleus, then neighbors in input order, and is
// the same for every operator embedded into it.
type Space struct {
	subsystems []Subsystem
}

func NewSpace(subsystems ...Subsystem) Space {
	return Space{subsystems: append([]Subsystem(nil), subsystems...)}
}

// Dim is the product of the subsystem dimensions.
func (sp Space) Dim() int {
	d := 1
	for _, s := range sp.subsystems {
		d *= s.Dim
	}
	return d
}

func (sp Space) Len() int { return len(sp.subsystems) }

func (sp Space) Subsystems() []Subsystem {
	return append([]Subsystem(nil), sp.subsystems...)
}

// Scoped returns the space made of the first n subsystems.
func (sp Space) Scoped(n int) Space {
	if n < 0 || n > len(sp.subsystems) {
		panic(fmt.Sprintf("%d %d", n, len(sp.subsystems)))
	}
	return NewSpace(sp.subsystems[:n]...)
}

// Embed returns op acting on subsystem idx and the identity elsewhere.
func (sp Space) Embed(op *mat.COO, idx int) *mat.COO {
	return sp.embed(map[int]*mat.COO{idx: op})
}

// EmbedPair returns a⊗b with a acting on subsystem ia, b on subsystem ib and
// the identity elsewhere.
func (sp Space) EmbedPair(a *mat.COO, ia int, b *mat.COO, ib int) *mat.COO {
	if ia == ib {
		panic(fmt.Sprintf("same subsystem %d", ia))
	}
	return sp.embed(map[int]*mat.COO{ia: a, ib: b})
}

func (sp Space) embed(ops map[int]*mat.COO) *mat.COO {
	for idx, op := range ops {
		if idx < 0 || idx >= len(sp.subsystems) {
			panic(fmt.Sprintf("subsystem %d out of %d", idx, len(sp.subsystems)))
		}
		d := sp.subsystems[idx].Dim
		if op.Rows() != d || op.Cols() != d {
			panic(fmt.Sprintf("%s expects %dx%d, got %dx%d", sp.subsystems[idx].Label, d, d, op.Rows(), op.Cols()))
		}
	}

	system := mat.COOZeros(1, 1)
	system.Scalar(1)
	for i, s := range sp.subsystems {
		switch op, ok := ops[i]; {
		case ok:
			system.Kron(op)
		default:
			system.Kron(mat.COOIdentity(s.Dim))
		}
	}
	return system
}
