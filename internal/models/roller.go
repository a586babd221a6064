package models

import "math/rand/v2"

// Roller is the uniform random source in [0,1) used by asteroid generation
// and yield simulation.
type Roller interface {
	Float64() float64
}

type randRoller struct{}

func (randRoller) Float64() float64 {
	return rand.Float64()
}

// NewRoller returns a Roller backed by the runtime's shared generator. It
// is safe for concurrent use.
func NewRoller() Roller {
	return randRoller{}
}
