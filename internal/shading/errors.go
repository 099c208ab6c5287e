package shading

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
)

var (
	// ErrInvalidInput is returned when a coordinate, normal or time is NaN or infinite.
	ErrInvalidInput = errors.New("invalid input")
	// ErrConfiguration is returned when a ramp or parameter set cannot be used.
	ErrConfiguration = errors.New("configuration error")
)

func checkTime(time float64) error {
	if !finite(time) {
		return fmt.Errorf("%w: time %v is not finite", ErrInvalidInput, time)
	}
	return nil
}

func checkPoint(p mgl64.Vec2) error {
	if !finiteVec2(p) {
		return fmt.Errorf("%w: coordinate %v is not finite", ErrInvalidInput, p)
	}
	return nil
}
