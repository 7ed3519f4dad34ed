// Package spray implements the per-particle spray kernel: sampling an
// emission angle and distance, projecting the hit point onto the canvas and
// weighting it by distance falloff.
package spray

import (
	"errors"
	"fmt"
	"math"

	"github.com/pthm-cable/spray/config"
	"github.com/pthm-cable/spray/nozzle"
	"github.com/pthm-cable/spray/rng"
)

// ErrParams is wrapped by kernel construction errors.
var ErrParams = errors.New("spray: invalid kernel parameters")

// Params are the tunable physical spray parameters.
type Params struct {
	Pressure      float64 // intensity deposited at zero distance
	ConeHalfAngle float64 // radians
	MaxDistance   float64 // world units
	// Softness is carried for the exporter's feathering pass. The kernel
	// does not read it.
	Softness float64
}

// Projection maps the world-space wall rectangle onto normalized canvas space.
type Projection struct {
	MinX, MaxX float64
	MinY, MaxY float64
}

// Normalize returns (u, v) in [0,1) for points inside the rectangle.
func (p Projection) Normalize(x, y float64) (u, v float64) {
	return (x - p.MinX) / (p.MaxX - p.MinX), (y - p.MinY) / (p.MaxY - p.MinY)
}

// Kernel holds everything a single invocation reads besides the slot state
// and the nozzle pose. It is immutable and shared by all slots.
type Kernel struct {
	Params     Params
	Projection Projection
	Width      int
	Height     int
	Margin     int
}

// Deposit is the outcome of one kernel invocation.
type Deposit struct {
	Index     int     // row-major cell index, valid when Hit
	PX, PY    int     // pixel coordinates
	Distance  float64 // sampled travel distance
	Intensity float64 // in [0, Pressure]
	Hit       bool    // false when the sample was discarded
}

// NewKernel validates parameters and builds a kernel.
func NewKernel(p Params, proj Projection, width, height, margin int) (*Kernel, error) {
	var errs []error
	if !(p.Pressure > 0) {
		errs = append(errs, fmt.Errorf("pressure must be > 0, got %v", p.Pressure))
	}
	if !(p.ConeHalfAngle > 0) {
		errs = append(errs, fmt.Errorf("cone half-angle must be > 0, got %v", p.ConeHalfAngle))
	}
	if !(p.MaxDistance > 0) {
		errs = append(errs, fmt.Errorf("max distance must be > 0, got %v", p.MaxDistance))
	}
	if !(p.Softness > 0) {
		errs = append(errs, fmt.Errorf("softness must be > 0, got %v", p.Softness))
	}
	if width <= 0 || height <= 0 {
		errs = append(errs, fmt.Errorf("canvas must be positive, got %dx%d", width, height))
	}
	if margin < 0 {
		errs = append(errs, fmt.Errorf("margin must not be negative, got %d", margin))
	}
	if !(proj.MaxX > proj.MinX) || !(proj.MaxY > proj.MinY) {
		errs = append(errs, fmt.Errorf("projection rectangle is empty: %+v", proj))
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrParams, errors.Join(errs...))
	}
	return &Kernel{Params: p, Projection: proj, Width: width, Height: height, Margin: margin}, nil
}

// NewKernelFromConfig builds a kernel from the spray, projection and canvas sections.
func NewKernelFromConfig(cfg *config.Config) (*Kernel, error) {
	return NewKernel(
		Params{
			Pressure:      cfg.Spray.Pressure,
			ConeHalfAngle: cfg.Spray.ConeHalfAngle,
			MaxDistance:   cfg.Spray.MaxDistance,
			Softness:      cfg.Spray.Softness,
		},
		Projection{
			MinX: cfg.Projection.MinX,
			MaxX: cfg.Projection.MaxX,
			MinY: cfg.Projection.MinY,
			MaxY: cfg.Projection.MaxY,
		},
		cfg.Canvas.Width, cfg.Canvas.Height, cfg.Canvas.Margin,
	)
}

// Falloff is the linear distance fade: 1 at the nozzle, 0 at maxDistance and beyond.
func Falloff(distance, maxDistance float64) float64 {
	return max(0, 1-distance/maxDistance)
}

// Angle maps a uniform sample in [0,1) to [-ConeHalfAngle, +ConeHalfAngle).
func (k *Kernel) Angle(u float64) float64 {
	return (u - 0.5) * 2 * k.Params.ConeHalfAngle
}

// Distance maps a uniform sample in [0,1) to [0, MaxDistance).
func (k *Kernel) Distance(u float64) float64 {
	return u * k.Params.MaxDistance
}

// Emit runs one invocation for a slot: two draws from its state, then Deposit.
// The advanced state is returned for the caller to store back.
func (k *Kernel) Emit(state rng.State, pose nozzle.Pose) (Deposit, rng.State) {
	ua, state := rng.Sample(state)
	ud, state := rng.Sample(state)
	return k.Deposit(k.Angle(ua), k.Distance(ud), pose), state
}

// Deposit projects an emission at (angle, distance) from the nozzle and
// computes the intensity it would add. Samples landing within Margin pixels
// of an edge are discarded.
func (k *Kernel) Deposit(angle, distance float64, pose nozzle.Pose) Deposit {
	d := Deposit{Distance: distance}

	x := pose.X + distance*math.Cos(angle)
	y := pose.Y + distance*math.Sin(angle)

	u, v := k.Projection.Normalize(x, y)
	if !(u >= 0 && u < 1 && v >= 0 && v < 1) {
		return d
	}

	d.PX = int(u * float64(k.Width))
	d.PY = int(v * float64(k.Height))
	if d.PX <= k.Margin || d.PX >= k.Width-k.Margin ||
		d.PY <= k.Margin || d.PY >= k.Height-k.Margin {
		return d
	}

	d.Index = d.PY*k.Width + d.PX
	d.Intensity = k.Params.Pressure * Falloff(distance, k.Params.MaxDistance)
	d.Hit = true
	return d
}
