package agent

import (
	"errors"
	"fmt"
	"time"
)

var ErrTunneling = errors.New("arrival tolerance is smaller than one step of travel")

// Tuning holds the controller gains and limits. Wheel speeds are in rad/s,
// distances in metres, angles in radians.
type Tuning struct {
	ArrivalTolerance float64 `mapstructure:"arrival_tolerance"`
	AngleTolerance   float64 `mapstructure:"angle_tolerance"`

	KpRot       float64 `mapstructure:"kp_rot"`
	MinRotSpeed float64 `mapstructure:"min_rot_speed"`
	MaxRotSpeed float64 `mapstructure:"max_rot_speed"`
	// Rotation commands below DeadBand are zeroed.
	DeadBand float64 `mapstructure:"dead_band"`

	KpMove        float64 `mapstructure:"kp_move"`
	CruiseSpeed   float64 `mapstructure:"cruise_speed"`
	ApproachSpeed float64 `mapstructure:"approach_speed"`
	RampGain      float64 `mapstructure:"ramp_gain"`
	RampCap       float64 `mapstructure:"ramp_cap"`
	// Heading correction is skipped inside InnerRadius; cruise speed is used outside OuterRadius.
	InnerRadius float64 `mapstructure:"inner_radius"`
	OuterRadius float64 `mapstructure:"outer_radius"`

	WheelRadius float64 `mapstructure:"wheel_radius"`
}

func DefaultTuning() Tuning {
	return Tuning{
		ArrivalTolerance: 0.06,
		AngleTolerance:   0.04,
		KpRot:            1.5,
		MinRotSpeed:      0.1,
		MaxRotSpeed:      2.0,
		DeadBand:         0.01,
		KpMove:           3.0,
		CruiseSpeed:      6.0,
		ApproachSpeed:    0.5,
		RampGain:         5.0,
		RampCap:          2.0,
		InnerRadius:      0.20,
		OuterRadius:      0.40,
		WheelRadius:      0.02,
	}
}

// MaxLinearSpeed is the fastest the body can travel forward, in m/s.
func (t Tuning) MaxLinearSpeed() float64 {
	return max(t.CruiseSpeed, t.RampCap, t.ApproachSpeed) * t.WheelRadius
}

// Validate checks the gains and that a body at full speed cannot cross the
// arrival band between two samples taken step apart.
func (t Tuning) Validate(step time.Duration) error {
	switch {
	case step <= 0:
		return fmt.Errorf("step must be positive, got %s", step)
	case t.ArrivalTolerance <= 0 || t.AngleTolerance <= 0:
		return fmt.Errorf("tolerances must be positive")
	case t.WheelRadius <= 0:
		return fmt.Errorf("wheel radius must be positive")
	case t.MinRotSpeed > t.MaxRotSpeed:
		return fmt.Errorf("min rotation speed %.3f above max %.3f", t.MinRotSpeed, t.MaxRotSpeed)
	case t.DeadBand >= t.KpRot*t.AngleTolerance:
		return fmt.Errorf("dead band %.3f swallows every rotation command above the angle tolerance", t.DeadBand)
	case t.ApproachSpeed <= 0:
		return fmt.Errorf("approach speed must be positive, got %.3f", t.ApproachSpeed)
	case t.ApproachSpeed > t.RampCap:
		return fmt.Errorf("approach speed %.3f above ramp cap %.3f", t.ApproachSpeed, t.RampCap)
	case t.RampCap >= t.CruiseSpeed:
		return fmt.Errorf("ramp cap %.3f not below cruise speed %.3f", t.RampCap, t.CruiseSpeed)
	case t.InnerRadius > t.OuterRadius:
		return fmt.Errorf("inner radius %.3f outside outer radius %.3f", t.InnerRadius, t.OuterRadius)
	}
	travel := t.MaxLinearSpeed() * step.Seconds()
	if travel >= t.ArrivalTolerance {
		return fmt.Errorf("%w: %.4fm per step, tolerance %.4fm", ErrTunneling, travel, t.ArrivalTolerance)
	}
	return nil
}
