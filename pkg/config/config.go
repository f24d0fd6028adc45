// Package config loads and validates the arm's static configuration: per
// joint limits and homing parameters, the kinematic chain's link geometry,
// and the gateway's transport settings (spec.md §3, §6).
package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/itohio/armctl/pkg/joint"
	"github.com/itohio/armctl/pkg/kinematics"
)

// JointConfig is the YAML-facing mirror of joint.Config; it exists so the
// wire format can use snake_case keys and plain Direction strings without
// joint.Config itself needing yaml struct tags for a concern only the
// config loader cares about.
type JointConfig struct {
	Name               string  `yaml:"name"`
	DeviceIndex        int     `yaml:"device_index"`
	StepPin            int     `yaml:"step_pin"`
	DirPin             int     `yaml:"dir_pin"`
	HomeSwitchPin      int     `yaml:"home_switch_pin"`
	StepsPerRev        int     `yaml:"steps_per_rev"`
	MaxSpeedDegPerS    float64 `yaml:"max_speed_deg_per_s"`
	MaxAccelDegPerS2   float64 `yaml:"max_accel_deg_per_s2"`
	HomingSpeedDegPerS float64 `yaml:"homing_speed_deg_per_s"`
	HomingDirection    string  `yaml:"homing_direction"`
	MinDeg             float64 `yaml:"min_deg"`
	MaxDeg             float64 `yaml:"max_deg"`
	ReadyPositionDeg   float64 `yaml:"ready_position_deg"`
	CalibrationOffsetDeg float64 `yaml:"calibration_offset_deg"`
}

// ToJointConfig converts the YAML mirror to the runtime joint.Config.
func (j JointConfig) ToJointConfig() (joint.Config, error) {
	dir := joint.Positive
	switch j.HomingDirection {
	case "", "positive":
		dir = joint.Positive
	case "negative":
		dir = joint.Negative
	default:
		return joint.Config{}, errors.Errorf("joint %s: unknown homing_direction %q", j.Name, j.HomingDirection)
	}
	return joint.Config{
		Name:                 j.Name,
		DeviceIndex:          j.DeviceIndex,
		StepPin:              j.StepPin,
		DirPin:               j.DirPin,
		HomeSwitchPin:        j.HomeSwitchPin,
		StepsPerRev:          j.StepsPerRev,
		MaxSpeedDegPerS:      j.MaxSpeedDegPerS,
		MaxAccelDegPerS2:     j.MaxAccelDegPerS2,
		HomingSpeedDegPerS:   j.HomingSpeedDegPerS,
		HomingDirection:      dir,
		MinDeg:               j.MinDeg,
		MaxDeg:               j.MaxDeg,
		ReadyPositionDeg:     j.ReadyPositionDeg,
		CalibrationOffsetDeg: j.CalibrationOffsetDeg,
	}, nil
}

// LinkConfig is one DH link's YAML-facing parameters, in degrees for
// ThetaOffsetDeg/AlphaDeg and millimeters for D/A.
type LinkConfig struct {
	ThetaOffsetDeg float64 `yaml:"theta_offset_deg"`
	AlphaDeg       float64 `yaml:"alpha_deg"`
	D              float64 `yaml:"d_mm"`
	A              float64 `yaml:"a_mm"`
}

// GeometryConfig mirrors kinematics.Geometry for YAML.
type GeometryConfig struct {
	A1 float64 `yaml:"a1_mm"`
	A2 float64 `yaml:"a2_mm"`
	A3 float64 `yaml:"a3_mm"`
	D1 float64 `yaml:"d1_mm"`
	D4 float64 `yaml:"d4_mm"`
	D6 float64 `yaml:"d6_mm"`
}

// GatewayConfig is the serial transport's connection settings.
type GatewayConfig struct {
	Port        string `yaml:"port"`
	BaudRate    int    `yaml:"baud_rate"`
	TimeoutMS   int    `yaml:"timeout_ms"`
}

// ArmConfig is the complete on-disk arm description.
type ArmConfig struct {
	Gateway  GatewayConfig  `yaml:"gateway"`
	Joints   [6]JointConfig `yaml:"joints"`
	Links    [6]LinkConfig  `yaml:"links"`
	Geometry GeometryConfig `yaml:"geometry"`
}

// Load reads and parses an ArmConfig from a YAML file.
func Load(path string) (ArmConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ArmConfig{}, errors.Wrapf(err, "reading config %s", path)
	}
	var cfg ArmConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return ArmConfig{}, errors.Wrapf(err, "parsing config %s", path)
	}
	return cfg, nil
}

// JointConfigs converts all 6 YAML joint entries to runtime joint.Config,
// validating each (spec.md §7: MisconfiguredJoint).
func (a ArmConfig) JointConfigs() ([6]joint.Config, error) {
	var out [6]joint.Config
	for i, jc := range a.Joints {
		rc, err := jc.ToJointConfig()
		if err != nil {
			return out, err
		}
		if err := rc.Validate(); err != nil {
			return out, err
		}
		out[i] = rc
	}
	return out, nil
}

// Chain builds the kinematics.Chain and Geometry this config describes.
func (a ArmConfig) Chain() (kinematics.Chain, kinematics.Geometry) {
	var links [6]kinematics.DHLink
	for i, l := range a.Links {
		links[i] = kinematics.DHLink{
			ThetaOffset: l.ThetaOffsetDeg * degToRad,
			Alpha:       l.AlphaDeg * degToRad,
			D:           l.D,
			A:           l.A,
		}
	}
	geo := kinematics.Geometry{
		A1: a.Geometry.A1,
		A2: a.Geometry.A2,
		A3: a.Geometry.A3,
		D1: a.Geometry.D1,
		D4: a.Geometry.D4,
		D6: a.Geometry.D6,
	}
	return kinematics.Chain{Links: links, Tool: kinematics.Identity()}, geo
}

// Limits builds a kinematics.Limits table from the 6 joint ranges, for use
// with kinematics.Chain.IK's range-validated retry.
func (a ArmConfig) Limits() kinematics.Limits {
	var l kinematics.Limits
	for i, jc := range a.Joints {
		l[i] = [2]float64{jc.MinDeg, jc.MaxDeg}
	}
	return l
}

const degToRad = 3.14159265358979323846 / 180.0
