package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
gateway:
  port: /dev/ttyUSB0
  baud_rate: 115200
  timeout_ms: 500
joints:
  - {name: j1, device_index: 0, step_pin: 2, dir_pin: 3, home_switch_pin: 22, steps_per_rev: 3200, max_speed_deg_per_s: 60, max_accel_deg_per_s2: 120, homing_speed_deg_per_s: 10, homing_direction: negative, min_deg: -170, max_deg: 170, ready_position_deg: 0, calibration_offset_deg: 0}
  - {name: j2, device_index: 1, step_pin: 4, dir_pin: 5, home_switch_pin: 23, steps_per_rev: 3200, max_speed_deg_per_s: 60, max_accel_deg_per_s2: 120, homing_speed_deg_per_s: 10, homing_direction: positive, min_deg: -90, max_deg: 90, ready_position_deg: 0, calibration_offset_deg: 0}
  - {name: j3, device_index: 2, step_pin: 6, dir_pin: 7, home_switch_pin: 24, steps_per_rev: 3200, max_speed_deg_per_s: 60, max_accel_deg_per_s2: 120, homing_speed_deg_per_s: 10, homing_direction: positive, min_deg: -90, max_deg: 130, ready_position_deg: 0, calibration_offset_deg: 0}
  - {name: j4, device_index: 3, step_pin: 8, dir_pin: 9, home_switch_pin: 25, steps_per_rev: 1600, max_speed_deg_per_s: 180, max_accel_deg_per_s2: 360, homing_speed_deg_per_s: 20, homing_direction: negative, min_deg: -180, max_deg: 180, ready_position_deg: 0, calibration_offset_deg: 0}
  - {name: j5, device_index: 4, step_pin: 10, dir_pin: 11, home_switch_pin: 26, steps_per_rev: 1600, max_speed_deg_per_s: 180, max_accel_deg_per_s2: 360, homing_speed_deg_per_s: 20, homing_direction: negative, min_deg: -120, max_deg: 120, ready_position_deg: 0, calibration_offset_deg: 0}
  - {name: j6, device_index: 5, step_pin: 12, dir_pin: 13, home_switch_pin: 27, steps_per_rev: 1600, max_speed_deg_per_s: 180, max_accel_deg_per_s2: 360, homing_speed_deg_per_s: 20, homing_direction: positive, min_deg: -360, max_deg: 360, ready_position_deg: 0, calibration_offset_deg: 0}
links:
  - {theta_offset_deg: 0, alpha_deg: -90, d_mm: 210, a_mm: 30}
  - {theta_offset_deg: -90, alpha_deg: 0, d_mm: 0, a_mm: 280}
  - {theta_offset_deg: 0, alpha_deg: -90, d_mm: 0, a_mm: 50}
  - {theta_offset_deg: 0, alpha_deg: 90, d_mm: 245, a_mm: 0}
  - {theta_offset_deg: 0, alpha_deg: -90, d_mm: 0, a_mm: 0}
  - {theta_offset_deg: 0, alpha_deg: 0, d_mm: 90, a_mm: 0}
geometry:
  a1_mm: 30
  a2_mm: 280
  a3_mm: 50
  d1_mm: 210
  d4_mm: 245
  d6_mm: 90
`

func writeSample(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "arm.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))
	return path
}

func TestLoadAndConvert(t *testing.T) {
	path := writeSample(t)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyUSB0", cfg.Gateway.Port)
	assert.Equal(t, 115200, cfg.Gateway.BaudRate)

	joints, err := cfg.JointConfigs()
	require.NoError(t, err)
	assert.Equal(t, "j1", joints[0].Name)
	assert.Equal(t, 170.0, joints[0].MaxDeg)

	chain, geo := cfg.Chain()
	assert.Equal(t, 280.0, geo.A2)
	assert.Equal(t, 245.0, geo.D4)
	assert.Len(t, chain.Links, 6)

	limits := cfg.Limits()
	assert.Equal(t, [2]float64{-170, 170}, limits[0])
}

func TestLoadRejectsUnknownHomingDirection(t *testing.T) {
	cfg, err := Load(writeSample(t))
	require.NoError(t, err)
	cfg.Joints[0].HomingDirection = "sideways"
	_, err = cfg.JointConfigs()
	require.Error(t, err)
}
