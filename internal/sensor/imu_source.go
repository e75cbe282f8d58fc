// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensor

import (
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/devices/v3/mpu9250"
	"periph.io/x/host/v3"
)

// Scale factors for the MPU9250 power-on ranges (±2g, ±250°/s).
const (
	accelCountsPerG       = 16384.0
	gyroCountsPerDegSec   = 131.0
	standardGravityMS2    = 9.80665
	accelMS2PerCount      = standardGravityMS2 / accelCountsPerG
	gyroRadPerSecPerCount = math.Pi / 180.0 / gyroCountsPerDegSec
)

type imuSource struct {
	imu *mpu9250.MPU9250
}

// NewIMUSource initializes an MPU9250 over SPI and returns a Source that
// reports its accelerometer and gyroscope. The magnetometer is not read;
// magnetometer data has to come from another producer.
func NewIMUSource(spiDev, csPin string, logger *zap.SugaredLogger) (Source, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("IMU: periph host init: %w", err)
	}

	cs := gpioreg.ByName(csPin)
	if cs == nil {
		return nil, fmt.Errorf("IMU: CS pin %q not found", csPin)
	}

	tr, err := mpu9250.NewSpiTransport(spiDev, cs)
	if err != nil {
		return nil, fmt.Errorf("IMU: SPI transport (%s): %w", spiDev, err)
	}

	imu, err := mpu9250.New(tr)
	if err != nil {
		return nil, fmt.Errorf("IMU: device creation: %w", err)
	}

	if err := imu.Init(); err != nil {
		return nil, fmt.Errorf("IMU: initialization: %w", err)
	}

	if err := imu.Calibrate(); err != nil {
		logger.Warnf("IMU: calibration failed, continuing uncalibrated: %v", err)
	} else {
		logger.Infof("IMU: calibration complete")
	}

	return &imuSource{imu: imu}, nil
}

// Next reads one accelerometer and one gyroscope sample.
func (s *imuSource) Next() ([]Event, error) {
	ax, err := s.imu.GetAccelerationX()
	if err != nil {
		return nil, fmt.Errorf("IMU accel X: %w", err)
	}
	ay, err := s.imu.GetAccelerationY()
	if err != nil {
		return nil, fmt.Errorf("IMU accel Y: %w", err)
	}
	az, err := s.imu.GetAccelerationZ()
	if err != nil {
		return nil, fmt.Errorf("IMU accel Z: %w", err)
	}

	gx, err := s.imu.GetRotationX()
	if err != nil {
		return nil, fmt.Errorf("IMU gyro X: %w", err)
	}
	gy, err := s.imu.GetRotationY()
	if err != nil {
		return nil, fmt.Errorf("IMU gyro Y: %w", err)
	}
	gz, err := s.imu.GetRotationZ()
	if err != nil {
		return nil, fmt.Errorf("IMU gyro Z: %w", err)
	}

	ts := time.Now().UnixNano()
	return []Event{
		{Kind: Accelerometer, Values: AccelFromCounts(ax, ay, az), Timestamp: ts},
		{Kind: Gyroscope, Values: GyroFromCounts(gx, gy, gz), Timestamp: ts},
	}, nil
}

// AccelFromCounts converts raw accelerometer counts to m/s².
func AccelFromCounts(x, y, z int16) []float64 {
	return []float64{
		float64(x) * accelMS2PerCount,
		float64(y) * accelMS2PerCount,
		float64(z) * accelMS2PerCount,
	}
}

// GyroFromCounts converts raw gyroscope counts to rad/s.
func GyroFromCounts(x, y, z int16) []float64 {
	return []float64{
		float64(x) * gyroRadPerSecPerCount,
		float64(y) * gyroRadPerSecPerCount,
		float64(z) * gyroRadPerSecPerCount,
	}
}
