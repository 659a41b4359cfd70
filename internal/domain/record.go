package domain

import (
	"errors"
	"fmt"
	"time"
)

// Well-known telemetry value keys reported by optical devices.
const (
	KeyOSNR       = "osnr"
	KeyBER        = "ber"
	KeyPowerDBM   = "power_dbm"
	KeyWavelength = "wavelength"
)

// Record is the canonical unit of optical telemetry flowing through the system.
// A missing key in Values means the device did not report that metric.
type Record struct {
	DeviceID  string             `json:"device_id"`
	Timestamp time.Time          `json:"ts"`
	Seq       uint64             `json:"seq"`
	Values    map[string]float64 `json:"values"`
}

// Value returns the named metric and whether it was reported.
func (r *Record) Value(key string) (float64, bool) {
	if r == nil || r.Values == nil {
		return 0, false
	}
	v, ok := r.Values[key]
	return v, ok
}

// Clone returns a deep copy so callers can hand records across goroutines
// without sharing the values map.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	if r.Values != nil {
		out.Values = make(map[string]float64, len(r.Values))
		for k, v := range r.Values {
			out.Values[k] = v
		}
	}
	return &out
}

// Validate checks the ranges accepted at ingestion time. Metrics that are
// absent are not validated.
func (r *Record) Validate() error {
	if r == nil {
		return errors.New("record is nil")
	}
	if r.DeviceID == "" {
		return errors.New("device_id is required")
	}
	if v, ok := r.Value(KeyWavelength); ok && (v <= 1500 || v >= 1600) {
		return fmt.Errorf("wavelength %.2f nm out of range (1500, 1600)", v)
	}
	if v, ok := r.Value(KeyOSNR); ok && (v <= 0 || v >= 40) {
		return fmt.Errorf("osnr %.2f dB out of range (0, 40)", v)
	}
	if v, ok := r.Value(KeyBER); ok && (v < 0 || v > 1) {
		return fmt.Errorf("ber %g out of range [0, 1]", v)
	}
	return nil
}
