package models

import (
	"fmt"
	"time"
)

// Table, tag and field names written for every reading.
const (
	TemperatureTable = "temperature"
	HumidityTable    = "humidity"
	SensorIDTag      = "sensor_id"
	TemperatureField = "temp_c"
	HumidityField    = "rel_humidity"
)

// Reading is one synthetic temperature/humidity sample for a sensor.
type Reading struct {
	SensorID    string    `json:"sensor_id"`
	Timestamp   time.Time `json:"timestamp"`
	Humidity    float64   `json:"humidity"`
	Temperature float64   `json:"temperature"`
}

// NewReading creates a new Reading with the current timestamp
func NewReading(sensorID string, temperature, humidity float64) *Reading {
	return &Reading{
		SensorID:    sensorID,
		Timestamp:   time.Now(),
		Humidity:    humidity,
		Temperature: temperature,
	}
}

// TemperatureRow returns the temperature row for this reading, stamped at call time.
func (r *Reading) TemperatureRow() Row {
	return NewRow(TemperatureTable, SensorIDTag, r.SensorID, TemperatureField, r.Temperature)
}

// HumidityRow returns the humidity row for this reading, stamped at call time.
func (r *Reading) HumidityRow() Row {
	return NewRow(HumidityTable, SensorIDTag, r.SensorID, HumidityField, r.Humidity)
}

// String matches the per-iteration console line.
func (r *Reading) String() string {
	return fmt.Sprintf("Sensor %s: temp = %v, humidity = %v",
		r.SensorID,
		r.Temperature,
		r.Humidity)
}
