package models

import (
	"fmt"
	"time"
)

// Row is a single line-protocol row: one table, one tag column, one float field.
type Row struct {
	Table     string    `json:"table"`
	TagName   string    `json:"tag_name"`
	TagValue  string    `json:"tag_value"`
	FieldName string    `json:"field_name"`
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// NewRow creates a row timestamped with the current time
func NewRow(table, tagName, tagValue, fieldName string, value float64) Row {
	return Row{
		Table:     table,
		TagName:   tagName,
		TagValue:  tagValue,
		FieldName: fieldName,
		Value:     value,
		Timestamp: time.Now(),
	}
}

func (r Row) String() string {
	return fmt.Sprintf("%s,%s=%s %s=%v", r.Table, r.TagName, r.TagValue, r.FieldName, r.Value)
}
