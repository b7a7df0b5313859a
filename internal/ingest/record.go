package ingest

import (
	"strconv"
	"strings"

	"github.com/nerrad567/gray-logic-homegate/internal/state"
)

// Record is one time-series point: a measurement name and its numeric fields.
type Record struct {
	Measurement string
	Fields      []state.Field
}

// Line renders the record in line-protocol shape, without a timestamp:
//
//	security people_count=4,max_people_allowed=10
func (r Record) Line() string {
	var b strings.Builder
	b.WriteString(r.Measurement)
	for i, f := range r.Fields {
		if i == 0 {
			b.WriteByte(' ')
		} else {
			b.WriteByte(',')
		}
		b.WriteString(f.Key)
		b.WriteByte('=')
		b.WriteString(strconv.FormatFloat(f.Value, 'f', -1, 64))
	}
	return b.String()
}

// Sink receives telemetry records. Write must not block; delivery failures
// are the sink's to report.
type Sink interface {
	Write(Record)
}
