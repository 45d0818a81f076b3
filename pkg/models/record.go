// Package models provides the record and structured value types that flow
// from the upstream log into the JDBC sink.
package models

import "time"

// Record is one unit of upstream data. It carries the topic/partition/offset
// coordinates of the message it came from and its decoded value.
//
// Value is any decoded payload; only *Struct can be written by the sink.
// A Record must not be mutated once it has been handed to a destination.
type Record struct {
	Topic     string    `json:"topic"`
	Partition int32     `json:"partition"`
	Offset    int64     `json:"offset"`
	Key       []byte    `json:"key,omitempty"`
	Value     any       `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// Struct returns the record value as a *Struct, or false when the value is
// nil or of another kind.
func (r *Record) Struct() (*Struct, bool) {
	if r == nil || r.Value == nil {
		return nil, false
	}
	s, ok := r.Value.(*Struct)
	if !ok || s == nil {
		return nil, false
	}
	return s, true
}

// RecordBatch represents an ordered batch of records.
type RecordBatch struct {
	// Records holds the records in arrival order
	Records []*Record
}

// NewRecordBatch creates a new record batch with the specified capacity.
func NewRecordBatch(capacity int) *RecordBatch {
	return &RecordBatch{Records: make([]*Record, 0, capacity)}
}

// AddRecord appends a record to the batch.
func (rb *RecordBatch) AddRecord(r *Record) {
	rb.Records = append(rb.Records, r)
}

// Reset clears the batch for reuse without deallocating memory.
func (rb *RecordBatch) Reset() {
	for i := range rb.Records {
		rb.Records[i] = nil
	}
	rb.Records = rb.Records[:0]
}

// Size returns the current number of records in the batch.
func (rb *RecordBatch) Size() int {
	return len(rb.Records)
}

// Last returns the last record in the batch, or nil when it is empty.
func (rb *RecordBatch) Last() *Record {
	if len(rb.Records) == 0 {
		return nil
	}
	return rb.Records[len(rb.Records)-1]
}
