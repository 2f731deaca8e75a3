package logging

import (
	"context"
	"sync"
)

// NullLogger discards every record. It is used when no log file is configured.
type NullLogger struct{}

// NewNullLogger creates a logger that discards everything
func NewNullLogger() *NullLogger {
	return &NullLogger{}
}

func (l *NullLogger) Debug(ctx context.Context, msg string, fields Fields)            {}
func (l *NullLogger) Info(ctx context.Context, msg string, fields Fields)             {}
func (l *NullLogger) Warn(ctx context.Context, msg string, fields Fields)             {}
func (l *NullLogger) Error(ctx context.Context, msg string, err error, fields Fields) {}

// WithFields returns l
func (l *NullLogger) WithFields(fields Fields) Logger {
	return l
}

// Close does nothing
func (l *NullLogger) Close() error {
	return nil
}

// Record is one entry kept by a Recorder
type Record struct {
	Level   Level
	Message string
	Err     error
	Fields  Fields
}

// Recorder keeps every record in memory. Tests use it to check what the
// engines reported.
type Recorder struct {
	mu      *sync.Mutex
	records *[]Record
	fields  Fields
}

// NewRecorder creates an empty recorder
func NewRecorder() *Recorder {
	return &Recorder{mu: &sync.Mutex{}, records: &[]Record{}}
}

func (r *Recorder) Debug(ctx context.Context, msg string, fields Fields) {
	r.add(DebugLevel, msg, nil, fields)
}

func (r *Recorder) Info(ctx context.Context, msg string, fields Fields) {
	r.add(InfoLevel, msg, nil, fields)
}

func (r *Recorder) Warn(ctx context.Context, msg string, fields Fields) {
	r.add(WarnLevel, msg, nil, fields)
}

func (r *Recorder) Error(ctx context.Context, msg string, err error, fields Fields) {
	r.add(ErrorLevel, msg, err, fields)
}

// WithFields returns a recorder sharing r's records
func (r *Recorder) WithFields(fields Fields) Logger {
	return &Recorder{mu: r.mu, records: r.records, fields: merge(r.fields, fields)}
}

// Close does nothing
func (r *Recorder) Close() error {
	return nil
}

// Records returns a copy of the records kept so far
func (r *Recorder) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Record(nil), *r.records...)
}

// Count returns how many records have level
func (r *Recorder) Count(level Level) int {
	n := 0
	for _, rec := range r.Records() {
		if rec.Level == level {
			n++
		}
	}
	return n
}

func (r *Recorder) add(level Level, msg string, err error, fields Fields) {
	r.mu.Lock()
	defer r.mu.Unlock()
	*r.records = append(*r.records, Record{Level: level, Message: msg, Err: err, Fields: merge(r.fields, fields)})
}

func merge(base, extra Fields) Fields {
	out := make(Fields, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
