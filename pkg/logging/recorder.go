package logging

import (
	"strings"
	"sync"
)

// Entry is a single message captured by a Recorder.
type Entry struct {
	Level   Level
	Message string
	Fields  map[string]interface{}
}

// Recorder is an in-memory Interface that keeps every message it receives.
// Loggers derived through WithField/WithError share the parent's entries.
type Recorder struct {
	mu      *sync.Mutex
	entries *[]Entry
	fields  map[string]interface{}
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		mu:      &sync.Mutex{},
		entries: &[]Entry{},
		fields:  map[string]interface{}{},
	}
}

func (r *Recorder) with(key string, value interface{}) *Recorder {
	fields := make(map[string]interface{}, len(r.fields)+1)
	for k, v := range r.fields {
		fields[k] = v
	}
	fields[key] = value
	return &Recorder{mu: r.mu, entries: r.entries, fields: fields}
}

func (r *Recorder) record(level Level, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	*r.entries = append(*r.entries, Entry{Level: level, Message: msg, Fields: r.fields})
}

// Entries returns a copy of everything recorded so far.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(*r.entries))
	copy(out, *r.entries)
	return out
}

// Warnings returns the messages recorded at WARN level, in order.
func (r *Recorder) Warnings() []string {
	var out []string
	for _, e := range r.Entries() {
		if e.Level == LevelWarn {
			out = append(out, e.Message)
		}
	}
	return out
}

// HasWarning reports whether any WARN message contains substr.
func (r *Recorder) HasWarning(substr string) bool {
	for _, w := range r.Warnings() {
		if strings.Contains(w, substr) {
			return true
		}
	}
	return false
}

// Reset drops all recorded entries.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	*r.entries = (*r.entries)[:0]
}

func (r *Recorder) WithField(key string, value interface{}) Interface { return r.with(key, value) }
func (r *Recorder) WithError(err error) Interface                     { return r.with("error", err) }

func (r *Recorder) Debug(msg string) { r.record(LevelDebug, msg) }
func (r *Recorder) Info(msg string)  { r.record(LevelInfo, msg) }
func (r *Recorder) Warn(msg string)  { r.record(LevelWarn, msg) }
func (r *Recorder) Error(msg string) { r.record(LevelError, msg) }

// Fatal records at ERROR level; a Recorder never exits the process.
func (r *Recorder) Fatal(msg string) { r.record(LevelError, msg) }

func (r *Recorder) Debugf(format string, args ...interface{}) { r.Debug(fmtMsg(format, args)) }
func (r *Recorder) Infof(format string, args ...interface{})  { r.Info(fmtMsg(format, args)) }
func (r *Recorder) Warnf(format string, args ...interface{})  { r.Warn(fmtMsg(format, args)) }
func (r *Recorder) Errorf(format string, args ...interface{}) { r.Error(fmtMsg(format, args)) }
func (r *Recorder) Fatalf(format string, args ...interface{}) { r.Fatal(fmtMsg(format, args)) }
