package log

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// TestLogger captures log records as JSON lines in memory for assertions.
// Loggers derived through With share the same buffer.
type TestLogger struct {
	sink   *testSink
	level  Level
	fields map[string]interface{}
}

type testSink struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

// NewTestLogger creates a TestLogger capturing records at level and above.
//
//	logger := log.NewTestLogger(log.LevelDebug)
//	search := model_selection.NewGridSearch(spec, model_selection.WithLogger(logger))
//	...
//	assert.True(t, logger.ContainsMessage("Search completed"))
func NewTestLogger(level Level) *TestLogger {
	return &TestLogger{
		sink:   &testSink{},
		level:  level,
		fields: make(map[string]interface{}),
	}
}

func (t *TestLogger) Debug(msg string, fields ...any) { t.write(LevelDebug, msg, fields) }
func (t *TestLogger) Info(msg string, fields ...any) { t.write(LevelInfo, msg, fields) }
func (t *TestLogger) Warn(msg string, fields ...any) { t.write(LevelWarn, msg, fields) }
func (t *TestLogger) Error(msg string, fields ...any) { t.write(LevelError, msg, fields) }

// With implements Logger.With.
func (t *TestLogger) With(fields ...any) Logger {
	merged := make(map[string]interface{}, len(t.fields)+len(fields)/2)
	for k, v := range t.fields {
		merged[k] = v
	}
	for _, kv := range pairs(fields) {
		merged[kv.key] = jsonValue(kv.value)
	}
	return &TestLogger{sink: t.sink, level: t.level, fields: merged}
}

// Enabled implements Logger.Enabled.
func (t *TestLogger) Enabled(_ context.Context, level Level) bool {
	return t.level <= level
}

func (t *TestLogger) write(level Level, msg string, fields []any) {
	if level < t.level {
		return
	}
	entry := map[string]interface{}{
		"level":   level.String(),
		"message": msg,
	}
	for k, v := range t.fields {
		entry[k] = v
	}
	for _, kv := range pairs(fields) {
		entry[kv.key] = jsonValue(kv.value)
	}

	data, err := json.Marshal(entry)
	if err != nil {
		data = []byte(fmt.Sprintf(`{"level":%q,"message":%q,"marshal_error":%q}`, level.String(), msg, err.Error()))
	}

	t.sink.mu.Lock()
	defer t.sink.mu.Unlock()
	t.sink.buf.Write(data)
	t.sink.buf.WriteByte('\n')
}

func jsonValue(v any) any {
	if err, ok := v.(error); ok {
		return err.Error()
	}
	return v
}

// String returns everything captured so far.
func (t *TestLogger) String() string {
	t.sink.mu.Lock()
	defer t.sink.mu.Unlock()
	return t.sink.buf.String()
}

// Entries parses the captured output into one map per record.
func (t *TestLogger) Entries() ([]map[string]interface{}, error) {
	var entries []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(t.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// ContainsMessage reports whether any record mentions message.
func (t *TestLogger) ContainsMessage(message string) bool {
	return strings.Contains(t.String(), message)
}

// ContainsField reports whether any record has key set to value. Numbers
// come back from JSON as float64.
func (t *TestLogger) ContainsField(key string, value interface{}) bool {
	entries, err := t.Entries()
	if err != nil {
		return false
	}
	for _, entry := range entries {
		if v, ok := entry[key]; ok && v == value {
			return true
		}
	}
	return false
}

// Count returns the number of records whose message equals msg.
func (t *TestLogger) Count(msg string) int {
	entries, err := t.Entries()
	if err != nil {
		return 0
	}
	n := 0
	for _, entry := range entries {
		if entry["message"] == msg {
			n++
		}
	}
	return n
}

// Clear drops everything captured so far.
func (t *TestLogger) Clear() {
	t.sink.mu.Lock()
	defer t.sink.mu.Unlock()
	t.sink.buf.Reset()
}
