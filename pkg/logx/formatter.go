package logx

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// LogEntry represents a single log entry
type LogEntry struct {
	Level     Level
	Message   string
	Fields    Fields
	Error     error
	Timestamp time.Time
}

// Formatter formats log entries into bytes
type Formatter interface {
	Format(entry *LogEntry) ([]byte, error)
}

// ANSI colors for console output
const (
	colorReset  = "\033[0m"
	colorGray   = "\033[90m"
	colorCyan   = "\033[36m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
	colorBold   = "\033[1m"
)

type consoleFormatter struct {
	timeFormat string
	colors     bool
}

func (f *consoleFormatter) Format(entry *LogEntry) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(entry.Timestamp.Format(f.timeFormat))
	buf.WriteString(" | ")

	level := fmt.Sprintf("%-5s", entry.Level.String())
	if f.colors {
		buf.WriteString(f.levelColor(entry.Level) + level + colorReset)
	} else {
		buf.WriteString(level)
	}

	buf.WriteString(" | ")
	buf.WriteString(entry.Message)

	if len(entry.Fields) > 0 {
		keys := make([]string, 0, len(entry.Fields))
		for k := range entry.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			buf.WriteString(fmt.Sprintf(" %s=%v", k, entry.Fields[k]))
		}
	}

	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func (f *consoleFormatter) levelColor(level Level) string {
	switch level {
	case LevelDebug:
		return colorGray
	case LevelInfo:
		return colorCyan
	case LevelWarn:
		return colorYellow
	case LevelError:
		return colorRed
	case LevelFatal:
		return colorBold + colorRed
	default:
		return colorReset
	}
}

type jsonFormatter struct {
	timeFormat string
}

func (f *jsonFormatter) Format(entry *LogEntry) ([]byte, error) {
	payload := make(map[string]interface{}, len(entry.Fields)+3)
	for k, v := range entry.Fields {
		payload[k] = v
	}
	payload["timestamp"] = entry.Timestamp.Format(f.timeFormat)
	payload["level"] = entry.Level.String()
	payload["message"] = entry.Message

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
