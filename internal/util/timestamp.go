package util

import (
	"fmt"
	"strings"
	"time"
)

// TimestampWidth is the fixed width of a log-line prefix such as "[21:04:05]".
// Consumers split timestamp from message at this offset, so it must never change.
const TimestampWidth = 10

// Timestamp formats t as a bracketed 24-hour clock reading
func Timestamp(t time.Time) string {
	return "[" + t.Format("15:04:05") + "]"
}

// LogLine prefixes msg with the timestamp of t and a single space
func LogLine(t time.Time, msg string) string {
	return Timestamp(t) + " " + msg
}

// LogLinef is LogLine with fmt.Sprintf formatting
func LogLinef(t time.Time, format string, args ...any) string {
	return LogLine(t, fmt.Sprintf(format, args...))
}

// SplitLogLine separates the timestamp prefix from the message.
// Lines shorter than the prefix are returned as message only.
func SplitLogLine(line string) (stamp, msg string) {
	if len(line) < TimestampWidth || line[0] != '[' || line[TimestampWidth-1] != ']' {
		return "", line
	}
	return line[:TimestampWidth], strings.TrimPrefix(line[TimestampWidth:], " ")
}
