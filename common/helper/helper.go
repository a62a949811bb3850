package helper

import (
	"fmt"
	"time"

	gutils "github.com/Laisky/go-utils/v5"
)

const RequestIdKey = "X-Request-Id"

// GetTimestamp get current timestamp in seconds
func GetTimestamp() int64 {
	return time.Now().Unix()
}

func GetTimeString() string {
	now := time.Now()
	return fmt.Sprintf("%s%d", now.Format("20060102150405"), now.UnixNano()%1e9)
}

// GenRequestID returns a time-ordered unique id for request correlation.
func GenRequestID() string {
	return gutils.UUID7()
}

// MessageWithRequestId suffixes an error message with the request id so users
// can quote it back when reporting issues.
func MessageWithRequestId(message string, id string) string {
	if id == "" {
		return message
	}
	return fmt.Sprintf("%s (request id: %s)", message, id)
}

// CalcElapsedTime return the elapsed time in milliseconds (ms)
func CalcElapsedTime(start time.Time) int64 {
	elapsed := time.Since(start)
	ms := elapsed.Milliseconds()
	if ms == 0 && elapsed > 0 {
		return 1
	}
	return ms
}
