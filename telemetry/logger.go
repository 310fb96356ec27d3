// Package telemetry provides the run's log line and metric plumbing: a
// timestamped stdout logger with an optional best-effort UDP syslog mirror,
// and an optional HTTP experiment tracker. Remote delivery failures are
// swallowed by design; they must never affect a training run.
package telemetry

import (
	"fmt"
	"net"
	"time"
)

// Logger writes "HH:MM:SS <message>" lines to stdout, timestamped in a
// configured zone. When a syslog address is configured, every line is also
// sent as a single UDP datagram in BSD syslog framing; errors on that path
// are ignored.
type Logger struct {
	name string
	addr string
	loc  *time.Location
}

// NewLogger creates a logger. timezone is an IANA zone name, falling back
// to UTC when it does not resolve; host and port may be empty, which
// disables the remote mirror.
func NewLogger(name, timezone, host, port string) *Logger {
	l := &Logger{name: name, loc: time.UTC}
	if loc, err := time.LoadLocation(timezone); err == nil {
		l.loc = loc
	}
	if host != "" && port != "" {
		l.addr = net.JoinHostPort(host, port)
	}
	return l
}

// Log formats and emits one line.
func (l *Logger) Log(format string, args ...interface{}) {
	now := time.Now().In(l.loc)
	message := fmt.Sprintf(format, args...)
	if l.addr != "" {
		l.send(now, message)
	}
	fmt.Printf("%s %s\n", now.Format("15:04:05"), message)
}

// send mirrors a line to the remote collector: one datagram per line, fire
// and forget. Priority 22 is what the collector expects.
func (l *Logger) send(now time.Time, message string) {
	conn, err := net.Dial("udp", l.addr)
	if err != nil {
		return
	}
	defer conn.Close()

	line := fmt.Sprintf("<22>%s  %s: %s", now.Format("Jan 02 15:04:05"), l.name, message)
	_, _ = conn.Write([]byte(line))
}
