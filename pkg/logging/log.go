// Package logging provides the leveled logger shared by the viewer, client and
// backend. Messages go to the standard logger unless a log file is configured,
// in which case they are written to a rotating file.
package logging

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/natefinch/lumberjack"
)

// ModeFlag sets the minimum severity that gets written
type ModeFlag uint

const (
	DebugMode ModeFlag = iota
	InfoMode
	WarningMode
	ErrorMode
	CriticalMode
	SilentMode
)

var mode = InfoMode

// rotating is non-nil once SetLogger has opened a log file
var rotating *lumberjack.Logger

// SetLogMode sets the severity required for a log message to be printed.
// SetLogMode(WarningMode) logs Warningf, Errorf and Criticalf calls only.
func SetLogMode(newMode ModeFlag) {
	mode = newMode
}

// ParseMode converts a level name such as "debug" or "warning" into a ModeFlag
func ParseMode(level string) (ModeFlag, error) {
	switch strings.ToLower(level) {
	case "debug":
		return DebugMode, nil
	case "", "info":
		return InfoMode, nil
	case "warning", "warn":
		return WarningMode, nil
	case "error":
		return ErrorMode, nil
	case "critical":
		return CriticalMode, nil
	case "silent", "none":
		return SilentMode, nil
	}
	return InfoMode, fmt.Errorf("unknown log level %q", level)
}

// LogConfig describes where log output goes
type LogConfig struct {
	Logfile string `yaml:"logfile" toml:"logfile"`
	MaxSize int    `yaml:"maxLogSize" toml:"max_log_size"`
	MaxAge  int    `yaml:"maxLogAge" toml:"max_log_age"`
	Level   string `yaml:"level" toml:"level"`
}

// SetLogger applies the level and, if a log file is given, redirects output
// to a rotating log file.
func (c *LogConfig) SetLogger() error {
	if c == nil {
		return nil
	}
	m, err := ParseMode(c.Level)
	if err != nil {
		return err
	}
	SetLogMode(m)
	if c.Logfile == "" {
		Debugf("Sending log messages to stdout since no log file specified.")
		return nil
	}
	fmt.Printf("Sending log messages to: %s\n", c.Logfile)
	rotating = &lumberjack.Logger{
		Filename: c.Logfile,
		MaxSize:  c.MaxSize, // megabytes
		MaxAge:   c.MaxAge,  // days
	}
	log.SetOutput(rotating)
	return nil
}

// Shutdown closes the log file if one is open
func Shutdown() {
	if rotating != nil {
		log.Printf("Closing log file...\n")
		rotating.Close()
		rotating = nil
	}
}

func Debugf(format string, args ...interface{}) {
	if mode <= DebugMode {
		log.Printf(" DEBUG "+format, args...)
	}
}

func Infof(format string, args ...interface{}) {
	if mode <= InfoMode {
		log.Printf(" INFO "+format, args...)
	}
}

func Warningf(format string, args ...interface{}) {
	if mode <= WarningMode {
		log.Printf(" WARNING "+format, args...)
	}
}

func Errorf(format string, args ...interface{}) {
	if mode <= ErrorMode {
		log.Printf(" ERROR "+format, args...)
	}
}

func Criticalf(format string, args ...interface{}) {
	if mode <= CriticalMode {
		log.Printf(" CRITICAL "+format, args...)
	}
}

// TimeLog adds elapsed time to logging.
//
//	tlog := logging.NewTimeLog()
//	...
//	tlog.Infof("composited z=%d", z) // appends time since NewTimeLog()
type TimeLog struct {
	start time.Time
}

func NewTimeLog() TimeLog {
	return TimeLog{time.Now()}
}

func (t TimeLog) Debugf(format string, args ...interface{}) {
	Debugf(format+": %s", append(args, time.Since(t.start))...)
}

func (t TimeLog) Infof(format string, args ...interface{}) {
	Infof(format+": %s", append(args, time.Since(t.start))...)
}

func (t TimeLog) Warningf(format string, args ...interface{}) {
	Warningf(format+": %s", append(args, time.Since(t.start))...)
}
