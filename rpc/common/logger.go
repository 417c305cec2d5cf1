package common

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/lni/dragonboat/v4/logger"
)

// --------------------------------------------------------------------------
// Logger (implements dragonboat's logger.ILogger)
// --------------------------------------------------------------------------

// kvmigLogger writes "LEVEL | package | message" lines
type kvmigLogger struct {
	name   string
	level  logger.LogLevel
	logger *log.Logger
}

func (l *kvmigLogger) SetLevel(level logger.LogLevel) {
	l.level = level
}

func (l *kvmigLogger) Debugf(format string, args ...interface{}) {
	if l.level >= logger.DEBUG {
		l.log("DEBUG", format, args...)
	}
}

func (l *kvmigLogger) Infof(format string, args ...interface{}) {
	if l.level >= logger.INFO {
		l.log("INFO", format, args...)
	}
}

func (l *kvmigLogger) Warningf(format string, args ...interface{}) {
	if l.level >= logger.WARNING {
		l.log("WARN", format, args...)
	}
}

func (l *kvmigLogger) Errorf(format string, args ...interface{}) {
	if l.level >= logger.ERROR {
		l.log("ERROR", format, args...)
	}
}

func (l *kvmigLogger) Panicf(format string, args ...interface{}) {
	panic(fmt.Sprintf(format, args...))
}

func (l *kvmigLogger) log(levelStr string, format string, args ...interface{}) {
	l.logger.Printf("%-5s | %-15s | %s", levelStr, l.name, fmt.Sprintf(format, args...))
}

// CreateLogger is the logger.Factory installed by InitLoggers.
// Log lines are written to stderr so command output on stdout stays parseable.
func CreateLogger(pkgName string) logger.ILogger {
	return &kvmigLogger{
		name:   pkgName,
		level:  logger.INFO,
		logger: log.New(os.Stderr, "", log.Ldate|log.Ltime),
	}
}

// --------------------------------------------------------------------------
// Initialization
// --------------------------------------------------------------------------

// dragonboatLoggers are the packages dragonboat logs under
var dragonboatLoggers = []string{"raft", "raftdb", "rsm", "transport", "dragonboat", "grpc", "util", "logdb", "config"}

// kvmigLoggers are the packages of this module
var kvmigLoggers = []string{"store", "rpc", "migration"}

// ParseLogLevel converts debug, info, warn or error into a logger.LogLevel.
func ParseLogLevel(level string) (logger.LogLevel, error) {
	switch strings.ToLower(level) {
	case "debug":
		return logger.DEBUG, nil
	case "info":
		return logger.INFO, nil
	case "warning", "warn":
		return logger.WARNING, nil
	case "error":
		return logger.ERROR, nil
	default:
		return 0, fmt.Errorf("invalid log level: %s. must be one of debug, info, warn, error", level)
	}
}

// InitLoggers installs the custom logger and sets the level of all known loggers.
// Dragonboat is kept quieter than the module: at level info it only reports warnings.
func InitLoggers(level string) error {
	lvl, err := ParseLogLevel(level)
	if err != nil {
		return err
	}

	logger.SetLoggerFactory(CreateLogger)

	for _, name := range kvmigLoggers {
		logger.GetLogger(name).SetLevel(lvl)
	}

	raftLvl := lvl
	if raftLvl == logger.INFO {
		raftLvl = logger.WARNING
	}
	for _, name := range dragonboatLoggers {
		logger.GetLogger(name).SetLevel(raftLvl)
	}
	return nil
}
