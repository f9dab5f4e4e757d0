// Package log provides module-scoped structured logging used across every
// aurex binary and library package. It follows the same shape klaytn's own
// log package exposes to the rest of that tree (NewModuleLogger returning a
// Logger with leveled, key-value methods) but is backed by zap instead of
// being a hand-rolled dispatcher.
package log

import (
	"io"
	"os"

	"github.com/mattn/go-colorable"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Module name constants, one per component that obtains its own logger.
const (
	PowNode   = "pownode"
	Gateway   = "gateway"
	AppServer = "appserver"
	Ledger    = "ledger"
	Miner     = "pow"
	Wallet    = "wallet"
	Registry  = "registry"
	Common    = "common"
)

// Logger is the interface every aurex component logs through.
type Logger interface {
	Debug(msg string, kv ...interface{})
	Info(msg string, kv ...interface{})
	Warn(msg string, kv ...interface{})
	Error(msg string, kv ...interface{})
	Crit(msg string, kv ...interface{})
	With(kv ...interface{}) Logger
}

type moduleLogger struct {
	name string
	sug  *zap.SugaredLogger
}

var base *zap.Logger

// minLevel is the process-wide minimum level shared by every module logger.
var minLevel = zap.NewAtomicLevelAt(zapcore.InfoLevel)

func init() {
	usecolor := isTerminal(os.Stderr)
	var out io.Writer = os.Stderr
	if usecolor {
		out = colorable.NewColorableStderr()
	}
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	if !usecolor {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.AddSync(out),
		minLevel,
	)
	base = zap.New(core)
}

func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

// SetVerbosity adjusts the process-wide minimum level. 0=crit..4=debug,
// mirroring the --verbosity flag klaytn's debug.Setup wires to its glog
// handler.
func SetVerbosity(level int) {
	var lvl zapcore.Level
	switch {
	case level <= 0:
		lvl = zapcore.DPanicLevel
	case level == 1:
		lvl = zapcore.ErrorLevel
	case level == 2:
		lvl = zapcore.WarnLevel
	case level == 3:
		lvl = zapcore.InfoLevel
	default:
		lvl = zapcore.DebugLevel
	}
	minLevel.SetLevel(lvl)
}

// NewModuleLogger returns a Logger scoped to the given component name. Every
// log line it emits carries a "module" field for downstream filtering.
func NewModuleLogger(name string) Logger {
	return &moduleLogger{name: name, sug: base.Sugar().With("module", name)}
}

func (l *moduleLogger) Debug(msg string, kv ...interface{}) { l.sug.Debugw(msg, kv...) }
func (l *moduleLogger) Info(msg string, kv ...interface{})  { l.sug.Infow(msg, kv...) }
func (l *moduleLogger) Warn(msg string, kv ...interface{})  { l.sug.Warnw(msg, kv...) }
func (l *moduleLogger) Error(msg string, kv ...interface{}) { l.sug.Errorw(msg, kv...) }
func (l *moduleLogger) Crit(msg string, kv ...interface{}) {
	l.sug.Errorw(msg, kv...)
	os.Exit(1)
}
func (l *moduleLogger) With(kv ...interface{}) Logger {
	return &moduleLogger{name: l.name, sug: l.sug.With(kv...)}
}
