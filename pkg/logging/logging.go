// Package logging sets up the global zerolog logger: a console writer on
// stderr and, when a directory is configured, one JSON log file per run.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Settings struct {
	Level string `mapstructure:"level"`
	Dir   string `mapstructure:"dir"`
}

// Init replaces log.Logger. The returned closer flushes the run file, if any.
func Init(s Settings, console io.Writer) (io.Closer, string, error) {
	level := zerolog.InfoLevel
	if strings.TrimSpace(s.Level) != "" {
		l, err := zerolog.ParseLevel(strings.ToLower(s.Level))
		if err != nil {
			return nil, "", errors.Wrapf(err, "log level %q", s.Level)
		}
		level = l
	}
	zerolog.SetGlobalLevel(level)

	if console == nil {
		console = os.Stderr
	}
	writers := []io.Writer{zerolog.ConsoleWriter{Out: console, TimeFormat: "15:04:05"}}

	var (
		closer io.Closer = nopCloser{}
		path   string
	)
	if dir := strings.TrimSpace(s.Dir); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, "", errors.Wrapf(err, "create log dir %s", dir)
		}
		path = filepath.Join(dir, "execution_"+time.Now().Format("20060102_150405")+".log")
		file := &lumberjack.Logger{
			Filename:   path,
			MaxSize:    50,
			MaxBackups: 3,
			MaxAge:     30,
		}
		writers = append(writers, file)
		closer = file
	}

	log.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).
		With().
		Timestamp().
		Logger()
	return closer, path, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
