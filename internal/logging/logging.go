package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"karat-arcade/internal/config"
)

var (
	mu   sync.Mutex
	sink io.Writer = os.Stdout
	file *cappedLogFile
)

// Init configures the global zerolog logger. With cfg.File set, output goes to
// a size-capped file that truncates and restarts once it grows past MaxMB.
func Init(cfg config.LogConfig) error {
	mu.Lock()
	defer mu.Unlock()

	level := zerolog.InfoLevel
	if parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level))); err == nil && cfg.Level != "" {
		level = parsed
	}

	var output io.Writer = os.Stdout
	if cfg.File != "" {
		w, err := openCappedLogFile(cfg.File, cfg.MaxMB)
		if err != nil {
			return err
		}
		if file != nil {
			_ = file.Close()
		}
		file = w
		output = w
	}
	sink = output
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	zerolog.SetGlobalLevel(level)
	logger := zerolog.New(output).With().Timestamp().Logger()
	if cfg.SampleEvery > 1 {
		logger = logger.Sample(&zerolog.BasicSampler{N: uint32(cfg.SampleEvery)})
	}
	log.Logger = logger
	return nil
}

// Writer is the raw sink Init configured. Request logging builds its own slog
// logger on top of the same destination.
func Writer() io.Writer {
	mu.Lock()
	defer mu.Unlock()
	return sink
}

func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if file == nil {
		return nil
	}
	err := file.Close()
	file = nil
	sink = os.Stdout
	return err
}
