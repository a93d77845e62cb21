package logger

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config controla salida y nivel del logger de la aplicación.
type Config struct {
	Env   string    // development -> consola legible; cualquier otro -> JSON
	Level string    // trace, debug, info, warn, error; por defecto info
	Out   io.Writer // por defecto os.Stdout
}

// Logger es el logger estructurado de la aplicación. Los eventos se emiten
// con la API de zerolog (Info().Str(...).Msg(...)).
type Logger struct {
	zl zerolog.Logger
}

// New construye el logger según la configuración. Redirige además el logger
// global de zerolog para que las librerías que lo usen escriban igual.
func New(cfg Config) *Logger {
	out := cfg.Out
	if out == nil {
		out = os.Stdout
	}
	if cfg.Env == "development" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	zl := zerolog.New(out).Level(level).With().Timestamp().Logger()
	log.Logger = zl
	return &Logger{zl: zl}
}

func (l *Logger) Debug() *zerolog.Event { return l.zl.Debug() }
func (l *Logger) Info() *zerolog.Event  { return l.zl.Info() }
func (l *Logger) Warn() *zerolog.Event  { return l.zl.Warn() }
func (l *Logger) Error() *zerolog.Event { return l.zl.Error() }
func (l *Logger) Fatal() *zerolog.Event { return l.zl.Fatal() }

// Batch devuelve un sublogger con los campos de correlación de un lote de
// remisión, para que todos los eventos del lote compartan contexto.
func (l *Logger) Batch(batchID string, issuerID int64, records int, voiding bool) *Logger {
	return &Logger{zl: l.zl.With().
		Str("batch", batchID).
		Int64("issuer", issuerID).
		Int("records", records).
		Bool("voiding", voiding).
		Logger()}
}
