// Package logging wires the module's packages to a single zerolog logger,
// in the manner of github.com/itohio/EasyRobot's pkg/logger: one shared
// console-writer instance, caller-tagged, used by value throughout.
package logging

import (
	"os"

	"github.com/rs/zerolog"
)

// Log is the process-wide logger. Named copies it at call time, and this
// module's packages call Named in package-level variables, so replacing Log
// later does not change those packages' loggers.
var Log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Caller().Logger()

func init() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
}

// Named returns a child logger tagged with a component field, e.g.
// logging.Named("joint").Debug().Str("joint", cfg.Name).Msg("...").
func Named(component string) zerolog.Logger {
	return Log.With().Str("component", component).Logger()
}
