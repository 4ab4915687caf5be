package main

import (
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/gregLibert/musclecard/pkg/config"
	"github.com/urfave/cli/v2"
)

var flagConfig = &cli.StringFlag{
	Name:    "config",
	Aliases: []string{"c"},
	Usage:   "path to a YAML settings file",
	EnvVars: []string{"MUSCLECTL_CONFIG"},
}

var flagReader = &cli.StringFlag{
	Name:  "reader",
	Usage: "PC/SC reader name, the first reader when empty",
}

var flagAID = &cli.StringFlag{
	Name:  "aid",
	Usage: "applet AID in hex (default A00000000101)",
}

var flagClass = &cli.StringFlag{
	Name:  "class",
	Usage: "CLA byte of applet commands (default B0)",
}

var flagEmulate = &cli.BoolFlag{
	Name:  "emulate",
	Usage: "talk to an in-memory applet instead of a reader (PIN 1 is " + emulatorPIN + ")",
}

var flagPIN = &cli.StringFlag{
	Name:  "pin",
	Usage: "verify this PIN right after selecting the applet",
}

var flagPINRef = &cli.UintFlag{
	Name:  "pin-ref",
	Value: 1,
	Usage: "PIN reference used by --pin",
}

var flagLogJSON = &cli.BoolFlag{
	Name:  "log-json",
	Usage: "log in JSON format",
}

var flagLogDebug = &cli.BoolFlag{
	Name:  "log-debug",
	Usage: "log debug messages, including every APDU",
}

var flagLogUID = &cli.BoolFlag{
	Name:  "log-uid",
	Usage: "generate a uuid and add it to all log messages",
}

var globalFlags = []cli.Flag{
	flagConfig,
	flagReader,
	flagAID,
	flagClass,
	flagEmulate,
	flagPIN,
	flagPINRef,
	flagLogJSON,
	flagLogDebug,
	flagLogUID,
}

// loadConfig reads the settings file and applies the flags that were set.
func loadConfig(cCtx *cli.Context) (config.Config, error) {
	cfg, err := config.Load(cCtx.String(flagConfig.Name))
	if err != nil {
		return cfg, err
	}

	if cCtx.IsSet(flagReader.Name) {
		cfg.Reader = cCtx.String(flagReader.Name)
	}
	if cCtx.IsSet(flagAID.Name) {
		aid, err := config.ParseAID(cCtx.String(flagAID.Name))
		if err != nil {
			return cfg, err
		}
		cfg.AID = aid
	}
	if cCtx.IsSet(flagClass.Name) {
		cla, err := config.ParseByte(cCtx.String(flagClass.Name))
		if err != nil {
			return cfg, err
		}
		cfg.Class = cla
	}
	if cCtx.IsSet(flagLogDebug.Name) {
		cfg.Log.Debug = cCtx.Bool(flagLogDebug.Name)
	}
	if cCtx.IsSet(flagLogJSON.Name) {
		cfg.Log.JSON = cCtx.Bool(flagLogJSON.Name)
	}
	if cCtx.IsSet(flagLogUID.Name) {
		cfg.Log.UID = cCtx.Bool(flagLogUID.Name)
	}
	return cfg, nil
}

func setupLogger(opts config.LogConfig) *slog.Logger {
	level := slog.LevelInfo
	if opts.Debug {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}

	var logger *slog.Logger
	if opts.JSON {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, handlerOpts))
	} else {
		logger = slog.New(slog.NewTextHandler(os.Stderr, handlerOpts))
	}

	if opts.UID {
		id := uuid.Must(uuid.NewRandom())
		logger = logger.With("uid", id.String())
	}
	return logger
}
