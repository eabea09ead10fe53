package main

import (
	"os"
	"time"

	"github.com/flowbaker/weave/cmd/cli"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	_, noColor := os.LookupEnv("NO_COLOR")
	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.TimeOnly,
		NoColor:    noColor,
	})

	cli.Execute()
}
