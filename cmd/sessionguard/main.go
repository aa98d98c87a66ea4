package main

import (
	"fmt"
	"os"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-session-guard/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func main() {
	var verbose bool
	c := config.New()

	rootCmd := &cobra.Command{
		Use:   "sessionguard",
		Short: "Token refresh and session guard for the admin dashboard API",
		Long: `sessionguard keeps an authenticated session against the dashboard API.

It logs in, persists the token pair, refreshes expired access tokens
and replays requests rejected with 401 once. The serve command runs
a development backend that issues the tokens.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := zerolog.InfoLevel
			if verbose {
				level = zerolog.DebugLevel
			}
			zerolog.SetGlobalLevel(level)
			log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		},
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log at debug level")

	rootCmd.AddCommand(
		serveCmd(c),
		loginCmd(c),
		whoamiCmd(c),
		getCmd(c),
		logoutCmd(c),
		checkCmd(c),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
		os.Exit(1)
	}
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
