package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/esimov/invhaar"
	"github.com/esimov/invhaar/utils"
)

const helpBanner = `
┬┌┐┌┬  ┬┬ ┬┌─┐┌─┐┬─┐
││││└┐┌┘├─┤├─┤├─┤├┬┘
┴┘└┘ └┘ ┴ ┴┴ ┴┴ ┴┴└─

Minimal intensity images accepted by a Haar cascade.
    Version: %s

Usage: invhaar <cascade.xml>
`

// Version indicates the current build version.
var Version string

func main() {
	log.SetFlags(0)

	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, helpBanner, Version)
		os.Exit(2)
	}

	cfg, err := invhaar.ConfigFromEnv()
	if err != nil {
		log.Fatalf(utils.DecorateText("Invalid configuration: %v", utils.ErrorMessage), err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pipeline := &invhaar.Pipeline{Config: cfg}
	if utils.IsTerminal() {
		msg := fmt.Sprintf("%s %s",
			utils.DecorateText("⚡ INVHAAR", utils.StatusMessage),
			utils.DecorateText("⇢ solving the inverse cascade (be patient, it may take a while)...", utils.DefaultMessage),
		)
		pipeline.Spinner = utils.NewSpinner(msg, 80*time.Millisecond)
	}

	report, err := pipeline.Execute(ctx, os.Args[1])
	if err != nil {
		log.Fatalf(
			utils.DecorateText("\nError inverting the cascade: %s", utils.ErrorMessage),
			utils.DecorateText(fmt.Sprintf("\n\tReason: %v\n", err), utils.DefaultMessage),
		)
	}

	fmt.Fprintf(os.Stderr, "\nThe solved image has been saved as: %s %s\n",
		utils.DecorateText(filepath.Base(report.Output), utils.SuccessMessage),
		utils.DefaultColor,
	)
	for _, face := range report.Faces {
		if face.Code != 1 {
			fmt.Fprintln(os.Stderr, utils.DecorateText(
				fmt.Sprintf("Face at %v rejected by stage %d", face.Rect, -face.Code), utils.WarningMessage))
		}
	}
	fmt.Fprintf(os.Stderr, "Execution time: %s\n",
		utils.DecorateText(utils.FormatTime(report.Elapsed), utils.SuccessMessage))
}
