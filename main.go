package main

import (
	"SampleDeck/cmd"
)

func main() {
	// Cobra calls os.Exit on failure; long-running commands block inside Execute.
	cmd.Execute()
}
