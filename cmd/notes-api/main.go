package main

import (
	"os"
)

func main() {
	exitCode := Run()
	os.Exit(exitCode)
}

func Run() int {
	if err := rootCmd.Execute(); err != nil {
		return 1
	}
	return 0
}
