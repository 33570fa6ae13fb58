package main

import (
	"github.com/rjlutz/CCSCGoertzel/cmd"
	"github.com/rjlutz/CCSCGoertzel/internal/recovery"
)

func main() {
	defer recovery.HandlePanic()
	cmd.Execute()
}
