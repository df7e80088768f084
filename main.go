// The main package for the googlrot executable.
package main

import (
	"github.com/saveweb/googlrot/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
