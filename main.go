// The main package for the wikichron executable.
package main

import (
	"github.com/chronicleworks/wikichron/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
