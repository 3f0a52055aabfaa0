// The main package for the pagemill executable.
package main

import "github.com/pagemill/pagemill/cmd"

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
