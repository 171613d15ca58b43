// The main package for the employee-store executable.
package main

import (
	"github.com/JakeFAU/employee-store/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
