// ./main.go
package main

import (
	"github.com/xkilldash9x/ventriloquist/cmd"
)

// main is the entry point for the ventriloquist CLI.
func main() {
	cmd.Execute()
}
