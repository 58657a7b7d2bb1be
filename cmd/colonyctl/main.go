// Command colonyctl records breeding, birth, weaning and sacrifice events
// against a colony record store.
package main

import (
	"os"
)

func main() {
	if err := run(newApp(os.Stdin, os.Stdout, os.Stderr), os.Args[1:]); err != nil {
		os.Exit(1)
	}
}
