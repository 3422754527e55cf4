// Command ledgerctl is the operator CLI for the posting engine. It talks to
// the database directly through the same wiring as the server.
package main

import (
	"fmt"
	"os"
)

func main() {
	root := newRootCmd(openSession, os.Stdout)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
