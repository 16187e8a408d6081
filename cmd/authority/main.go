// Command authority es el servidor de autorización y sus tareas de operación.
package main

import (
	"fmt"
	"os"
)

// version se sobreescribe con -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}
