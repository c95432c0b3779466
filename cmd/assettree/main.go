// # cmd/assettree/main.go
package main

import (
	"assettree/internal/ui/cli"
	"os"
)

func main() {
	os.Exit(cli.Run(os.Args[1:]))
}
