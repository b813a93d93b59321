// v0
// cmd/codecheck/main.go
package main

import (
	"fmt"
	"os"

	"github.com/auton88n/tradeayn-sub003/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "codecheck:", err)
		os.Exit(1)
	}
}
