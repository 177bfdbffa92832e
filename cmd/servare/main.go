// Command servare is the entry point for the servare feed reader:
// the API server plus Job Runner (serve), schema migrations
// (migrate), an operator healthcheck probe (healthcheck), and user
// provisioning (create-user).
package main

import (
	"fmt"
	"os"

	"github.com/vrischmann/servare/internal/app"
)

func main() {
	if err := app.Run(os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
