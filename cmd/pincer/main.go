// Command pincer is the developer toolkit: servers, migrations, seeding and
// operator helpers.
package main

import (
	"os"

	"github.com/Additional-Code/pincer/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
