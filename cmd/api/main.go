// Command api runs the pincer HTTP and gRPC servers.
package main

import (
	"go.uber.org/fx"

	"github.com/Additional-Code/pincer/internal/app"
)

func main() {
	fx.New(app.Module).Run()
}
