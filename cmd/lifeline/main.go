// Command lifeline supervises resource connections and serves their status.
package main

import (
	_ "go.uber.org/automaxprocs"

	"github.com/kart-io/lifeline/internal/lifeline"
)

func main() {
	lifeline.NewApp().Run()
}
