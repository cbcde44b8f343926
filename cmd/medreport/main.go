// Package main is the entry point for the medical report analysis service.
package main

import (
	_ "go.uber.org/automaxprocs/maxprocs"

	"github.com/kart-io/medreport/cmd/medreport/app"
)

func main() {
	app.NewApp().Run()
}
