package main

import (
	"fmt"
	"io"
	"os"

	_ "github.com/joho/godotenv/autoload" // Autoload .env file.

	"github.com/vecollab/backend/cmd/app"
)

// @title        VE collaboration API
// @version      1.0
// @description  Backend of the virtual exchange collaboration platform.
// @BasePath     /api/v1
//
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Bearer token issued by the identity provider
func main() {
	os.Exit(run(app.Start, os.Stderr))
}

// run starts the service and maps a startup or shutdown failure to a non-zero exit code.
func run(start func() error, stderr io.Writer) int {
	if err := start(); err != nil {
		fmt.Fprintf(stderr, "vecollab: %v\n", err)
		return 1
	}

	return 0
}
