package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	_ "github.com/noah-isme/clinic-scheduler-api/api/swagger"
)

// @title Clinic Scheduler API
// @version 1.0.0
// @description Provider availability and patient booking service.
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	root := &cobra.Command{
		Use:   "scheduler-api",
		Short: "Clinic appointment scheduling service",
	}
	root.AddCommand(serveCmd(), workerCmd(), migrateCmd(), tokenCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
