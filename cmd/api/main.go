package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/familyboard/core/cmd/api/commands"
)

// @title FamilyBoard API
// @version 1.0
// @description Family task board node: tasks, deadline reminders, completion notices and the push relay

// @host localhost:8080
// @BasePath /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the session token.

func main() {
	rootCmd := &cobra.Command{
		Use:   "familyboard",
		Short: "FamilyBoard node",
		Long:  `FamilyBoard runs one family board node: it mirrors the shared task list, sends deadline reminders and completion notices, and relays push notifications.`,
	}

	rootCmd.AddCommand(commands.NewServeCommand())
	rootCmd.AddCommand(commands.NewMigrateCommand())
	rootCmd.AddCommand(commands.NewPushCommand())
	rootCmd.AddCommand(commands.NewVersionCommand())

	if err := rootCmd.Execute(); err != nil {
		log.Printf("Command execution failed: %v", err)
		os.Exit(1)
	}
}
