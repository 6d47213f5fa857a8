package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/botdeckhq/botdeck/internal/config"
	"github.com/botdeckhq/botdeck/internal/db"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "botdeck",
		Short: "Chatbot deployment message-routing service",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the webhook server and platform receivers",
			Run: func(cmd *cobra.Command, args []string) {
				runServe()
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply pending database migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := config.Load(configPath)
				if err != nil {
					return err
				}
				return db.Migrate(cfg.Postgres)
			},
		},
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
