// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/content-engine/internal/app"
	"github.com/pdiddy/content-engine/internal/web"
	"github.com/pdiddy/content-engine/pkg/types"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the browser form",
	Long: `Serve starts an HTTP server with a form for the topic and the Groq and
Serper keys. Keys entered in the form are used for that run only; keys from
the server configuration are used when the fields are left blank. Each run
shows live progress, tabbed results and file downloads.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default 127.0.0.1:8080)")
	viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	store := openHistory(cfg.History, logger)
	if store != nil {
		defer store.Close()
	}

	srv := web.NewServer(cfg, func(c types.PipelineConfig) web.Engine {
		return app.New(c, store, logger)
	}, logger)
	return srv.ListenAndServe(cmd.Context(), cfg.Server)
}
