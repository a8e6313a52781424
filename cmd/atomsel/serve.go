package main

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/praetorian-inc/atomsel/pkg/scanner"
	"github.com/praetorian-inc/atomsel/pkg/serve"
	"github.com/praetorian-inc/atomsel/pkg/store"
	"github.com/spf13/cobra"
)

var (
	serveRulesPath    string
	serveRulesInclude string
	serveRulesExclude string
	serveContext      int
	serveCache        string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run as a streaming NDJSON server on stdin/stdout",
	Long: `Run atomsel as a long-lived process that reads requests from stdin and
writes responses to stdout, one JSON document per line.

Rules are compiled once at startup. Request types are scan, scan_batch,
atoms, quality and close. The process exits when stdin closes or on SIGTERM.`,
	RunE: runServe,
}

func init() {
	addRuleFlags(serveCmd, &serveRulesPath, &serveRulesInclude, &serveRulesExclude)
	serveCmd.Flags().IntVar(&serveContext, "context", 32, "Bytes of context kept around each match")
	serveCmd.Flags().StringVar(&serveCache, "cache", "", "SQLite database caching atom selections")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(commandContext(cmd), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	rules, err := loadRules(serveRulesPath, serveRulesInclude, serveRulesExclude)
	if err != nil {
		return err
	}

	coreCfg := scanner.Config{
		Rules:          rules,
		Limits:         cfg.Compile.Limits,
		SnippetContext: serveContext,
		Logger:         slog.Default(),
	}
	if serveCache != "" {
		s, err := store.New(store.Config{Path: serveCache})
		if err != nil {
			return fmt.Errorf("opening atom cache: %w", err)
		}
		defer s.Close()
		coreCfg.Cache = s
	}

	core, err := scanner.NewCore(ctx, coreCfg)
	if err != nil {
		printDiagnostic(cmd.ErrOrStderr(), err)
		return err
	}
	defer core.Close()

	srv := serve.NewServer(core, cmd.InOrStdin(), cmd.OutOrStdout())
	if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
