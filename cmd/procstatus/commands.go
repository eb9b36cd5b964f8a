package main

import (
	"context"
	"fmt"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/matiasleandrokruk/procstatus/internal/api"
	domainaudit "github.com/matiasleandrokruk/procstatus/internal/domain/audit"
	"github.com/matiasleandrokruk/procstatus/internal/domain/recordstatus"
	"github.com/matiasleandrokruk/procstatus/internal/domain/seed"
	"github.com/matiasleandrokruk/procstatus/internal/infra/sqlite"
	"github.com/matiasleandrokruk/procstatus/internal/server"
	"github.com/matiasleandrokruk/procstatus/internal/version"
	"github.com/matiasleandrokruk/procstatus/pkg/auth"
)

const sweepInterval = time.Minute

func serveCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := auth.CheckSecret(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := openApp(ctx, g.cfg)
			if err != nil {
				return err
			}
			defer a.close() //nolint:errcheck

			watcher := server.NewTransitionWatcher(a.registry, a.logger.Named("transitions"))
			go watcher.Run(ctx, a.bus.Subscribe(recordstatus.TopicStatusChanged))
			go sweep(ctx, a)

			router := api.NewRouter(api.Deps{
				Service:  a.service,
				Audit:    domainaudit.NewAuditService(a.db),
				Logger:   a.logger.Named("http"),
				Registry: a.registry,
			})
			cfg := server.DefaultConfig()
			cfg.Host, cfg.Port = g.cfg.HTTPHost, g.cfg.HTTPPort
			return server.NewServer(router, a.db, cfg, a.logger).Start(ctx)
		},
	}
	cmd.Flags().StringVar(&g.cfg.HTTPHost, "host", g.cfg.HTTPHost, "listen host")
	cmd.Flags().IntVar(&g.cfg.HTTPPort, "port", g.cfg.HTTPPort, "listen port")
	return cmd
}

// sweep drops expired entries of the in-process cache until ctx is done.
func sweep(ctx context.Context, a *app) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := a.memory.Sweep(); n > 0 {
				a.logger.Debug("cache swept", zap.Int("expired", n))
			}
		}
	}
}

func migrateCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context(), g.cfg)
			if err != nil {
				return err
			}
			defer a.close() //nolint:errcheck

			v, err := sqlite.MigrationVersion(cmd.Context(), a.db)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", v) //nolint:errcheck
			return nil
		},
	}
}

func seedCmd(g *globalFlags) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load modules, status fields and values from a YAML file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := seed.Load(file)
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), g.cfg)
			if err != nil {
				return err
			}
			defer a.close() //nolint:errcheck

			res, err := seed.Apply(cmd.Context(), a.service, f, a.logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d modules, %d fields, %d values; active: %v\n", //nolint:errcheck
				res.Modules, res.Fields, res.Values, res.Activated)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "./seed.yaml", "seed file")
	return cmd
}

func activateCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "activate <module> <field>",
		Short: "Make a picklist field the process status field of a module",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), g.cfg)
			if err != nil {
				return err
			}
			defer a.close() //nolint:errcheck

			ok, err := a.service.Activate(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("module %s has no field %s", args[0], args[1])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s status field: %s\n", args[0], args[1]) //nolint:errcheck
			return nil
		},
	}
}

func statesCmd(g *globalFlags) *cobra.Command {
	var state int
	cmd := &cobra.Command{
		Use:   "states <module>",
		Short: "List status values with their record state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), g.cfg)
			if err != nil {
				return err
			}
			defer a.close() //nolint:errcheck

			out := cmd.OutOrStdout()
			if cmd.Flags().Changed("state") {
				values, err := a.service.ValuesByState(cmd.Context(), args[0], recordstatus.RecordState(state))
				if err != nil {
					return err
				}
				for _, id := range sortedKeys(values) {
					fmt.Fprintf(out, "%d\t%s\n", id, values[id]) //nolint:errcheck
				}
				return nil
			}

			values, err := a.service.PicklistValues(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for _, v := range values {
				label := "-"
				if v.RecordState != nil {
					label = v.RecordState.Label()
				}
				fmt.Fprintf(out, "%d\t%s\t%s\n", v.ID, v.Value, label) //nolint:errcheck
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&state, "state", 0, "only values in this record state (0, 1, 2)")
	return cmd
}

func tokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "token <user-id>",
		Short: "Issue an API token for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := auth.GenerateJWT(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token) //nolint:errcheck
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String()) //nolint:errcheck
		},
	}
}

func sortedKeys[V any](m map[int64]V) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
