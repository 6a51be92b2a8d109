package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"locations-server/internal/auth"
	"locations-server/internal/ingest"
	"locations-server/internal/search"
	"locations-server/internal/shared/config"
)

func newUploadCmd() *cobra.Command {
	var schemaName string

	cmd := &cobra.Command{
		Use:   "upload <csv>",
		Short: "Load a CSV export into the catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if schemaName == "" {
				schemaName = config.GlobalConfig.Ingest.Schema
			}
			schema, err := ingest.SchemaByName(schemaName)
			if err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.Catalog.Upload(ctx, f, schema)
			if err != nil {
				return err
			}
			return printJSON(cmd, result)
		},
	}
	cmd.Flags().StringVar(&schemaName, "schema", "", "column layout: full or reduced (default from INGEST_SCHEMA)")
	return cmd
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete",
		Short: "Remove every location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.Catalog.DeleteAll(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd, report)
		},
	}
}

func newTouchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "touch",
		Short: "Mark the data updated and clear search caches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			last, err := a.Catalog.Touch(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), last.Format(time.RFC3339Nano))
			return nil
		},
	}
}

func newTestCmd() *cobra.Command {
	var runs int

	cmd := &cobra.Command{
		Use:   "test <queries.json>",
		Short: "Time every search strategy on groups of queries and report mismatches",
		Long: "The queries file maps a group name to a list of queries, for example\n" +
			`{"short": ["Н", "Но"], "long": ["Новосибирск"]}`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			groups, err := readQueryGroups(args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			reports, err := search.Compare(ctx, a.Engine, groups, runs)
			if err != nil {
				return err
			}
			return printJSON(cmd, reports)
		},
	}
	cmd.Flags().IntVar(&runs, "runs", 3, "repetitions per query and strategy")
	return cmd
}

func newTokenCmd() *cobra.Command {
	var (
		subject string
		role    string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a signed token for the admin endpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if ttl == 0 {
				ttl = config.GlobalConfig.Auth.TokenExpiration
			}
			token, err := auth.GenerateJWT(subject, role, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "admin", "token subject")
	cmd.Flags().StringVar(&role, "role", auth.RoleAdmin, "token role")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default from JWT_EXPIRATION_HOURS)")
	return cmd
}

func readQueryGroups(path string) (map[string][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var groups map[string][]string
	if err := json.Unmarshal(data, &groups); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if len(groups) == 0 {
		return nil, fmt.Errorf("%s has no query groups", path)
	}
	return groups, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
