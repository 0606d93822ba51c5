package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"
	"github.com/tendant/documentum/pkg/documentum"
	"github.com/tendant/documentum/pkg/documentum/repo/postgres/migrations"
)

// NewMigrateCommand creates the migrate command
func NewMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the PostgreSQL schema",
	}

	runWithDB := func(cmd *cobra.Command, fn func(status func() (migrations.Status, error), up func() error) error) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cfg.DatabaseType != "postgres" {
			return fmt.Errorf("migrations need a postgres database_url")
		}
		pool, err := cfg.OpenPool(context.Background())
		if err != nil {
			return err
		}
		defer pool.Close()
		db := stdlib.OpenDBFromPool(pool)
		defer db.Close()
		return fn(
			func() (migrations.Status, error) { return migrations.GetStatus(db) },
			func() error { return migrations.MigrateUp(db) },
		)
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithDB(cmd, func(status func() (migrations.Status, error), up func() error) error {
				if err := up(); err != nil {
					return fmt.Errorf("migrate up: %w", err)
				}
				st, err := status()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d\n", st.Version)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithDB(cmd, func(status func() (migrations.Status, error), _ func() error) error {
				st, err := status()
				if err != nil {
					return err
				}
				if useJSON(cmd) {
					return printJSON(cmd.OutOrStdout(), st)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "version: %d\nlatest: %d\ndirty: %t\nup to date: %t\n",
					st.Version, st.Latest, st.Dirty, st.UpToDate())
				return nil
			})
		},
	})

	return cmd
}

func parseUUIDArg(name, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s %q: %w", name, raw, err)
	}
	return id, nil
}

// NewVersionsCommand creates the versions command
func NewVersionsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "versions",
		Short: "Inspect and change project versions",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list <projet-id>",
		Short: "List the versions of a projet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projetID, err := parseUUIDArg("projet id", args[0])
			if err != nil {
				return err
			}
			return withService(cmd, func(ctx context.Context, svc documentum.Service) error {
				versions, err := svc.ListVersions(ctx, projetID)
				if err != nil {
					return err
				}
				if useJSON(cmd) {
					return printJSON(cmd.OutOrStdout(), versions)
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tVERSION\tSTATE\tLAUNCHED")
				for _, v := range versions {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", v.ID, v.VersionNumero, v.State(), v.DateLancement.Format(time.DateOnly))
				}
				return w.Flush()
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "activate <version-id>",
		Short: "Make a version the active one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			versionID, err := parseUUIDArg("version id", args[0])
			if err != nil {
				return err
			}
			return withService(cmd, func(ctx context.Context, svc documentum.Service) error {
				n, err := svc.Activate(ctx, versionID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "activated %s (%d deactivated)\n", versionID, n)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "archive <projet-id>",
		Short: "Archive every non-active version of a projet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projetID, err := parseUUIDArg("projet id", args[0])
			if err != nil {
				return err
			}
			return withService(cmd, func(ctx context.Context, svc documentum.Service) error {
				n, err := svc.ArchiveNonActive(ctx, projetID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "archived %d version(s)\n", n)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clone <version-id>",
		Short: "Copy a version and all its rubriques",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			versionID, err := parseUUIDArg("version id", args[0])
			if err != nil {
				return err
			}
			return withService(cmd, func(ctx context.Context, svc documentum.Service) error {
				v, err := svc.Clone(ctx, versionID)
				if err != nil {
					return err
				}
				if useJSON(cmd) {
					return printJSON(cmd.OutOrStdout(), v)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s)\n", v.ID, v.VersionNumero)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "verify <projet-id>",
		Short: "Check that a projet has exactly one active version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projetID, err := parseUUIDArg("projet id", args[0])
			if err != nil {
				return err
			}
			return withService(cmd, func(ctx context.Context, svc documentum.Service) error {
				if err := svc.VerifyVersions(ctx, projetID); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "ok")
				return nil
			})
		},
	})

	return cmd
}

// NewTemplateCommand creates the template command
func NewTemplateCommand() *cobra.Command {
	var params documentum.TemplateParams
	var fonctionnalites string

	cmd := &cobra.Command{
		Use:   "template",
		Short: "Print a DITA topic skeleton",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if fonctionnalites != "" {
				for _, code := range strings.Split(fonctionnalites, ",") {
					if code = strings.TrimSpace(code); code != "" {
						params.Fonctionnalites = append(params.Fonctionnalites, code)
					}
				}
			}
			if params.Auteur == "" {
				params.Auteur, _ = cmd.Flags().GetString("actor")
			}
			fmt.Fprint(cmd.OutOrStdout(), documentum.GenerateTemplate(params))
			return nil
		},
	}

	cmd.Flags().StringVar(&params.Type, "type", "topic", "DITA type: topic, concept, task or reference")
	cmd.Flags().StringVar(&params.Titre, "title", "", "topic title")
	cmd.Flags().StringVar(&params.Auteur, "author", "", "author (defaults to --actor)")
	cmd.Flags().StringVar(&params.Audience, "audience", "", "target audience")
	cmd.Flags().StringVar(&params.Version, "product-version", "", "product version")
	cmd.Flags().StringVar(&params.Produit, "produit", "", "product name")
	cmd.Flags().StringVar(&fonctionnalites, "fonctionnalites", "", "comma separated feature codes")
	cmd.Flags().StringVar(&params.IDPrefix, "id-prefix", "", "topic id prefix")

	return cmd
}

// NewTaxonomyCommand creates the taxonomy command
func NewTaxonomyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "taxonomy",
		Short: "Manage classification records",
	}

	var kind, file string
	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Import taxa from a CSV file (columns: nom,description,code,abreviation,parent)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(file)
			if err != nil {
				return fmt.Errorf("open %s: %w", file, err)
			}
			defer f.Close()

			return withService(cmd, func(ctx context.Context, svc documentum.Service) error {
				taxa, err := svc.ImportTaxa(ctx, documentum.TaxonKind(kind), f)
				if err != nil {
					return err
				}
				if useJSON(cmd) {
					return printJSON(cmd.OutOrStdout(), taxa)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported %d %s record(s)\n", len(taxa), kind)
				return nil
			})
		},
	}
	importCmd.Flags().StringVar(&kind, "kind", "", "taxon kind: gamme, produit, fonctionnalite, audience, tag or interface")
	importCmd.Flags().StringVar(&file, "file", "", "CSV file to import")
	_ = importCmd.MarkFlagRequired("kind")
	_ = importCmd.MarkFlagRequired("file")
	cmd.AddCommand(importCmd)

	return cmd
}
