package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"asset-tiles/internal/itemstore"
)

const defaultTimeout = 30 * time.Second

var (
	storePath    string
	storeBackend string
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\ninterrupted")
		cancel()
	}()

	root := newRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "tilemeta",
		Short: "Inspect and edit asset library annotations",
		Long: `tilemeta reads and writes the rating and color-tag annotations the
gallery keeps for each asset archive.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&storePath, "store", ".asset-tiles.db",
		"annotation store path")
	root.PersistentFlags().StringVar(&storeBackend, "backend", "sqlite",
		"store backend: sqlite or bolt")

	root.AddCommand(newGetCmd(), newRateCmd(), newColorCmd(), newListCmd())
	return root
}

// openStore opens the selected backend.
func openStore(ctx context.Context) (itemstore.Store, error) {
	switch storeBackend {
	case "bolt":
		return itemstore.NewBolt(storePath)
	case "sqlite":
		return itemstore.NewSQLite(ctx, storePath)
	default:
		return nil, fmt.Errorf("unknown backend %q (want sqlite or bolt)", storeBackend)
	}
}

// withStore runs fn against an open store with a bounded context.
func withStore(cmd *cobra.Command, fn func(ctx context.Context, s itemstore.Store) error) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), defaultTimeout)
	defer cancel()

	s, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(ctx, s)
}

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <path>",
		Short: "Show the annotations for one archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, s itemstore.Store) error {
				rec, err := s.Item(ctx, args[0])
				if err != nil {
					return err
				}
				if rec.IsZero() {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: no annotations\n", args[0])
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), formatRecord(rec))
				return nil
			})
		},
	}
}

func newRateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rate <path> <0-5>",
		Short: "Set the star rating (0 clears it)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rating, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("rating must be a number: %w", err)
			}
			return withStore(cmd, func(ctx context.Context, s itemstore.Store) error {
				if err := s.SetRating(ctx, args[0], rating); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s rated %d\n",
					args[0], itemstore.ClampRating(rating))
				return nil
			})
		},
	}
}

func newColorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "color <path> [tag]",
		Short: "Set the color tag; omit the tag to clear it",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tag := ""
			if len(args) == 2 {
				tag = args[1]
			}
			return withStore(cmd, func(ctx context.Context, s itemstore.Store) error {
				if err := s.SetColorTag(ctx, args[0], tag); err != nil {
					return err
				}
				if tag == "" {
					fmt.Fprintf(cmd.OutOrStdout(), "%s color cleared\n", args[0])
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "%s tagged %s\n", args[0], tag)
				}
				return nil
			})
		},
	}
}

func newListCmd() *cobra.Command {
	var minRating int
	var color string

	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List annotated archives",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, s itemstore.Store) error {
				var recs []itemstore.Record
				var err error
				if color != "" {
					recs, err = s.ListByColorTag(ctx, color)
				} else {
					recs, err = s.ListByMinRating(ctx, minRating)
				}
				if err != nil {
					return err
				}
				for _, rec := range recs {
					fmt.Fprint(cmd.OutOrStdout(), formatRecord(rec))
				}
				if len(recs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "no matching archives")
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&minRating, "min-rating", 0, "minimum rating to include")
	cmd.Flags().StringVar(&color, "color", "", "filter by color tag instead")
	return cmd
}

// formatRecord renders one annotation line: stars, tag, path.
func formatRecord(rec itemstore.Record) string {
	stars := ""
	for i := 0; i < itemstore.MaxRating; i++ {
		if i < rec.Rating {
			stars += "*"
		} else {
			stars += "."
		}
	}
	tag := rec.ColorTag
	if tag == "" {
		tag = "-"
	}
	return fmt.Sprintf("%s  %-8s  %s\n", stars, tag, rec.Path)
}
