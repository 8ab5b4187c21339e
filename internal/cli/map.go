package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/koustreak/dbmap/internal/registry"
	"github.com/spf13/cobra"
)

func newMapCommand() *cobra.Command {
	var (
		asJSON      bool
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "map [server...]",
		Short: "Introspect servers and print their schema trees",
		Example: `  # Map every configured server
  dbmap map

  # Map one server and print JSON
  dbmap map shop --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e := envFrom(cmd)
			a, err := newApp(e.cfg, e.log, args...)
			if err != nil {
				return err
			}
			defer a.close()

			reg, mapErr := a.mapServers(cmd.Context(), concurrency)
			// Print what did map before reporting failures.
			if asJSON {
				if err := printJSON(cmd.OutOrStdout(), reg); err != nil {
					return err
				}
			} else {
				printTree(cmd.OutOrStdout(), reg)
			}
			return mapErr
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a tree")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "max servers mapped at once (0 = all)")
	return cmd
}

func printJSON(w io.Writer, reg *registry.Registry) error {
	out := make([]any, 0)
	for _, name := range reg.Names() {
		if srv, err := reg.Server(name); err == nil {
			out = append(out, srv)
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func printTree(w io.Writer, reg *registry.Registry) {
	for _, name := range reg.Names() {
		entry, ok := reg.Lookup(name)
		if !ok {
			continue
		}
		srv := entry.Server
		fmt.Fprintf(w, "%s (%d schemas, %s)\n", srv.Name(), srv.Len(), entry.Took.Round(time.Millisecond))
		for _, sc := range srv.Schemas() {
			fmt.Fprintf(w, "  %s\n", sc.Name())
			for _, tbl := range sc.Tables() {
				fmt.Fprintf(w, "    %s\n", tbl.Name())
				for _, col := range tbl.Columns() {
					fmt.Fprintf(w, "      %-3d %s %s%s\n", col.Position, col.Name, col.Type, columnFlags(col.PrimaryKey, col.AutoIncrement, col.Nullable, col.MaxLength))
				}
			}
		}
	}
}

func columnFlags(pk, auto, nullable bool, maxLen int) string {
	s := ""
	if maxLen >= 0 {
		s += fmt.Sprintf("(%d)", maxLen)
	}
	if pk {
		s += " PK"
	}
	if auto {
		s += " AUTO"
	}
	if !nullable {
		s += " NOT NULL"
	}
	return s
}
