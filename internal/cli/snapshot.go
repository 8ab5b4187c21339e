package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSnapshotCommand() *cobra.Command {
	var concurrency int

	cmd := &cobra.Command{
		Use:   "snapshot [server...]",
		Short: "Map servers and write their schema trees to object storage",
		RunE: func(cmd *cobra.Command, args []string) error {
			e := envFrom(cmd)
			a, err := newApp(e.cfg, e.log, args...)
			if err != nil {
				return err
			}
			defer a.close()

			ctx := cmd.Context()
			exp, err := a.exporter(ctx)
			if err != nil {
				return err
			}

			reg, mapErr := a.mapServers(ctx, concurrency)
			written, err := exp.ExportAll(ctx, reg)
			for _, o := range written {
				fmt.Fprintf(cmd.OutOrStdout(), "%s/%s\n", exp.Bucket(), o.Key)
			}
			if mapErr != nil {
				return mapErr
			}
			return err
		},
	}
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "max servers mapped at once (0 = all)")

	cmd.AddCommand(&cobra.Command{
		Use:   "list <server>",
		Short: "List stored snapshots of a server, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e := envFrom(cmd)
			a := &app{cfg: e.cfg, log: e.log}
			exp, err := a.exporter(cmd.Context())
			if err != nil {
				return err
			}
			objs, err := exp.List(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for _, o := range objs {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\t%s\n", o.Key, o.Size, o.LastModified.UTC().Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	})
	return cmd
}
