package cli

import (
	"github.com/koustreak/dbmap/internal/api"
	"github.com/koustreak/dbmap/internal/registry"
	"github.com/spf13/cobra"
)

func newServeCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Map servers in the background and browse them over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e := envFrom(cmd)
			a, err := newApp(e.cfg, e.log)
			if err != nil {
				return err
			}
			defer a.close()

			ctx := cmd.Context()
			reg := registry.New(registry.WithLogger(e.log))
			if err := reg.MapServers(ctx, registry.MapOptions{}, a.targets()...); err != nil {
				return err
			}

			opts := []api.Option{api.WithLogger(e.log)}
			if e.cfg.Snapshot.Enabled() {
				exp, err := a.exporter(ctx)
				if err != nil {
					return err
				}
				opts = append(opts, api.WithSnapshots(exp))
			}

			if addr == "" {
				addr = e.cfg.HTTP.Addr
			}
			return api.New(reg, opts...).Serve(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	return cmd
}
