package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newQueryCommand() *cobra.Command {
	var exec bool

	cmd := &cobra.Command{
		Use:   "query <server> <statement> [arg...]",
		Short: "Run a statement with retry and print the rows as JSON lines",
		Long: `Run a statement through the retrying executor. Write placeholders as ?;
they are rewritten for the server's dialect. Extra arguments bind in order.`,
		Example: `  dbmap query shop "SELECT id, name FROM customers WHERE country = ?" NL
  dbmap query shop --exec "DELETE FROM sessions WHERE expired = 1"`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e := envFrom(cmd)
			a, err := newApp(e.cfg, e.log, args[0])
			if err != nil {
				return err
			}
			defer a.close()

			ex, err := a.executor(args[0])
			if err != nil {
				return err
			}

			binds := make([]any, len(args)-2)
			for i, v := range args[2:] {
				binds[i] = v
			}

			if exec {
				res, err := ex.Exec(cmd.Context(), args[1], binds...)
				if err != nil {
					return err
				}
				n, _ := res.RowsAffected()
				fmt.Fprintf(cmd.OutOrStdout(), "%d rows affected\n", n)
				return nil
			}

			rows, err := ex.FetchAll(cmd.Context(), args[1], binds...)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, row := range rows {
				// MySQL returns text columns as []byte; print them as text, not base64.
				for k, v := range row {
					if b, ok := v.([]byte); ok {
						row[k] = string(b)
					}
				}
				if err := enc.Encode(row); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&exec, "exec", false, "run a statement that returns no rows")
	return cmd
}
