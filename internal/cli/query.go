package cli

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

func newQueryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "query PHRASE",
		Short: "Execute one BQL phrase and print its rows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openDB()
			if err != nil {
				return err
			}
			defer b.Close()

			cur, err := b.Execute(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer cur.Close()

			w := table.NewWriter()
			w.SetOutputMirror(cmd.OutOrStdout())
			w.SetStyle(table.StyleLight)
			w.Style().Format.Header = text.FormatDefault

			header := table.Row{}
			for _, c := range cur.Columns() {
				header = append(header, c)
			}
			if len(header) > 0 {
				w.AppendHeader(header)
			}
			for cur.Next() {
				row := table.Row{}
				for _, v := range cur.Values() {
					row = append(row, v)
				}
				w.AppendRow(row)
			}
			if err := cur.Err(); err != nil {
				return err
			}
			if len(header) > 0 {
				w.Render()
			}
			return nil
		},
	}
}
