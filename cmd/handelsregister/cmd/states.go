package cmd

import (
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/twentylab/handelsregister/lib/bundesland"
)

func init() {
	rootCmd.AddCommand(statesCmd)
}

var statesCmd = &cobra.Command{
	Use:   "states",
	Short: "Prints the state codes accepted by the --bundesland flag.",
	Run: func(cmd *cobra.Command, args []string) {
		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Code", "Name", "Form Field"})

		for _, state := range bundesland.List() {
			t.AppendRow(table.Row{
				state.Code,
				state.NameDE,
				bundesland.FormField(state.Code),
			})
		}

		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}
