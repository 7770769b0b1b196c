package commands

import (
	"fmt"
	"os"

	"imagevault/pkg/types"

	"github.com/spf13/cobra"
)

var copyrightClear bool

var copyrightCmd = &cobra.Command{
	Use:   "copyright <asset-id> [value]",
	Short: "Show or set the copyright record of an asset",
	Long: `Without a value, prints the current copyright record.
With a value, stores it and releases the asset. --clear removes the record and locks the asset again.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireApp(); err != nil {
			return err
		}
		ctx := cmd.Context()
		id := types.AssetID(args[0])

		if len(args) == 1 && !copyrightClear {
			st, err := IV.Vault.Status(ctx, id)
			if err != nil {
				return err
			}
			if st.Copyright == "" {
				fmt.Println("(no copyright record)")
			} else {
				fmt.Println(st.Copyright)
			}
			return nil
		}

		value := ""
		if len(args) == 2 {
			value = args[1]
		}
		res, err := IV.Vault.SetCopyright(ctx, id, value)
		printResult(os.Stdout, res, err)
		return err
	},
}

func init() {
	copyrightCmd.Flags().BoolVar(&copyrightClear, "clear", false, "Remove the copyright record")
	rootCmd.AddCommand(copyrightCmd)
}
