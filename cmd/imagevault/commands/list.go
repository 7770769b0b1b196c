package commands

import (
	"fmt"
	"strconv"

	"imagevault/pkg/lockpath"

	"github.com/spf13/cobra"
)

var listLimit int

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List assets in the vault",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireApp(); err != nil {
			return err
		}
		ctx := cmd.Context()

		assets, err := IV.Repo.ListAssets(ctx, listLimit)
		if err != nil {
			return fmt.Errorf("failed to list assets: %w", err)
		}
		if len(assets) == 0 {
			fmt.Println("No assets yet.")
			return nil
		}

		rows := make([][]string, 0, len(assets))
		for _, a := range assets {
			flag, err := IV.Repo.GetReleaseFlag(ctx, a.ID)
			if err != nil {
				return err
			}
			rows = append(rows, []string{
				a.ID.String(),
				a.File,
				strconv.Itoa(len(a.Variants)),
				strconv.FormatBool(lockpath.IsLocked(a.File)),
				flag.String(),
			})
		}
		fmt.Println(renderTable(
			[]string{"ID", "File", "Variants", "Protected", "Released"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
		))
		return nil
	},
}

func init() {
	listCmd.Flags().IntVarP(&listLimit, "limit", "n", 50, "Maximum number of assets (0 = all)")
	rootCmd.AddCommand(listCmd)
}
