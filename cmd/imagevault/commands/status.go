package commands

import (
	"fmt"
	"strconv"

	"imagevault/pkg/asset"
	"imagevault/pkg/lockpath"
	"imagevault/pkg/types"

	"github.com/spf13/cobra"
)

var statusCheck bool

var statusCmd = &cobra.Command{
	Use:   "status <asset-id>",
	Short: "Show the vault state of an asset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireApp(); err != nil {
			return err
		}
		ctx := cmd.Context()
		id := types.AssetID(args[0])

		// --check: 只输出 released 标记，供脚本轮询
		if statusCheck {
			released, err := IV.Vault.CheckReleased(ctx, id)
			if err != nil {
				return err
			}
			fmt.Println(strconv.FormatBool(released))
			return nil
		}

		st, err := IV.Vault.Status(ctx, id)
		if err != nil {
			return err
		}
		a, err := IV.Repo.GetAssetDescriptor(ctx, id)
		if err != nil {
			return err
		}

		copyright := st.Copyright
		if copyright == "" {
			copyright = "-"
		}
		fmt.Printf("Asset:     %s\n", st.Asset)
		fmt.Printf("File:      %s\n", st.File)
		fmt.Printf("Protected: %t\n", st.Protected)
		fmt.Printf("Released:  %s\n", st.Flag)
		fmt.Printf("Copyright: %s\n", copyright)
		if len(a.Variants) > 0 {
			fmt.Println(renderTable(
				[]string{"Variant", "File", "Size", "Locked"},
				variantRows(a),
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
			))
		}
		return nil
	},
}

func variantRows(a *asset.Asset) [][]string {
	rows := make([][]string, 0, len(a.Variants))
	for _, v := range a.Variants {
		rows = append(rows, []string{
			v.Name,
			v.File,
			fmt.Sprintf("%dx%d", v.Width, v.Height),
			strconv.FormatBool(lockpath.IsLocked(v.File)),
		})
	}
	return rows
}

func init() {
	statusCmd.Flags().BoolVar(&statusCheck, "check", false, "Print only whether the asset is released")
	rootCmd.AddCommand(statusCmd)
}
