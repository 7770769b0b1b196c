package commands

import (
	"context"
	"fmt"
	"os"

	"imagevault/pkg/types"
	"imagevault/pkg/vault"

	"github.com/spf13/cobra"
)

type transitionFunc func(v *vault.Vault, ctx context.Context, id types.AssetID) (*vault.Result, error)

// transitionCmd 为每个 id 调用一次状态机，全部处理完后汇总失败
func transitionCmd(use, short string, fn transitionFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <asset-id>...",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireApp(); err != nil {
				return err
			}
			failed := 0
			for _, arg := range args {
				res, err := fn(IV.Vault, cmd.Context(), types.AssetID(arg))
				printResult(os.Stdout, res, err)
				if err != nil {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d assets failed", failed, len(args))
			}
			return nil
		},
	}
}

var (
	lockCmd    = transitionCmd("lock", "Pixelate an asset and restrict its permissions", (*vault.Vault).Lock)
	releaseCmd = transitionCmd("release", "Restore the original renditions of a locked asset", (*vault.Vault).Release)
	syncCmd    = transitionCmd("sync", "Lock or release an asset depending on its copyright record", (*vault.Vault).Sync)
)

func init() {
	rootCmd.AddCommand(lockCmd, releaseCmd, syncCmd)
}
