package commands

import (
	"fmt"

	"imagevault/pkg/pixelate"

	"github.com/spf13/cobra"
)

var (
	pixelateBX int
	pixelateBY int
)

var pixelateCmd = &cobra.Command{
	Use:   "pixelate <src> <dst>",
	Short: "Write a pixelated copy of an image (preview, no vault state involved)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := pixelate.File(args[0], args[1], pixelateBX, pixelateBY); err != nil {
			return err
		}
		fmt.Printf("✅ Wrote %s\n", args[1])
		return nil
	},
}

func init() {
	pixelateCmd.Flags().IntVar(&pixelateBX, "bx", pixelate.DefaultBlockSize, "Block width per 100 pixels")
	pixelateCmd.Flags().IntVar(&pixelateBY, "by", pixelate.DefaultBlockSize, "Block height per 100 pixels")
	rootCmd.AddCommand(pixelateCmd)
}
