package commands

import (
	"fmt"
	"html"
	"strings"
	"time"

	"imagevault/pkg/lockpath"
	"imagevault/pkg/types"

	"github.com/spf13/cobra"
)

var htmlBaseURL string

var htmlCmd = &cobra.Command{
	Use:   "html <asset-id>",
	Short: "Print an <img> tag for an asset with a cache-busting query",
	Long: `The locked and released renditions can share a URL across transitions,
so the reference gets a timestamp query to force browsers to refetch it.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireApp(); err != nil {
			return err
		}
		a, err := IV.Repo.GetAssetDescriptor(cmd.Context(), types.AssetID(args[0]))
		if err != nil {
			return err
		}
		src := strings.TrimSuffix(htmlBaseURL, "/") + "/" + a.File
		tag := fmt.Sprintf(`<img src="%s" alt="%s" />`, html.EscapeString(src), html.EscapeString(a.ID.String()))
		fmt.Println(lockpath.CacheBust(tag, time.Now().Unix()))
		return nil
	},
}

func init() {
	htmlCmd.Flags().StringVar(&htmlBaseURL, "base-url", "/uploads", "URL prefix of the media library")
	rootCmd.AddCommand(htmlCmd)
}
