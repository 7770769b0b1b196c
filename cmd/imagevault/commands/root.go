package commands

import (
	"context"
	"fmt"
	"os"

	"imagevault/pkg/app"
	"imagevault/pkg/config"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	// 全局应用实例，供子命令使用
	IV *app.App
)

// 这些命令不需要完整的 App
var standalone = map[string]bool{
	"init":     true,
	"pixelate": true,
	"help":     true,
}

var rootCmd = &cobra.Command{
	Use:          "imagevault",
	Short:        "ImageVault: copyright-gated image library",
	SilenceUsage: true,
	// PersistentPreRunE 会在所有子命令执行前运行
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if standalone[cmd.Name()] || IV != nil {
			return nil
		}

		var err error
		IV, err = app.NewApp(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to initialize imagevault: %w\n(Did you run 'imagevault init'?)", err)
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if IV == nil {
			return nil
		}
		err := IV.Close()
		IV = nil
		return err
	},
}

// Execute 是入口
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./.imagevault/config.yaml)")

	// 用户既可以在 yaml 里写，也可以用 --storage-path 覆盖
	rootCmd.PersistentFlags().String("storage-path", "", "Media library root directory")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	for key, flag := range map[string]string{
		"storage.path": "storage-path",
		"log.level":    "log-level",
	} {
		if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			fmt.Println("Failed to bind flag:", err)
			os.Exit(1)
		}
	}
}

// initConfig 读取配置文件和环境变量
func initConfig() {
	if err := config.Load(cfgFile); err != nil {
		fmt.Println("Config error:", err)
		os.Exit(1)
	}
}

func requireApp() error {
	if IV == nil {
		return fmt.Errorf("app not initialized")
	}
	return nil
}
