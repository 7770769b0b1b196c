package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"imagevault/pkg/ingester"
	"imagevault/pkg/logging"
	"imagevault/pkg/meta"
	"imagevault/pkg/storage/s3"
	"imagevault/pkg/types"
	"imagevault/pkg/vault"

	"github.com/spf13/viper"
)

// DirName 是媒体库根目录下的元数据目录
const DirName = ".imagevault"

// Load 初始化 Viper 配置
// cfgFile: 可选，用户显式指定的配置文件路径
func Load(cfgFile string) error {
	// 1. 默认值
	setDefaults()

	// 2. 配置搜索路径
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}

		// 搜索顺序: 当前目录 -> ./.imagevault -> ~/.imagevault
		viper.AddConfigPath(".")
		viper.AddConfigPath(DirName)
		viper.AddConfigPath(filepath.Join(home, DirName))

		viper.SetConfigType("yaml")
		viper.SetConfigName("config") // 找 config.yaml
	}

	// 3. 环境变量 (IMAGEVAULT_VAULT_LOCKED_PERMISSIONS 等)
	viper.SetEnvPrefix("IMAGEVAULT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// 4. 读取配置文件
	if err := viper.ReadInConfig(); err != nil {
		// 没找到配置文件不算错，可能全靠环境变量
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("fatal error config file: %w", err)
		}
	} else {
		fmt.Fprintln(os.Stderr, "🔧 Using config file:", viper.ConfigFileUsed())
	}

	return nil
}

func setDefaults() {
	wd, _ := os.Getwd()
	metaDir := filepath.Join(wd, DirName)

	// 状态机
	viper.SetDefault("vault.copyright_meta_key", "copyright")
	viper.SetDefault("vault.exif_copyright_key", "copyright")
	viper.SetDefault("vault.locked_permissions", "0600")
	viper.SetDefault("vault.released_permissions", "0644")
	viper.SetDefault("vault.block_size_x", 15)
	viper.SetDefault("vault.block_size_y", 15)
	viper.SetDefault("vault.workers", 4)
	viper.SetDefault("vault.file_timeout", "30s")
	viper.SetDefault("vault.lock_timeout", "10s")
	viper.SetDefault("vault.excluded_categories", []string{"dlm_download"})

	// 存储: 默认就是当前目录下的媒体库
	viper.SetDefault("storage.type", "disk")
	viper.SetDefault("storage.path", wd)
	viper.SetDefault("storage.s3.region", "us-east-1")

	// 数据库
	viper.SetDefault("database.type", "sqlite")
	viper.SetDefault("database.path", filepath.Join(metaDir, "vault.db"))
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.sslmode", "disable")

	// 同一 Asset 的互斥
	viper.SetDefault("locker.type", "flock")
	viper.SetDefault("locker.path", filepath.Join(metaDir, "locks"))
	viper.SetDefault("locker.ttl", "1m")

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")
}

// Permissions 读取八进制权限配置，非法值回退到 fallback
func Permissions(key string, fallback os.FileMode) os.FileMode {
	return SanitizePermissions(viper.GetString(key), fallback)
}

// SanitizePermissions 只接受合法的八进制字符串
func SanitizePermissions(value string, fallback os.FileMode) os.FileMode {
	mode, err := types.ParsePermissions(value)
	if err != nil {
		return fallback
	}
	return mode
}

// Vault 组装状态机配置
func Vault() vault.Config {
	d := vault.DefaultConfig()
	return vault.Config{
		CopyrightMetaKey: viper.GetString("vault.copyright_meta_key"),
		ExifCopyrightKey: viper.GetString("vault.exif_copyright_key"),
		LockedPerm:       Permissions("vault.locked_permissions", d.LockedPerm),
		ReleasedPerm:     Permissions("vault.released_permissions", d.ReleasedPerm),
		BlockX:           viper.GetInt("vault.block_size_x"),
		BlockY:           viper.GetInt("vault.block_size_y"),
		Workers:          viper.GetInt("vault.workers"),
		FileTimeout:      viper.GetDuration("vault.file_timeout"),
		LockTimeout:      viper.GetDuration("vault.lock_timeout"),
	}
}

func ExcludedCategories() []string {
	return viper.GetStringSlice("vault.excluded_categories")
}

func Database() meta.Config {
	return meta.Config{
		Type:     viper.GetString("database.type"),
		Path:     viper.GetString("database.path"),
		Host:     viper.GetString("database.host"),
		Port:     viper.GetInt("database.port"),
		User:     viper.GetString("database.user"),
		Password: viper.GetString("database.password"),
		DBName:   viper.GetString("database.dbname"),
		SSLMode:  viper.GetString("database.sslmode"),
		Debug:    viper.GetString("log.level") == "debug",
	}
}

func S3() s3.Config {
	return s3.Config{
		Endpoint:        viper.GetString("storage.s3.endpoint"),
		Region:          viper.GetString("storage.s3.region"),
		Bucket:          viper.GetString("storage.s3.bucket"),
		Prefix:          viper.GetString("storage.s3.prefix"),
		AccessKeyID:     viper.GetString("storage.s3.access_key_id"),
		SecretAccessKey: viper.GetString("storage.s3.secret_access_key"),
	}
}

// IngestSizes 未配置时返回默认尺寸
func IngestSizes() ([]ingester.Size, error) {
	if !viper.IsSet("ingest.sizes") {
		return ingester.DefaultSizes(), nil
	}
	var sizes []ingester.Size
	if err := viper.UnmarshalKey("ingest.sizes", &sizes); err != nil {
		return nil, fmt.Errorf("invalid ingest.sizes: %w", err)
	}
	for _, s := range sizes {
		if s.Name == "" || s.Width <= 0 || s.Height <= 0 {
			return nil, fmt.Errorf("invalid ingest size %+v", s)
		}
	}
	return sizes, nil
}

func Logging() logging.Options {
	return logging.Options{
		Level:  viper.GetString("log.level"),
		Format: viper.GetString("log.format"),
		File:   viper.GetString("log.file"),
	}
}
