package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// DefaultAPIURL はAPI_URL未設定時の接続先。
const DefaultAPIURL = "http://localhost:4321"

// DevVarsFile は作業ディレクトリから読み込むdotenv形式の設定ファイル名。
const DevVarsFile = ".dev.vars"

// Config はモデレーションCLIの設定。
type Config struct {
	APIURL   string
	AdminKey string
}

// LoadConfig は環境変数から設定を読み込む。
// 環境変数が無い項目は dir/.dev.vars の値を使う。ファイルが無い場合は無視する。
func LoadConfig(dir string) (*Config, error) {
	v := viper.New()
	v.SetDefault("API_URL", DefaultAPIURL)
	v.AutomaticEnv()

	path := filepath.Join(dir, DevVarsFile)
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	}

	cfg := &Config{
		APIURL:   v.GetString("API_URL"),
		AdminKey: v.GetString("ADMIN_KEY"),
	}
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.AdminKey == "" {
		return nil, fmt.Errorf("ADMIN_KEY environment variable not set (export it or add it to %s)", DevVarsFile)
	}
	return cfg, nil
}
