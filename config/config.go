package config

import (
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

var once sync.Once

func InitConfig() {
	once.Do(func() {
		viper.AutomaticEnv()

		viper.BindEnv("telegram_bot_token", "TELEGRAM_BOT_TOKEN")
		viper.BindEnv("admin_ids", "ADMIN_IDS")
		viper.BindEnv("db_path", "DB_PATH")
		viper.BindEnv("metrics_port", "METRICS_PORT")
		viper.BindEnv("debug", "DEBUG")
		viper.BindEnv("lang", "LANG")
		viper.BindEnv("monitor_interval_seconds", "MONITOR_INTERVAL_SECONDS")
		viper.BindEnv("eth_rpc_url", "ETH_RPC_URL")
		viper.BindEnv("polygon_rpc_url", "POLYGON_RPC_URL")
		viper.BindEnv("base_rpc_url", "BASE_RPC_URL")

		viper.SetDefault("db_path", "data.db")
		viper.SetDefault("metrics_port", 9090)
		viper.SetDefault("debug", false)
		viper.SetDefault("lang", "en")
		viper.SetDefault("monitor_interval_seconds", 35)
	})
}

func GetString(key string) string {
	InitConfig()
	return viper.GetString(key)
}

func GetInt(key string) int {
	InitConfig()
	return viper.GetInt(key)
}

func GetBool(key string) bool {
	InitConfig()
	return viper.GetBool(key)
}

// GetAdminIDs parses the comma separated admin_ids value. Malformed entries
// are dropped.
func GetAdminIDs() []int64 {
	InitConfig()
	var ids []int64
	for _, part := range strings.Split(viper.GetString("admin_ids"), ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}
