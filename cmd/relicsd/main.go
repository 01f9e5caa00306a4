package main

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/relicsprotocol/relicsd/cmd"
	"github.com/relicsprotocol/relicsd/logconfig"
)

const (
	ENV_CONFIG_FILE_PATH = "RELICSD_CONFIG"
)

func main() {
	// Tool to read environment variables
	viper.AutomaticEnv()

	switch viper.GetString("LOG_PRESET") {
	case "debug":
		logconfig.ConfigDebugLogger()
	case "production":
		logconfig.ConfigProductionLogger()
	default:
		logconfig.ConfigInfoLogger()
	}

	// An optional configuration file supplements the environment.
	_config_file := viper.GetString(ENV_CONFIG_FILE_PATH)
	if _config_file != "" {
		if !cmd.FileExists(_config_file) {
			fmt.Printf("relicsd configuration file not found: %s\n", _config_file)
			return
		}
		if !initializeViper(_config_file) {
			return
		}
	}

	isc := PrepareIndexerServerConfig()

	fmt.Println("Starting relics indexer... press Ctrl+C to stop")
	// Start server and block.
	cmd.StartIndexerServerAndWait(isc)
}

func initializeViper(filePath string) bool {
	viper.SetConfigFile(filePath)
	if err := viper.ReadInConfig(); err != nil {
		fmt.Printf("Error reading configuration file, %s", err)
		return false
	}
	return true
}

// PrepareIndexerServerConfig reads configuration variables and returns an
// IndexerServerConfig.
func PrepareIndexerServerConfig() *cmd.IndexerServerConfig {
	return &cmd.IndexerServerConfig{
		// state side
		DbFilePath: viper.GetString("DB_FILE_PATH"),
		// btc side
		BtcRpcServer:   viper.GetString("BTC_RPC_SERVER"),
		BtcRpcPort:     viper.GetString("BTC_RPC_PORT"),
		BtcRpcUsername: viper.GetString("BTC_RPC_USERNAME"),
		BtcRpcPwd:      viper.GetString("BTC_RPC_PWD"),
		// indexing side
		StartHeight:   viper.GetUint64("START_HEIGHT"),
		Confirmations: viper.GetInt64("CONFIRMATIONS"),
		ScanIntervalS: viper.GetInt64("SCAN_INTERVAL_SECONDS"),
		// http side
		HttpIp:   viper.GetString("HTTP_IP"),
		HttpPort: viper.GetString("HTTP_PORT"),
	}
}
