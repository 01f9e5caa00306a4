package cmd

import (
	"os"

	logger "github.com/sirupsen/logrus"

	"github.com/relicsprotocol/relicsd/btcrpc"
)

// FileExists checks if a file exists and is readable
func FileExists(filePath string) bool {
	file, err := os.Open(filePath)
	if err != nil {
		return false
	}
	defer file.Close()
	return true
}

// Shared helper function. Create a btc rpc client.
func SetupBtcRpc(server string, port string, username string, password string) (*btcrpc.Client, error) {
	_config := btcrpc.Config{
		ServerAddr: server,
		Port:       port,
		Username:   username,
		Pwd:        password,
	}
	r, err := btcrpc.NewClient(&_config)
	if err != nil {
		logger.Fatalf("failed to create btc rpc client: %v", err)
		return nil, err
	}
	return r, nil
}
