// Server = bitcoin rpc client + block monitor + state store + http reporter.
// All components are configured via environment variables (strings!).

package cmd

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	logger "github.com/sirupsen/logrus"

	"github.com/relicsprotocol/relicsd/btcrpc"
	"github.com/relicsprotocol/relicsd/indexer"
	"github.com/relicsprotocol/relicsd/reporter"
	"github.com/relicsprotocol/relicsd/state"
)

// Keep the configuration's fields as "text" as possible.
// Its easier to load it from env vars or a config file.
type IndexerServerConfig struct {
	// state side
	DbFilePath string // db file path

	// btc side
	BtcRpcServer   string // btc rpc server info
	BtcRpcPort     string // btc rpc server info
	BtcRpcUsername string // btc rpc server info
	BtcRpcPwd      string // btc rpc server info

	// indexing side
	StartHeight   uint64 // first block to index on an empty database
	Confirmations int64  // stay this many blocks behind the node tip
	ScanIntervalS int64  // seconds between polls, 0 = default

	// http side
	HttpIp   string // eg. 0.0.0.0
	HttpPort string // eg. 8080
}

// IndexerServer holds the objects that consist of the relics indexer.
type IndexerServer struct {
	BtcRpcClient *btcrpc.Client
	MyStateDb    *state.StateDB
	MyMonitor    *indexer.Monitor
	MyReporter   *reporter.HttpReporter
}

// NewIndexerServer creates a new indexer server.
// ctx is the parental context used to cancel the monitor loop.
// wg waits for the goroutines inside the server to finish.
func NewIndexerServer(isc *IndexerServerConfig, ctx context.Context, wg *sync.WaitGroup) (*IndexerServer, error) {
	// 0) connect to btc network
	myBtcRpcClient, err := SetupBtcRpc(isc.BtcRpcServer, isc.BtcRpcPort, isc.BtcRpcUsername, isc.BtcRpcPwd)
	if err != nil {
		return nil, err
	}

	// 1) open the state database
	myStateDb, err := state.NewStateDB(isc.DbFilePath)
	if err != nil {
		logger.Fatalf("cannot open state db at %s: %v", isc.DbFilePath, err)
		return nil, err
	}

	// 2) create the block monitor
	monitorCfg := indexer.Config{
		StartHeight:   isc.StartHeight,
		Confirmations: isc.Confirmations,
		ScanInterval:  time.Duration(isc.ScanIntervalS) * time.Second,
	}
	myMonitor := indexer.NewMonitor(monitorCfg, myBtcRpcClient, myStateDb)

	// 3) create the http reporter
	myReporter := reporter.NewHttpReporter(isc.HttpIp, isc.HttpPort, myStateDb)

	server := &IndexerServer{
		BtcRpcClient: myBtcRpcClient,
		MyStateDb:    myStateDb,
		MyMonitor:    myMonitor,
		MyReporter:   myReporter,
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = myMonitor.Run(ctx)
	}()

	go myReporter.Run()

	return server, nil
}

// StartIndexerServerAndWait runs the server until Ctrl+C / SIGTERM.
func StartIndexerServerAndWait(isc *IndexerServerConfig) {
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	server, err := NewIndexerServer(isc, ctx, &wg)
	if err != nil {
		logger.Fatalf("failed to start indexer server: %v", err)
		cancel()
		return
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutdown signal received, stopping after current block")

	cancel()
	wg.Wait()

	server.BtcRpcClient.Close()
	if err := server.MyStateDb.Close(); err != nil {
		logger.Warnf("failed to close state db: %v", err)
	}
}
