/*
Package btcrpc wraps the bitcoind JSON-RPC connection with the handful of
calls the indexer needs.
*/
package btcrpc

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"
	"github.com/btcsuite/btcd/wire"
)

type Config struct {
	ServerAddr string // ip address of node
	Port       string // port of node
	Username   string
	Pwd        string
}

// Client is a thin wrapper over the btcd rpc client.
type Client struct {
	client *rpcclient.Client
}

func NewClient(cfg *Config) (*Client, error) {
	// bitcoind only supports HTTP POST mode without TLS
	client, err := rpcclient.New(&rpcclient.ConnConfig{
		Host:         cfg.ServerAddr + ":" + cfg.Port,
		User:         cfg.Username,
		Pass:         cfg.Pwd,
		HTTPPostMode: true,
		DisableTLS:   true,
	}, nil)
	if err != nil {
		return nil, err
	}
	return &Client{client: client}, nil
}

func (c *Client) Close() {
	c.client.Shutdown()
}

// GetLatestBlockHeight returns the node's current chain height.
func (c *Client) GetLatestBlockHeight() (int64, error) {
	return c.client.GetBlockCount()
}

// GetBlockHash returns the hash of the block at the given height.
func (c *Client) GetBlockHash(height int64) (*chainhash.Hash, error) {
	return c.client.GetBlockHash(height)
}

// GetBlock fetches a full block by hash.
func (c *Client) GetBlock(hash *chainhash.Hash) (*wire.MsgBlock, error) {
	return c.client.GetBlock(hash)
}

// GetBlockAtHeight fetches a full block and its hash by height.
func (c *Client) GetBlockAtHeight(height int64) (*wire.MsgBlock, *chainhash.Hash, error) {
	hash, err := c.client.GetBlockHash(height)
	if err != nil {
		return nil, nil, err
	}
	block, err := c.client.GetBlock(hash)
	if err != nil {
		return nil, nil, err
	}
	return block, hash, nil
}
