package rpc

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// Web3Pool manages a Web3Iterator per chainID, so a single pool can serve
// RPC calls for several chains, each load-balanced and failed-over
// independently.
type Web3Pool struct {
	mtx       sync.Mutex
	endpoints map[uint64]*Web3Iterator
}

// NewWeb3Pool creates an empty Web3Pool.
func NewWeb3Pool() *Web3Pool {
	return &Web3Pool{
		endpoints: make(map[uint64]*Web3Iterator),
	}
}

// AddEndpoint dials uri and registers it under its chainID. It returns the
// connected ethclient so callers can use it directly (e.g. to read the
// chain ID or the current block before adding further endpoints).
func (w3p *Web3Pool) AddEndpoint(ctx context.Context, uri string) (*ethclient.Client, error) {
	rpcClient, err := rpc.DialContext(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("error dialing web3 endpoint %s: %w", uri, err)
	}
	client := ethclient.NewClient(rpcClient)
	chainID, err := client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting chainID from %s: %w", uri, err)
	}

	endpoint := &Web3Endpoint{
		ChainID:   chainID.Uint64(),
		URI:       uri,
		client:    client,
		rpcClient: rpcClient,
	}

	w3p.mtx.Lock()
	iter, ok := w3p.endpoints[endpoint.ChainID]
	if !ok {
		iter = NewWeb3Iterator()
		w3p.endpoints[endpoint.ChainID] = iter
	}
	w3p.mtx.Unlock()

	iter.Add(endpoint)
	return client, nil
}

// Endpoint returns the next available endpoint for chainID, round-robin.
func (w3p *Web3Pool) Endpoint(chainID uint64) (*Web3Endpoint, error) {
	w3p.mtx.Lock()
	iter, ok := w3p.endpoints[chainID]
	w3p.mtx.Unlock()
	if !ok {
		return nil, fmt.Errorf("no endpoints registered for chainID %d", chainID)
	}
	return iter.Next()
}

// NumberOfEndpoints returns how many endpoints are registered for chainID.
// When onlyAvailable is true, disabled (cooling down) endpoints are excluded.
func (w3p *Web3Pool) NumberOfEndpoints(chainID uint64, onlyAvailable bool) int {
	w3p.mtx.Lock()
	iter, ok := w3p.endpoints[chainID]
	w3p.mtx.Unlock()
	if !ok {
		return 0
	}
	if onlyAvailable {
		return iter.Available()
	}
	return iter.Available() + iter.Disabled()
}

// DisableEndpoint takes uri for chainID out of rotation for its cooldown period.
func (w3p *Web3Pool) DisableEndpoint(chainID uint64, uri string) {
	w3p.mtx.Lock()
	iter, ok := w3p.endpoints[chainID]
	w3p.mtx.Unlock()
	if !ok {
		return
	}
	iter.Disable(uri)
}

// Client returns a Client bound to chainID, balancing calls across its pool.
func (w3p *Web3Pool) Client(chainID uint64) *Client {
	return &Client{w3p: w3p, chainID: chainID}
}
