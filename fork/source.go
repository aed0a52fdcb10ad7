// Copyright (c) 2026 The ember developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package fork provides a state source backed by a remote Ethereum node,
// pinned to a single block so repeated reads stay consistent.
package fork

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/log"
	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"

	"github.com/embervm/ember/state"
)

const blockHashCacheSize = 256

// FetchError reports a failed remote read. It carries the operation and the
// key being fetched so callers can tell a network failure from bad input.
type FetchError struct {
	Op    string
	Key   string
	Cause error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fork: fetch %s %s: %v", e.Op, e.Key, e.Cause)
}

// Unwrap returns the underlying transport error.
func (e *FetchError) Unwrap() error {
	return e.Cause
}

// Source reads accounts, storage and block hashes from a remote node at a
// pinned block. It implements state.Source and never writes back.
type Source struct {
	ctx       context.Context
	client    *ethclient.Client
	blockNum  *big.Int
	hashCache *lru.ARCCache
}

// NewSource dials the node at url and pins the fork point. A nil blockNumber
// pins the latest block at dial time, so later chain growth is not observed.
func NewSource(ctx context.Context, url string, blockNumber *uint64) (*Source, error) {
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, &FetchError{Op: "dial", Key: url, Cause: err}
	}

	var blockNum *big.Int
	if blockNumber != nil {
		blockNum = new(big.Int).SetUint64(*blockNumber)
	} else {
		header, err := client.HeaderByNumber(ctx, nil)
		if err != nil {
			client.Close()
			return nil, &FetchError{Op: "header", Key: "latest", Cause: err}
		}
		blockNum = header.Number
	}

	hashCache, _ := lru.NewARC(blockHashCacheSize)
	log.Debug("fork source pinned", "url", url, "block", blockNum)
	return &Source{
		ctx:       ctx,
		client:    client,
		blockNum:  blockNum,
		hashCache: hashCache,
	}, nil
}

// BlockNumber returns the pinned block number.
func (s *Source) BlockNumber() uint64 {
	return s.blockNum.Uint64()
}

// Close releases the underlying RPC connection.
func (s *Source) Close() {
	s.client.Close()
}

// Account fetches balance, nonce and code at the pinned block.
func (s *Source) Account(addr common.Address) (*state.AccountInfo, error) {
	balance, err := s.client.BalanceAt(s.ctx, addr, s.blockNum)
	if err != nil {
		return nil, &FetchError{Op: "balance", Key: addr.Hex(), Cause: err}
	}
	nonce, err := s.client.NonceAt(s.ctx, addr, s.blockNum)
	if err != nil {
		return nil, &FetchError{Op: "nonce", Key: addr.Hex(), Cause: err}
	}
	code, err := s.client.CodeAt(s.ctx, addr, s.blockNum)
	if err != nil {
		return nil, &FetchError{Op: "code", Key: addr.Hex(), Cause: err}
	}
	metricFetch().AddWithLabel(1, map[string]string{"op": "account"})
	info := state.NewAccountInfo(balance, nonce, code)
	return &info, nil
}

// Storage fetches one storage slot at the pinned block.
func (s *Source) Storage(addr common.Address, key common.Hash) (common.Hash, error) {
	v, err := s.client.StorageAt(s.ctx, addr, key, s.blockNum)
	if err != nil {
		return common.Hash{}, &FetchError{Op: "storage", Key: addr.Hex() + "/" + key.Hex(), Cause: err}
	}
	metricFetch().AddWithLabel(1, map[string]string{"op": "storage"})
	return common.BytesToHash(v), nil
}

// BlockHash fetches the hash of the block at the given number. Fetched hashes
// are cached, so each number hits the node at most once.
func (s *Source) BlockHash(number uint64) (common.Hash, error) {
	if h, ok := s.hashCache.Get(number); ok {
		return h.(common.Hash), nil
	}
	if number > s.blockNum.Uint64() {
		return common.Hash{}, &FetchError{
			Op:    "blockhash",
			Key:   fmt.Sprintf("%d", number),
			Cause: errors.Errorf("block is beyond the pinned block %v", s.blockNum),
		}
	}
	header, err := s.client.HeaderByNumber(s.ctx, new(big.Int).SetUint64(number))
	if err != nil {
		return common.Hash{}, &FetchError{Op: "blockhash", Key: fmt.Sprintf("%d", number), Cause: err}
	}
	h := header.Hash()
	s.hashCache.Add(number, h)
	metricFetch().AddWithLabel(1, map[string]string{"op": "blockhash"})
	return h, nil
}
