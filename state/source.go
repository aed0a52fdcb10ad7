// Copyright (c) 2026 The ember developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package state

import (
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Source supplies data for addresses unknown to the local store.
// Implementations must be read-only: the store never writes back.
// A failed read must be reported as an error, never as a zero default.
type Source interface {
	// Account returns the account record at the given address, or an
	// all-zero record if the address holds no data.
	Account(addr common.Address) (*AccountInfo, error)

	// Storage returns the storage slot value, zero if unset.
	Storage(addr common.Address, key common.Hash) (common.Hash, error)

	// BlockHash returns the hash of the block at the given number.
	BlockHash(number uint64) (common.Hash, error)
}

// localBlockHash is the block hash rule of a store with no backing source:
// the hash of the decimal string of the number.
func localBlockHash(number uint64) common.Hash {
	return crypto.Keccak256Hash([]byte(strconv.FormatUint(number, 10)))
}
