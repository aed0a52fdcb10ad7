// Copyright (c) 2026 The ember developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package state

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// EmptyCodeHash is the hash of zero-length code.
var EmptyCodeHash = crypto.Keccak256Hash(nil)

// Account is the ledger record of an account, without code and storage.
type Account struct {
	Balance  *big.Int
	Nonce    uint64
	CodeHash common.Hash // EmptyCodeHash when codeless
}

// IsEmpty returns whether the account is empty.
// An empty account has zero balance, zero nonce and no code.
func (a *Account) IsEmpty() bool {
	return a.Balance.Sign() == 0 &&
		a.Nonce == 0 &&
		a.CodeHash == EmptyCodeHash
}

func emptyAccount() *Account {
	return &Account{Balance: &big.Int{}, CodeHash: EmptyCodeHash}
}

// AccountInfo is the externally visible account record.
type AccountInfo struct {
	Balance  *big.Int
	Nonce    uint64
	Code     []byte // nil for codeless accounts
	CodeHash common.Hash
}

// NewAccountInfo builds an AccountInfo, deriving the code hash from the code.
func NewAccountInfo(balance *big.Int, nonce uint64, code []byte) AccountInfo {
	info := AccountInfo{Balance: balance, Nonce: nonce, Code: code}
	info.normalize()
	return info
}

// normalize fills derivable zero fields. A present code with no hash gets the
// content hash; an absent code defaults to the empty-code hash.
func (info *AccountInfo) normalize() {
	if info.Balance == nil {
		info.Balance = &big.Int{}
	}
	if info.CodeHash == (common.Hash{}) {
		if len(info.Code) > 0 {
			info.CodeHash = crypto.Keccak256Hash(info.Code)
		} else {
			info.CodeHash = EmptyCodeHash
		}
	}
}
