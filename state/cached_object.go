// Copyright (c) 2026 The ember developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package state

import (
	"github.com/ethereum/go-ethereum/common"
)

// cachedObject caches the account, code and storage fetched from the backing
// source. Once materialized, the source is never asked again for the same key.
type cachedObject struct {
	src  Source
	addr common.Address

	data    Account
	code    []byte
	storage map[common.Hash]common.Hash
}

// newCachedObject materializes the account at addr from the source.
// A nil source yields an all-zero account without any fetch.
func newCachedObject(src Source, addr common.Address) (*cachedObject, error) {
	co := &cachedObject{src: src, addr: addr, data: *emptyAccount()}
	if src == nil {
		metricAccountLoaded().AddWithLabel(1, map[string]string{"source": "local"})
		return co, nil
	}
	info, err := src.Account(addr)
	if err != nil {
		return nil, err
	}
	if info == nil {
		info = &AccountInfo{}
	}
	info.normalize()
	co.data = Account{
		Balance:  info.Balance,
		Nonce:    info.Nonce,
		CodeHash: info.CodeHash,
	}
	co.code = info.Code
	metricAccountLoaded().AddWithLabel(1, map[string]string{"source": "remote"})
	return co, nil
}

// Code returns the account code loaded with the account.
func (co *cachedObject) Code() []byte {
	return co.code
}

// GetStorage returns the storage value for the given key,
// fetching from the source on first access.
func (co *cachedObject) GetStorage(key common.Hash) (common.Hash, error) {
	if co.storage != nil {
		if v, ok := co.storage[key]; ok {
			return v, nil
		}
	} else {
		co.storage = make(map[common.Hash]common.Hash)
	}

	if co.src == nil {
		co.storage[key] = common.Hash{}
		return common.Hash{}, nil
	}

	v, err := co.src.Storage(co.addr, key)
	if err != nil {
		return common.Hash{}, err
	}
	co.storage[key] = v
	return v, nil
}
