// Copyright (c) 2026 The ember developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package state

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Diff is the set of mutations journaled after some checkpoint: the accounts
// and storage slots written, with their final values, and the logs emitted.
type Diff struct {
	Accounts map[common.Address]AccountInfo
	Storage  map[common.Address]map[common.Hash]common.Hash
	Logs     []*types.Log
}

// DiffSince collects the mutations journaled after the given checkpoint was
// taken. Later writes of one slot win. The checkpoint does not have to be
// outstanding, only its journal index is consulted.
func (s *State) DiffSince(cp Checkpoint) (*Diff, error) {
	diff := &Diff{
		Accounts: make(map[common.Address]AccountInfo),
		Storage:  make(map[common.Address]map[common.Hash]common.Hash),
	}
	dirty := make(map[common.Address]struct{})

	i := 0
	s.sm.Journal(func(k, v any) bool {
		if i >= cp.JournalIndex {
			switch key := k.(type) {
			case common.Address:
				dirty[key] = struct{}{}
			case codeKey:
				dirty[common.Address(key)] = struct{}{}
			case storageKey:
				slots := diff.Storage[key.addr]
				if slots == nil {
					slots = make(map[common.Hash]common.Hash)
					diff.Storage[key.addr] = slots
				}
				slots[key.key] = v.(common.Hash)
			case logKey:
				diff.Logs = append(diff.Logs, v.(*types.Log))
			}
		}
		i++
		return true
	})

	for addr := range dirty {
		info, err := s.GetAccount(addr)
		if err != nil {
			return nil, err
		}
		diff.Accounts[addr] = info
	}
	return diff, nil
}
