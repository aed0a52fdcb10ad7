// Copyright (c) 2026 The ember developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package state

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/embervm/ember/stackedmap"
)

// State manages the world state of one EVM instance.
//
// All reads are answered from revisions kept in a stacked map, falling back to
// a session cache of objects materialized from the backing source. A nil
// source makes every fallback a zero default. Mutations are journaled, so any
// span of them can be reverted to a named checkpoint.
//
// State is exclusively owned: it must not be shared between instances, and it
// is not safe for concurrent use.
type State struct {
	src   Source
	cache map[common.Address]*cachedObject
	sm    *stackedmap.StackedMap
	cps   []checkpointRec
}

// Checkpoint marks a point in the journal to which state can be reverted.
// It records the journal length and emitted-log count at snapshot time.
type Checkpoint struct {
	JournalIndex int
	LogIndex     int
}

type checkpointRec struct {
	cp    Checkpoint
	depth int
}

type (
	codeKey           common.Address
	storageBarrierKey common.Address
	codeIndexKey      common.Hash
	logKey            struct{}

	storageKey struct {
		addr    common.Address
		barrier int
		key     common.Hash
	}
)

// New creates a state instance backed by the given source.
// src may be nil, in which case all reads default to zero values.
func New(src Source) *State {
	state := State{
		src:   src,
		cache: make(map[common.Address]*cachedObject),
	}
	state.sm = stackedmap.New(func(key any) (any, bool, error) {
		return state.cacheGetter(key)
	})
	// baseline level, so that mutations made before any checkpoint are
	// journaled as well
	state.sm.Push()
	return &state
}

// cacheGetter implements stackedmap.MapGetter.
func (s *State) cacheGetter(key any) (value any, exist bool, err error) {
	switch k := key.(type) {
	case common.Address: // get account
		obj, err := s.getCachedObject(k)
		if err != nil {
			return nil, false, err
		}
		return &obj.data, true, nil
	case codeKey: // get code
		obj, err := s.getCachedObject(common.Address(k))
		if err != nil {
			return nil, false, err
		}
		return obj.Code(), true, nil
	case storageKey: // get storage
		// the address was deleted in the life-cycle of this state instance.
		// treat its storage as an empty set.
		if k.barrier != 0 {
			return common.Hash{}, true, nil
		}
		obj, err := s.getCachedObject(k.addr)
		if err != nil {
			return nil, false, err
		}
		v, err := obj.GetStorage(k.key)
		if err != nil {
			return nil, false, err
		}
		return v, true, nil
	case storageBarrierKey: // get barrier, 0 as initial value
		return 0, true, nil
	case codeIndexKey: // get code by hash, absent by default
		return []byte(nil), true, nil
	}
	panic(fmt.Errorf("unexpected key type %+v", key))
}

func (s *State) getCachedObject(addr common.Address) (*cachedObject, error) {
	if co, ok := s.cache[addr]; ok {
		return co, nil
	}
	co, err := newCachedObject(s.src, addr)
	if err != nil {
		return nil, err
	}
	s.cache[addr] = co
	return co, nil
}

// getAccount gets the account record by address. The returned account must not be modified.
func (s *State) getAccount(addr common.Address) (*Account, error) {
	v, _, err := s.sm.Get(addr)
	if err != nil {
		return nil, err
	}
	return v.(*Account), nil
}

// getAccountCopy gets a copy of the account record by address.
func (s *State) getAccountCopy(addr common.Address) (Account, error) {
	acc, err := s.getAccount(addr)
	if err != nil {
		return Account{}, err
	}
	return *acc, nil
}

func (s *State) updateAccount(addr common.Address, acc *Account) {
	s.sm.Put(addr, acc)
}

func (s *State) getStorageBarrier(addr common.Address) int {
	b, _, _ := s.sm.Get(storageBarrierKey(addr))
	return b.(int)
}

func (s *State) setStorageBarrier(addr common.Address, barrier int) {
	s.sm.Put(storageBarrierKey(addr), barrier)
}

// GetAccount returns the full account info for the given address,
// a zero-valued info if the address was never touched.
func (s *State) GetAccount(addr common.Address) (AccountInfo, error) {
	acc, err := s.getAccount(addr)
	if err != nil {
		return AccountInfo{}, &Error{err}
	}
	code, err := s.GetCode(addr)
	if err != nil {
		return AccountInfo{}, err
	}
	return AccountInfo{
		Balance:  new(big.Int).Set(acc.Balance),
		Nonce:    acc.Nonce,
		Code:     code,
		CodeHash: acc.CodeHash,
	}, nil
}

// SetAccount replaces balance, nonce, code and code hash for the given
// address. Storage slots are left untouched.
func (s *State) SetAccount(addr common.Address, info AccountInfo) error {
	info.normalize()
	if len(info.Code) > 0 {
		s.sm.Put(codeKey(addr), info.Code)
		s.sm.Put(codeIndexKey(info.CodeHash), info.Code)
	} else {
		s.sm.Put(codeKey(addr), []byte(nil))
	}
	s.updateAccount(addr, &Account{
		Balance:  new(big.Int).Set(info.Balance),
		Nonce:    info.Nonce,
		CodeHash: info.CodeHash,
	})
	return nil
}

// GetBalance returns the balance for the given address.
func (s *State) GetBalance(addr common.Address) (*big.Int, error) {
	acc, err := s.getAccount(addr)
	if err != nil {
		return nil, &Error{err}
	}
	return new(big.Int).Set(acc.Balance), nil
}

// SetBalance sets the balance for the given address.
func (s *State) SetBalance(addr common.Address, balance *big.Int) error {
	cpy, err := s.getAccountCopy(addr)
	if err != nil {
		return &Error{err}
	}
	cpy.Balance = new(big.Int).Set(balance)
	s.updateAccount(addr, &cpy)
	return nil
}

// GetNonce returns the nonce for the given address.
func (s *State) GetNonce(addr common.Address) (uint64, error) {
	acc, err := s.getAccount(addr)
	if err != nil {
		return 0, &Error{err}
	}
	return acc.Nonce, nil
}

// SetNonce sets the nonce for the given address.
func (s *State) SetNonce(addr common.Address, nonce uint64) error {
	cpy, err := s.getAccountCopy(addr)
	if err != nil {
		return &Error{err}
	}
	cpy.Nonce = nonce
	s.updateAccount(addr, &cpy)
	return nil
}

// GetCode returns the code for the given address.
func (s *State) GetCode(addr common.Address) ([]byte, error) {
	v, _, err := s.sm.Get(codeKey(addr))
	if err != nil {
		return nil, &Error{err}
	}
	return v.([]byte), nil
}

// GetCodeHash returns the code hash for the given address.
func (s *State) GetCodeHash(addr common.Address) (common.Hash, error) {
	acc, err := s.getAccount(addr)
	if err != nil {
		return common.Hash{}, &Error{err}
	}
	return acc.CodeHash, nil
}

// SetCode sets the code for the given address.
func (s *State) SetCode(addr common.Address, code []byte) error {
	codeHash := EmptyCodeHash
	if len(code) > 0 {
		codeHash = crypto.Keccak256Hash(code)
		s.sm.Put(codeKey(addr), code)
		s.sm.Put(codeIndexKey(codeHash), code)
	} else {
		s.sm.Put(codeKey(addr), []byte(nil))
	}
	cpy, err := s.getAccountCopy(addr)
	if err != nil {
		return &Error{err}
	}
	cpy.CodeHash = codeHash
	s.updateAccount(addr, &cpy)
	return nil
}

// CodeByHash returns the code whose content hash equals the given hash.
// The lookup consults the journaled code index first and falls back to a
// linear scan over materialized accounts. The canonical empty-code hash
// always resolves to empty code.
func (s *State) CodeByHash(hash common.Hash) ([]byte, error) {
	if hash == EmptyCodeHash {
		return []byte{}, nil
	}
	v, _, err := s.sm.Get(codeIndexKey(hash))
	if err != nil {
		return nil, &Error{err}
	}
	if code := v.([]byte); len(code) > 0 {
		return code, nil
	}
	for _, co := range s.cache {
		if co.data.CodeHash == hash && len(co.Code()) > 0 {
			return co.Code(), nil
		}
	}
	return nil, ErrCodeNotFound
}

// GetStorage returns the storage value for the given address and key,
// zero for any never-written slot.
func (s *State) GetStorage(addr common.Address, key common.Hash) (common.Hash, error) {
	v, _, err := s.sm.Get(storageKey{addr, s.getStorageBarrier(addr), key})
	if err != nil {
		return common.Hash{}, &Error{err}
	}
	return v.(common.Hash), nil
}

// SetStorage sets the storage value for the given address and key.
func (s *State) SetStorage(addr common.Address, key, value common.Hash) {
	s.sm.Put(storageKey{addr, s.getStorageBarrier(addr), key}, value)
}

// BlockHash returns the hash of the block at the given number, answered by
// the backing source when one is configured.
func (s *State) BlockHash(number uint64) (common.Hash, error) {
	if s.src == nil {
		return localBlockHash(number), nil
	}
	h, err := s.src.BlockHash(number)
	if err != nil {
		return common.Hash{}, &Error{err}
	}
	return h, nil
}

// Exists returns whether a non-empty account exists at the given address.
func (s *State) Exists(addr common.Address) (bool, error) {
	acc, err := s.getAccount(addr)
	if err != nil {
		return false, &Error{err}
	}
	return !acc.IsEmpty(), nil
}

// Delete deletes the account at the given address: balance, nonce and code
// reset to zero values, and existing storage becomes invisible.
func (s *State) Delete(addr common.Address) {
	s.sm.Put(codeKey(addr), []byte(nil))
	s.updateAccount(addr, emptyAccount())
	// raise the barrier so storage written before deletion is not observed
	s.setStorageBarrier(addr, s.getStorageBarrier(addr)+1)
}

// AddLog appends one log record.
func (s *State) AddLog(l *types.Log) {
	s.sm.Put(logKey{}, l)
}

// Logs returns the logs recorded so far, in emission order.
func (s *State) Logs() (logs []*types.Log) {
	s.sm.Journal(func(k, v any) bool {
		if _, ok := k.(logKey); ok {
			logs = append(logs, v.(*types.Log))
		}
		return true
	})
	return
}

func (s *State) logCount() (n int) {
	s.sm.Journal(func(k, _ any) bool {
		if _, ok := k.(logKey); ok {
			n++
		}
		return true
	})
	return
}

// NewCheckpoint makes a checkpoint of the current state.
func (s *State) NewCheckpoint() Checkpoint {
	cp := Checkpoint{
		JournalIndex: s.sm.JournalLen(),
		LogIndex:     s.logCount(),
	}
	depth := s.sm.Push()
	s.cps = append(s.cps, checkpointRec{cp: cp, depth: depth})
	metricCheckpoint().Add(1)
	return cp
}

// RevertTo reverts to the given checkpoint, undoing in reverse order every
// mutation journaled after it was taken and discarding logs emitted since.
// The checkpoint itself and any checkpoint taken after it become invalid.
func (s *State) RevertTo(cp Checkpoint) error {
	if len(s.cps) == 0 {
		return ErrNoCheckpoint
	}
	// scan newest first: checkpoints taken with no mutation in between carry
	// equal tokens, and the innermost one is the one being reverted
	for i := len(s.cps) - 1; i >= 0; i-- {
		if s.cps[i].cp == cp {
			s.sm.PopTo(s.cps[i].depth)
			s.cps = s.cps[:i]
			metricRevert().Add(1)
			return nil
		}
	}
	return ErrInvalidCheckpoint
}

// Commit makes the current state the new baseline, dropping all outstanding
// checkpoints without undoing anything. Idempotent.
func (s *State) Commit() {
	s.cps = s.cps[:0]
}

// Accounts returns the info of every account touched this session,
// for introspection.
func (s *State) Accounts() (map[common.Address]AccountInfo, error) {
	addrs := make(map[common.Address]struct{}, len(s.cache))
	for addr := range s.cache {
		addrs[addr] = struct{}{}
	}
	s.sm.Journal(func(k, _ any) bool {
		switch key := k.(type) {
		case common.Address:
			addrs[key] = struct{}{}
		case codeKey:
			addrs[common.Address(key)] = struct{}{}
		case storageKey:
			addrs[key.addr] = struct{}{}
		}
		return true
	})

	all := make(map[common.Address]AccountInfo, len(addrs))
	for addr := range addrs {
		info, err := s.GetAccount(addr)
		if err != nil {
			return nil, err
		}
		all[addr] = info
	}
	return all, nil
}
