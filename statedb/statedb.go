// Copyright (c) 2026 The ember developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package statedb adapts the host state to the database interface the EVM
// engine expects. One StateDB serves exactly one execution run.
package statedb

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	gethstate "github.com/ethereum/go-ethereum/core/state"
	"github.com/ethereum/go-ethereum/core/stateless"
	"github.com/ethereum/go-ethereum/core/tracing"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/params"
	"github.com/ethereum/go-ethereum/trie/utils"
	"github.com/holiman/uint256"

	"github.com/embervm/ember/stackedmap"
	"github.com/embervm/ember/state"
)

var _ vm.StateDB = (*StateDB)(nil)

type (
	selfDestructKey common.Address
	createdKey      common.Address
	accessAddrKey   common.Address
	refundKey       struct{}
	preimageKey     common.Hash
	logKey          struct{}

	accessSlotKey struct {
		addr common.Address
		slot common.Hash
	}
	transientKey struct {
		addr common.Address
		key  common.Hash
	}
	originStorageKey struct {
		addr common.Address
		key  common.Hash
	}
)

type snapshotRec struct {
	cp    state.Checkpoint
	depth int
}

// StateDB exposes the host state to the EVM engine. Accounts and storage are
// written straight through to the host state, which journals them, while the
// run-scoped bookkeeping the engine needs (selfdestruct flags, refund counter,
// access list, transient storage, logs) lives in a local stacked map popped in
// lock step with the host checkpoints.
//
// The engine interface returns no errors, so the first host failure is
// captured and must be checked via Err after the run.
type StateDB struct {
	state *state.State
	repo  *stackedmap.StackedMap
	snaps []snapshotRec
	err   error
}

// New creates a StateDB for one execution run over the given state.
func New(st *state.State) *StateDB {
	repo := stackedmap.New(func(k any) (any, bool, error) {
		switch k.(type) {
		case selfDestructKey, createdKey, accessAddrKey:
			return false, true, nil
		case accessSlotKey:
			return false, true, nil
		case refundKey:
			return uint64(0), true, nil
		case transientKey:
			return common.Hash{}, true, nil
		case originStorageKey:
			return (*common.Hash)(nil), true, nil
		case preimageKey:
			return []byte(nil), true, nil
		case logKey:
			return (*types.Log)(nil), true, nil
		}
		panic(fmt.Errorf("unexpected key type %+v", k))
	})
	repo.Push()
	return &StateDB{state: st, repo: repo}
}

func (s *StateDB) setError(err error) {
	if s.err == nil {
		s.err = err
	}
}

// Err returns the first host state error captured during the run.
func (s *StateDB) Err() error {
	return s.err
}

func (s *StateDB) repoGet(key any) any {
	v, _, _ := s.repo.Get(key)
	return v
}

// GetLogs returns the logs emitted during the run, in order.
func (s *StateDB) GetLogs() (logs []*types.Log) {
	s.repo.Journal(func(k, v any) bool {
		if _, ok := k.(logKey); ok {
			logs = append(logs, v.(*types.Log))
		}
		return true
	})
	return
}

// GetPreimages returns the SHA3 preimages recorded during the run.
func (s *StateDB) GetPreimages() map[common.Hash][]byte {
	preimages := make(map[common.Hash][]byte)
	s.repo.Journal(func(k, v any) bool {
		if key, ok := k.(preimageKey); ok {
			preimages[common.Hash(key)] = v.([]byte)
		}
		return true
	})
	return preimages
}

// SelfDestructed returns the addresses destructed during the run.
func (s *StateDB) SelfDestructed() (addrs []common.Address) {
	seen := make(map[common.Address]bool)
	s.repo.Journal(func(k, v any) bool {
		if key, ok := k.(selfDestructKey); ok && v.(bool) && !seen[common.Address(key)] {
			seen[common.Address(key)] = true
			addrs = append(addrs, common.Address(key))
		}
		return true
	})
	return
}

func (s *StateDB) CreateAccount(common.Address) {}

func (s *StateDB) CreateContract(addr common.Address) {
	s.repo.Put(createdKey(addr), true)
}

func (s *StateDB) GetBalance(addr common.Address) *uint256.Int {
	balance, err := s.state.GetBalance(addr)
	if err != nil {
		s.setError(err)
		return new(uint256.Int)
	}
	b, _ := uint256.FromBig(balance)
	return b
}

func (s *StateDB) SubBalance(addr common.Address, amount *uint256.Int, _ tracing.BalanceChangeReason) uint256.Int {
	prev := *s.GetBalance(addr)
	if !amount.IsZero() {
		balance := new(uint256.Int).Sub(&prev, amount)
		s.setError(s.state.SetBalance(addr, balance.ToBig()))
	}
	return prev
}

func (s *StateDB) AddBalance(addr common.Address, amount *uint256.Int, _ tracing.BalanceChangeReason) uint256.Int {
	prev := *s.GetBalance(addr)
	if !amount.IsZero() {
		balance := new(uint256.Int).Add(&prev, amount)
		s.setError(s.state.SetBalance(addr, balance.ToBig()))
	}
	return prev
}

func (s *StateDB) GetNonce(addr common.Address) uint64 {
	nonce, err := s.state.GetNonce(addr)
	if err != nil {
		s.setError(err)
		return 0
	}
	return nonce
}

func (s *StateDB) SetNonce(addr common.Address, nonce uint64, _ tracing.NonceChangeReason) {
	s.setError(s.state.SetNonce(addr, nonce))
}

func (s *StateDB) GetCodeHash(addr common.Address) common.Hash {
	hash, err := s.state.GetCodeHash(addr)
	if err != nil {
		s.setError(err)
		return common.Hash{}
	}
	return hash
}

func (s *StateDB) GetCode(addr common.Address) []byte {
	code, err := s.state.GetCode(addr)
	if err != nil {
		s.setError(err)
		return nil
	}
	return code
}

func (s *StateDB) SetCode(addr common.Address, code []byte) []byte {
	prev := s.GetCode(addr)
	s.setError(s.state.SetCode(addr, code))
	return prev
}

func (s *StateDB) GetCodeSize(addr common.Address) int {
	return len(s.GetCode(addr))
}

func (s *StateDB) AddRefund(gas uint64) {
	s.repo.Put(refundKey{}, s.repoGet(refundKey{}).(uint64)+gas)
}

func (s *StateDB) SubRefund(gas uint64) {
	refund := s.repoGet(refundKey{}).(uint64)
	if gas > refund {
		panic(fmt.Sprintf("refund counter below zero (gas: %d > refund: %d)", gas, refund))
	}
	s.repo.Put(refundKey{}, refund-gas)
}

func (s *StateDB) GetRefund() uint64 {
	return s.repoGet(refundKey{}).(uint64)
}

func (s *StateDB) GetCommittedState(addr common.Address, key common.Hash) common.Hash {
	// the pre-run value is recorded on the first write of the slot
	if origin := s.repoGet(originStorageKey{addr, key}).(*common.Hash); origin != nil {
		return *origin
	}
	return s.GetState(addr, key)
}

func (s *StateDB) GetState(addr common.Address, key common.Hash) common.Hash {
	value, err := s.state.GetStorage(addr, key)
	if err != nil {
		s.setError(err)
		return common.Hash{}
	}
	return value
}

func (s *StateDB) SetState(addr common.Address, key, value common.Hash) common.Hash {
	prev := s.GetState(addr, key)
	if s.repoGet(originStorageKey{addr, key}).(*common.Hash) == nil {
		origin := prev
		s.repo.Put(originStorageKey{addr, key}, &origin)
	}
	s.state.SetStorage(addr, key, value)
	return prev
}

func (s *StateDB) GetStorageRoot(common.Address) common.Hash {
	// individual storage tries are not maintained. the engine only compares
	// this against the empty root when checking create collisions.
	return types.EmptyRootHash
}

func (s *StateDB) GetTransientState(addr common.Address, key common.Hash) common.Hash {
	return s.repoGet(transientKey{addr, key}).(common.Hash)
}

func (s *StateDB) SetTransientState(addr common.Address, key, value common.Hash) {
	s.repo.Put(transientKey{addr, key}, value)
}

func (s *StateDB) SelfDestruct(addr common.Address) uint256.Int {
	prev := *s.GetBalance(addr)
	s.setError(s.state.SetBalance(addr, new(uint256.Int).ToBig()))
	s.repo.Put(selfDestructKey(addr), true)
	return prev
}

func (s *StateDB) HasSelfDestructed(addr common.Address) bool {
	return s.repoGet(selfDestructKey(addr)).(bool)
}

func (s *StateDB) SelfDestruct6780(addr common.Address) (uint256.Int, bool) {
	if s.repoGet(createdKey(addr)).(bool) {
		return s.SelfDestruct(addr), true
	}
	return *s.GetBalance(addr), false
}

func (s *StateDB) Exist(addr common.Address) bool {
	if s.repoGet(selfDestructKey(addr)).(bool) {
		return true
	}
	exists, err := s.state.Exists(addr)
	if err != nil {
		s.setError(err)
		return false
	}
	return exists
}

func (s *StateDB) Empty(addr common.Address) bool {
	exists, err := s.state.Exists(addr)
	if err != nil {
		s.setError(err)
		return true
	}
	return !exists
}

func (s *StateDB) AddressInAccessList(addr common.Address) bool {
	return s.repoGet(accessAddrKey(addr)).(bool)
}

func (s *StateDB) SlotInAccessList(addr common.Address, slot common.Hash) (bool, bool) {
	return s.AddressInAccessList(addr), s.repoGet(accessSlotKey{addr, slot}).(bool)
}

func (s *StateDB) AddAddressToAccessList(addr common.Address) {
	s.repo.Put(accessAddrKey(addr), true)
}

func (s *StateDB) AddSlotToAccessList(addr common.Address, slot common.Hash) {
	s.repo.Put(accessAddrKey(addr), true)
	s.repo.Put(accessSlotKey{addr, slot}, true)
}

// PointCache is verkle-only, the engine nil-checks it.
func (s *StateDB) PointCache() *utils.PointCache { return nil }

func (s *StateDB) Prepare(rules params.Rules, sender, coinbase common.Address, dest *common.Address, precompiles []common.Address, txAccesses types.AccessList) {
	if rules.IsBerlin {
		s.AddAddressToAccessList(sender)
		if dest != nil {
			s.AddAddressToAccessList(*dest)
		}
		for _, addr := range precompiles {
			s.AddAddressToAccessList(addr)
		}
		for _, el := range txAccesses {
			s.AddAddressToAccessList(el.Address)
			for _, key := range el.StorageKeys {
				s.AddSlotToAccessList(el.Address, key)
			}
		}
		if rules.IsShanghai {
			s.AddAddressToAccessList(coinbase)
		}
	}
}

// Snapshot pairs a host state checkpoint with a local level.
func (s *StateDB) Snapshot() int {
	cp := s.state.NewCheckpoint()
	depth := s.repo.Push()
	s.snaps = append(s.snaps, snapshotRec{cp: cp, depth: depth})
	return len(s.snaps) - 1
}

func (s *StateDB) RevertToSnapshot(rev int) {
	if rev < 0 || rev >= len(s.snaps) {
		panic(fmt.Sprintf("invalid snapshot revision %d (have %d)", rev, len(s.snaps)))
	}
	rec := s.snaps[rev]
	if err := s.state.RevertTo(rec.cp); err != nil {
		panic(fmt.Sprintf("revert snapshot %d: %v", rev, err))
	}
	s.repo.PopTo(rec.depth)
	s.snaps = s.snaps[:rev]
}

func (s *StateDB) AddLog(l *types.Log) {
	s.repo.Put(logKey{}, l)
}

func (s *StateDB) AddPreimage(hash common.Hash, preimage []byte) {
	s.repo.Put(preimageKey(hash), preimage)
}

// Witness is stateless-execution-only, the engine nil-checks it.
func (s *StateDB) Witness() *stateless.Witness { return nil }

// AccessEvents is verkle-only, the engine nil-checks it.
func (s *StateDB) AccessEvents() *gethstate.AccessEvents { return nil }

// Finalise deletes the accounts destructed during the run. Must be invoked
// once at the end of the run, before committing.
func (s *StateDB) Finalise(bool) {
	for _, addr := range s.SelfDestructed() {
		s.state.Delete(addr)
	}
}
