// Copyright (c) 2026 The ember developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package state

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
)

// stubSource serves canned accounts and counts fetches per address.
type stubSource struct {
	accounts map[common.Address]*AccountInfo
	storage  map[common.Address]map[common.Hash]common.Hash
	fetches  map[common.Address]int
}

func newStubSource() *stubSource {
	return &stubSource{
		accounts: make(map[common.Address]*AccountInfo),
		storage:  make(map[common.Address]map[common.Hash]common.Hash),
		fetches:  make(map[common.Address]int),
	}
}

func (s *stubSource) Account(addr common.Address) (*AccountInfo, error) {
	s.fetches[addr]++
	if info, ok := s.accounts[addr]; ok {
		cpy := *info
		return &cpy, nil
	}
	return nil, nil
}

func (s *stubSource) Storage(addr common.Address, key common.Hash) (common.Hash, error) {
	if slots, ok := s.storage[addr]; ok {
		return slots[key], nil
	}
	return common.Hash{}, nil
}

func (s *stubSource) BlockHash(number uint64) (common.Hash, error) {
	return localBlockHash(number), nil
}

func TestStateDefaults(t *testing.T) {
	st := New(nil)
	addr := common.BytesToAddress([]byte("nobody"))

	balance, err := st.GetBalance(addr)
	assert.Nil(t, err)
	assert.Equal(t, "0", balance.String())

	nonce, err := st.GetNonce(addr)
	assert.Nil(t, err)
	assert.Zero(t, nonce)

	code, err := st.GetCode(addr)
	assert.Nil(t, err)
	assert.Empty(t, code)

	codeHash, err := st.GetCodeHash(addr)
	assert.Nil(t, err)
	assert.Equal(t, EmptyCodeHash, codeHash)

	value, err := st.GetStorage(addr, common.BytesToHash([]byte("slot")))
	assert.Nil(t, err)
	assert.Equal(t, common.Hash{}, value)

	exists, err := st.Exists(addr)
	assert.Nil(t, err)
	assert.False(t, exists)
}

func TestStateReadWrite(t *testing.T) {
	st := New(nil)
	addr := common.BytesToAddress([]byte("acc1"))
	slot := common.BytesToHash([]byte("slot"))
	code := []byte{0x60, 0x01}

	assert.Nil(t, st.SetBalance(addr, big.NewInt(10)))
	assert.Nil(t, st.SetNonce(addr, 7))
	assert.Nil(t, st.SetCode(addr, code))
	st.SetStorage(addr, slot, common.BytesToHash([]byte("value")))

	balance, _ := st.GetBalance(addr)
	assert.Equal(t, big.NewInt(10), balance)
	nonce, _ := st.GetNonce(addr)
	assert.Equal(t, uint64(7), nonce)
	got, _ := st.GetCode(addr)
	assert.Equal(t, code, got)
	codeHash, _ := st.GetCodeHash(addr)
	assert.Equal(t, crypto.Keccak256Hash(code), codeHash)
	value, _ := st.GetStorage(addr, slot)
	assert.Equal(t, common.BytesToHash([]byte("value")), value)

	exists, _ := st.Exists(addr)
	assert.True(t, exists)
}

func TestStateSetAccount(t *testing.T) {
	st := New(nil)
	addr := common.BytesToAddress([]byte("acc1"))
	code := []byte{0x60, 0x02}

	assert.Nil(t, st.SetAccount(addr, NewAccountInfo(big.NewInt(5), 3, code)))

	info, err := st.GetAccount(addr)
	assert.Nil(t, err)
	assert.Equal(t, big.NewInt(5), info.Balance)
	assert.Equal(t, uint64(3), info.Nonce)
	assert.Equal(t, code, info.Code)
	assert.Equal(t, crypto.Keccak256Hash(code), info.CodeHash)

	// replacing the account leaves storage untouched
	slot := common.BytesToHash([]byte("slot"))
	st.SetStorage(addr, slot, common.BytesToHash([]byte("value")))
	assert.Nil(t, st.SetAccount(addr, NewAccountInfo(big.NewInt(9), 0, nil)))
	value, _ := st.GetStorage(addr, slot)
	assert.Equal(t, common.BytesToHash([]byte("value")), value)
	codeHash, _ := st.GetCodeHash(addr)
	assert.Equal(t, EmptyCodeHash, codeHash)
}

func TestStateCheckpointRevert(t *testing.T) {
	st := New(nil)
	addr := common.BytesToAddress([]byte("acc1"))

	assert.Nil(t, st.SetBalance(addr, big.NewInt(1)))
	cp := st.NewCheckpoint()
	assert.Nil(t, st.SetBalance(addr, big.NewInt(2)))
	assert.Nil(t, st.SetNonce(addr, 5))

	assert.Nil(t, st.RevertTo(cp))

	balance, _ := st.GetBalance(addr)
	assert.Equal(t, big.NewInt(1), balance)
	nonce, _ := st.GetNonce(addr)
	assert.Zero(t, nonce)
}

func TestStateNestedCheckpoints(t *testing.T) {
	st := New(nil)
	addr := common.BytesToAddress([]byte("acc1"))

	cp1 := st.NewCheckpoint()
	assert.Nil(t, st.SetBalance(addr, big.NewInt(1)))
	cp2 := st.NewCheckpoint()
	assert.Nil(t, st.SetBalance(addr, big.NewInt(2)))

	assert.Nil(t, st.RevertTo(cp2))
	balance, _ := st.GetBalance(addr)
	assert.Equal(t, big.NewInt(1), balance)

	assert.Nil(t, st.RevertTo(cp1))
	balance, _ = st.GetBalance(addr)
	assert.Equal(t, "0", balance.String())
}

func TestStateOutOfOrderRevert(t *testing.T) {
	st := New(nil)
	addr := common.BytesToAddress([]byte("acc1"))

	cp1 := st.NewCheckpoint()
	assert.Nil(t, st.SetBalance(addr, big.NewInt(1)))
	cp2 := st.NewCheckpoint()
	assert.Nil(t, st.SetBalance(addr, big.NewInt(2)))

	// reverting to the outer checkpoint invalidates the inner one
	assert.Nil(t, st.RevertTo(cp1))
	assert.ErrorIs(t, st.RevertTo(cp2), ErrInvalidCheckpoint)

	// and the outer checkpoint is consumed too
	assert.ErrorIs(t, st.RevertTo(cp1), ErrNoCheckpoint)
}

func TestStateDuplicateCheckpointTokens(t *testing.T) {
	st := New(nil)
	addr := common.BytesToAddress([]byte("acc1"))

	// no mutation between the two, so the tokens are equal
	cp1 := st.NewCheckpoint()
	cp2 := st.NewCheckpoint()
	assert.Equal(t, cp1, cp2)

	assert.Nil(t, st.SetBalance(addr, big.NewInt(1)))

	// the innermost record is the one reverted; the outer one stays usable
	assert.Nil(t, st.RevertTo(cp2))
	assert.Nil(t, st.SetBalance(addr, big.NewInt(2)))
	assert.Nil(t, st.RevertTo(cp1))

	balance, _ := st.GetBalance(addr)
	assert.Equal(t, "0", balance.String())
	assert.ErrorIs(t, st.RevertTo(cp1), ErrNoCheckpoint)
}

func TestStateRevertWithoutCheckpoint(t *testing.T) {
	st := New(nil)
	assert.ErrorIs(t, st.RevertTo(Checkpoint{}), ErrNoCheckpoint)
}

func TestStateCommitFinality(t *testing.T) {
	st := New(nil)
	addr := common.BytesToAddress([]byte("acc1"))

	cp := st.NewCheckpoint()
	assert.Nil(t, st.SetBalance(addr, big.NewInt(42)))
	st.Commit()

	// committed mutations can no longer be undone
	assert.ErrorIs(t, st.RevertTo(cp), ErrNoCheckpoint)
	balance, _ := st.GetBalance(addr)
	assert.Equal(t, big.NewInt(42), balance)

	// commit with no outstanding checkpoints is a no-op
	st.Commit()
}

func TestStateDelete(t *testing.T) {
	st := New(nil)
	addr := common.BytesToAddress([]byte("acc1"))
	slot := common.BytesToHash([]byte("slot"))

	assert.Nil(t, st.SetBalance(addr, big.NewInt(1)))
	assert.Nil(t, st.SetCode(addr, []byte{0x60}))
	st.SetStorage(addr, slot, common.BytesToHash([]byte("value")))

	cp := st.NewCheckpoint()
	st.Delete(addr)

	exists, _ := st.Exists(addr)
	assert.False(t, exists)
	code, _ := st.GetCode(addr)
	assert.Empty(t, code)
	value, _ := st.GetStorage(addr, slot)
	assert.Equal(t, common.Hash{}, value)

	// deletion is revertible, storage included
	assert.Nil(t, st.RevertTo(cp))
	value, _ = st.GetStorage(addr, slot)
	assert.Equal(t, common.BytesToHash([]byte("value")), value)
}

func TestStateLogs(t *testing.T) {
	st := New(nil)
	addr := common.BytesToAddress([]byte("acc1"))

	st.AddLog(&types.Log{Address: addr, Data: []byte{1}})
	cp := st.NewCheckpoint()
	st.AddLog(&types.Log{Address: addr, Data: []byte{2}})
	st.AddLog(&types.Log{Address: addr, Data: []byte{3}})

	logs := st.Logs()
	assert.Len(t, logs, 3)
	assert.Equal(t, []byte{1}, logs[0].Data)
	assert.Equal(t, []byte{3}, logs[2].Data)

	// logs emitted after the checkpoint are discarded on revert
	assert.Nil(t, st.RevertTo(cp))
	logs = st.Logs()
	assert.Len(t, logs, 1)
	assert.Equal(t, []byte{1}, logs[0].Data)
}

func TestStateCheckpointIndices(t *testing.T) {
	st := New(nil)
	addr := common.BytesToAddress([]byte("acc1"))

	cp1 := st.NewCheckpoint()
	assert.Zero(t, cp1.JournalIndex)
	assert.Zero(t, cp1.LogIndex)

	assert.Nil(t, st.SetBalance(addr, big.NewInt(1)))
	st.AddLog(&types.Log{Address: addr})

	cp2 := st.NewCheckpoint()
	assert.Equal(t, 2, cp2.JournalIndex)
	assert.Equal(t, 1, cp2.LogIndex)
}

func TestStateCodeByHash(t *testing.T) {
	st := New(nil)
	addr := common.BytesToAddress([]byte("acc1"))
	code := []byte{0x60, 0x01, 0x60, 0x02}

	assert.Nil(t, st.SetCode(addr, code))

	got, err := st.CodeByHash(crypto.Keccak256Hash(code))
	assert.Nil(t, err)
	assert.Equal(t, code, got)

	got, err = st.CodeByHash(EmptyCodeHash)
	assert.Nil(t, err)
	assert.Empty(t, got)

	_, err = st.CodeByHash(common.BytesToHash([]byte("no such code")))
	assert.ErrorIs(t, err, ErrCodeNotFound)
}

func TestStateAccounts(t *testing.T) {
	st := New(nil)
	addr1 := common.BytesToAddress([]byte("acc1"))
	addr2 := common.BytesToAddress([]byte("acc2"))

	assert.Nil(t, st.SetBalance(addr1, big.NewInt(1)))
	assert.Nil(t, st.SetNonce(addr2, 2))
	_, err := st.GetBalance(common.BytesToAddress([]byte("acc3")))
	assert.Nil(t, err)

	// touched through storage only
	addr4 := common.BytesToAddress([]byte("acc4"))
	st.SetStorage(addr4, common.BytesToHash([]byte("slot")), common.BytesToHash([]byte("v")))

	all, err := st.Accounts()
	assert.Nil(t, err)
	assert.Len(t, all, 4)
	assert.Equal(t, big.NewInt(1), all[addr1].Balance)
	assert.Equal(t, uint64(2), all[addr2].Nonce)
	assert.Contains(t, all, addr4)
}

func TestStateSourceFetchOnce(t *testing.T) {
	src := newStubSource()
	addr := common.BytesToAddress([]byte("remote"))
	src.accounts[addr] = &AccountInfo{Balance: big.NewInt(100), Nonce: 9}
	src.storage[addr] = map[common.Hash]common.Hash{
		common.BytesToHash([]byte("slot")): common.BytesToHash([]byte("value")),
	}

	st := New(src)
	for range 3 {
		balance, err := st.GetBalance(addr)
		assert.Nil(t, err)
		assert.Equal(t, big.NewInt(100), balance)
	}
	nonce, _ := st.GetNonce(addr)
	assert.Equal(t, uint64(9), nonce)
	value, _ := st.GetStorage(addr, common.BytesToHash([]byte("slot")))
	assert.Equal(t, common.BytesToHash([]byte("value")), value)

	assert.Equal(t, 1, src.fetches[addr])

	// local overwrites shadow the source without refetching
	assert.Nil(t, st.SetBalance(addr, big.NewInt(1)))
	balance, _ := st.GetBalance(addr)
	assert.Equal(t, big.NewInt(1), balance)
	assert.Equal(t, 1, src.fetches[addr])
}

func TestStateLocalBlockHash(t *testing.T) {
	st := New(nil)
	h, err := st.BlockHash(12)
	assert.Nil(t, err)
	assert.Equal(t, crypto.Keccak256Hash([]byte("12")), h)
}
