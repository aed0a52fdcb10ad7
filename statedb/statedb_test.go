// Copyright (c) 2026 The ember developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package statedb

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/params"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/embervm/ember/state"
)

func TestBalanceOps(t *testing.T) {
	db := New(state.New(nil))
	addr := common.BytesToAddress([]byte("acc1"))

	prev := db.AddBalance(addr, uint256.NewInt(10), 0)
	assert.True(t, prev.IsZero())
	prev = db.SubBalance(addr, uint256.NewInt(4), 0)
	assert.Equal(t, uint256.NewInt(10), &prev)
	assert.Equal(t, uint256.NewInt(6), db.GetBalance(addr))
	assert.Nil(t, db.Err())
}

func TestNonceAndCode(t *testing.T) {
	db := New(state.New(nil))
	addr := common.BytesToAddress([]byte("acc1"))
	code := []byte{0x60, 0x01}

	db.SetNonce(addr, 3, 0)
	assert.Equal(t, uint64(3), db.GetNonce(addr))

	prev := db.SetCode(addr, code)
	assert.Empty(t, prev)
	assert.Equal(t, code, db.GetCode(addr))
	assert.Equal(t, len(code), db.GetCodeSize(addr))

	prev = db.SetCode(addr, []byte{0x60, 0x02})
	assert.Equal(t, code, prev)
}

func TestSnapshotRevert(t *testing.T) {
	db := New(state.New(nil))
	addr := common.BytesToAddress([]byte("acc1"))
	slot := common.BytesToHash([]byte("slot"))

	db.AddBalance(addr, uint256.NewInt(1), 0)
	rev := db.Snapshot()
	db.AddBalance(addr, uint256.NewInt(1), 0)
	db.SetState(addr, slot, common.BytesToHash([]byte("value")))
	db.AddRefund(100)
	db.SetTransientState(addr, slot, common.BytesToHash([]byte("t")))

	db.RevertToSnapshot(rev)

	assert.Equal(t, uint256.NewInt(1), db.GetBalance(addr))
	assert.Equal(t, common.Hash{}, db.GetState(addr, slot))
	assert.Zero(t, db.GetRefund())
	assert.Equal(t, common.Hash{}, db.GetTransientState(addr, slot))
}

func TestNestedSnapshots(t *testing.T) {
	db := New(state.New(nil))
	addr := common.BytesToAddress([]byte("acc1"))

	rev1 := db.Snapshot()
	db.AddBalance(addr, uint256.NewInt(1), 0)
	rev2 := db.Snapshot()
	db.AddBalance(addr, uint256.NewInt(2), 0)

	db.RevertToSnapshot(rev2)
	assert.Equal(t, uint256.NewInt(1), db.GetBalance(addr))
	db.RevertToSnapshot(rev1)
	assert.True(t, db.GetBalance(addr).IsZero())
}

func TestCommittedState(t *testing.T) {
	st := state.New(nil)
	addr := common.BytesToAddress([]byte("acc1"))
	slot := common.BytesToHash([]byte("slot"))
	st.SetStorage(addr, slot, common.BytesToHash([]byte("old")))

	db := New(st)
	assert.Equal(t, common.BytesToHash([]byte("old")), db.GetCommittedState(addr, slot))

	prev := db.SetState(addr, slot, common.BytesToHash([]byte("new")))
	assert.Equal(t, common.BytesToHash([]byte("old")), prev)
	db.SetState(addr, slot, common.BytesToHash([]byte("newer")))

	assert.Equal(t, common.BytesToHash([]byte("newer")), db.GetState(addr, slot))
	assert.Equal(t, common.BytesToHash([]byte("old")), db.GetCommittedState(addr, slot))
}

func TestRefundCounter(t *testing.T) {
	db := New(state.New(nil))
	db.AddRefund(10)
	db.SubRefund(4)
	assert.Equal(t, uint64(6), db.GetRefund())
	assert.Panics(t, func() { db.SubRefund(7) })
}

func TestSelfDestruct(t *testing.T) {
	st := state.New(nil)
	addr := common.BytesToAddress([]byte("acc1"))
	assert.Nil(t, st.SetBalance(addr, uint256.NewInt(5).ToBig()))
	assert.Nil(t, st.SetCode(addr, []byte{0x60}))

	db := New(st)
	prev := db.SelfDestruct(addr)
	assert.Equal(t, uint256.NewInt(5), &prev)
	assert.True(t, db.GetBalance(addr).IsZero())
	assert.True(t, db.HasSelfDestructed(addr))
	// still exists until finalised
	assert.True(t, db.Exist(addr))
	assert.Equal(t, []byte{0x60}, db.GetCode(addr))

	db.Finalise(true)
	code, _ := st.GetCode(addr)
	assert.Empty(t, code)
}

func TestSelfDestruct6780(t *testing.T) {
	st := state.New(nil)
	old := common.BytesToAddress([]byte("old"))
	fresh := common.BytesToAddress([]byte("fresh"))
	assert.Nil(t, st.SetBalance(old, uint256.NewInt(3).ToBig()))
	assert.Nil(t, st.SetBalance(fresh, uint256.NewInt(7).ToBig()))

	db := New(st)
	// pre-existing contract survives
	prev, destructed := db.SelfDestruct6780(old)
	assert.False(t, destructed)
	assert.Equal(t, uint256.NewInt(3), &prev)
	assert.False(t, db.HasSelfDestructed(old))

	// contract created in this run is destructed
	db.CreateContract(fresh)
	prev, destructed = db.SelfDestruct6780(fresh)
	assert.True(t, destructed)
	assert.Equal(t, uint256.NewInt(7), &prev)
	assert.True(t, db.HasSelfDestructed(fresh))
}

func TestAccessList(t *testing.T) {
	db := New(state.New(nil))
	sender := common.BytesToAddress([]byte("sender"))
	dest := common.BytesToAddress([]byte("dest"))
	coinbase := common.BytesToAddress([]byte("coinbase"))
	slot := common.BytesToHash([]byte("slot"))

	rules := params.Rules{IsBerlin: true, IsShanghai: true}
	db.Prepare(rules, sender, coinbase, &dest, nil, types.AccessList{
		{Address: dest, StorageKeys: []common.Hash{slot}},
	})

	assert.True(t, db.AddressInAccessList(sender))
	assert.True(t, db.AddressInAccessList(coinbase))
	addrOk, slotOk := db.SlotInAccessList(dest, slot)
	assert.True(t, addrOk)
	assert.True(t, slotOk)
	_, slotOk = db.SlotInAccessList(dest, common.BytesToHash([]byte("other")))
	assert.False(t, slotOk)
}

func TestLogsOrder(t *testing.T) {
	db := New(state.New(nil))
	addr := common.BytesToAddress([]byte("acc1"))

	db.AddLog(&types.Log{Address: addr, Data: []byte{1}})
	rev := db.Snapshot()
	db.AddLog(&types.Log{Address: addr, Data: []byte{2}})
	db.RevertToSnapshot(rev)
	db.AddLog(&types.Log{Address: addr, Data: []byte{3}})

	logs := db.GetLogs()
	assert.Len(t, logs, 2)
	assert.Equal(t, []byte{1}, logs[0].Data)
	assert.Equal(t, []byte{3}, logs[1].Data)
}

type failingSource struct{ err error }

func (f *failingSource) Account(common.Address) (*state.AccountInfo, error) { return nil, f.err }
func (f *failingSource) Storage(common.Address, common.Hash) (common.Hash, error) {
	return common.Hash{}, f.err
}
func (f *failingSource) BlockHash(uint64) (common.Hash, error) { return common.Hash{}, f.err }

func TestErrCapture(t *testing.T) {
	cause := errors.New("rpc down")
	db := New(state.New(&failingSource{err: cause}))
	addr := common.BytesToAddress([]byte("acc1"))

	assert.True(t, db.GetBalance(addr).IsZero())
	assert.ErrorIs(t, db.Err(), cause)

	// first error wins
	db.GetNonce(common.BytesToAddress([]byte("acc2")))
	assert.ErrorIs(t, db.Err(), cause)
}
