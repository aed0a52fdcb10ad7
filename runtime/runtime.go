// Copyright (c) 2026 The ember developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package runtime drives single transaction runs against the host state,
// delegating execution to the EVM engine.
package runtime

import (
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core"
	"github.com/ethereum/go-ethereum/core/tracing"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/params"
	"github.com/holiman/uint256"

	"github.com/embervm/ember/state"
	"github.com/embervm/ember/statedb"
)

// ValidationError reports a message rejected before execution starts.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "runtime: validation: " + e.Reason
}

// Env is the block environment executions run in.
type Env struct {
	Number      uint64
	Timestamp   uint64
	GasLimit    uint64 // 0 means unlimited
	Beneficiary common.Address
	BaseFee     *big.Int
	BlobBaseFee *big.Int
	Random      common.Hash
}

// Message is a one-shot execution request.
type Message struct {
	Caller     common.Address
	To         *common.Address // nil denotes contract creation
	Value      *big.Int
	Data       []byte
	Gas        uint64
	GasPrice   *big.Int
	AccessList types.AccessList
	BlobHashes []common.Hash
	Static     bool
}

// Runtime executes messages against a state, one at a time.
type Runtime struct {
	state       *state.State
	chainConfig *params.ChainConfig
	vmConfig    vm.Config
	env         Env
}

// DefaultChainConfig returns a chain config with every supported protocol
// upgrade active from the genesis block.
func DefaultChainConfig() *params.ChainConfig {
	var zeroTime uint64
	return &params.ChainConfig{
		ChainID:                 big.NewInt(1),
		HomesteadBlock:          big.NewInt(0),
		EIP150Block:             big.NewInt(0),
		EIP155Block:             big.NewInt(0),
		EIP158Block:             big.NewInt(0),
		ByzantiumBlock:          big.NewInt(0),
		ConstantinopleBlock:     big.NewInt(0),
		PetersburgBlock:         big.NewInt(0),
		IstanbulBlock:           big.NewInt(0),
		MuirGlacierBlock:        big.NewInt(0),
		BerlinBlock:             big.NewInt(0),
		LondonBlock:             big.NewInt(0),
		ArrowGlacierBlock:       big.NewInt(0),
		GrayGlacierBlock:        big.NewInt(0),
		MergeNetsplitBlock:      big.NewInt(0),
		ShanghaiTime:            &zeroTime,
		CancunTime:              &zeroTime,
		PragueTime:              &zeroTime,
		TerminalTotalDifficulty: big.NewInt(0),
		BlobScheduleConfig:      params.DefaultBlobSchedule,
	}
}

func normalizeEnv(env Env) Env {
	if env.GasLimit == 0 {
		env.GasLimit = math.MaxUint64
	}
	if env.BaseFee == nil {
		env.BaseFee = new(big.Int)
	}
	if env.BlobBaseFee == nil {
		env.BlobBaseFee = new(big.Int)
	}
	return env
}

// New creates a runtime over the given state and block environment.
func New(st *state.State, env Env) *Runtime {
	return &Runtime{
		state:       st,
		chainConfig: DefaultChainConfig(),
		env:         normalizeEnv(env),
	}
}

// SetVMConfig configures the engine, e.g. to attach a tracer.
// Returns this runtime.
func (rt *Runtime) SetVMConfig(config vm.Config) *Runtime {
	rt.vmConfig = config
	return rt
}

// SetChainConfig overrides the protocol rule set.
// Returns this runtime.
func (rt *Runtime) SetChainConfig(config *params.ChainConfig) *Runtime {
	rt.chainConfig = config
	return rt
}

// SetEnv replaces the block environment for subsequent executions.
// Returns this runtime.
func (rt *Runtime) SetEnv(env Env) *Runtime {
	rt.env = normalizeEnv(env)
	return rt
}

func (rt *Runtime) State() *state.State { return rt.state }
func (rt *Runtime) Env() Env            { return rt.env }

func (rt *Runtime) blockContext() vm.BlockContext {
	random := rt.env.Random
	return vm.BlockContext{
		CanTransfer: core.CanTransfer,
		Transfer:    core.Transfer,
		GetHash: func(n uint64) common.Hash {
			hash, err := rt.state.BlockHash(n)
			if err != nil {
				log.Warn("block hash lookup failed", "number", n, "err", err)
				return common.Hash{}
			}
			return hash
		},
		Coinbase:    rt.env.Beneficiary,
		GasLimit:    rt.env.GasLimit,
		BlockNumber: new(big.Int).SetUint64(rt.env.Number),
		Time:        rt.env.Timestamp,
		Difficulty:  new(big.Int),
		BaseFee:     rt.env.BaseFee,
		BlobBaseFee: rt.env.BlobBaseFee,
		Random:      &random,
	}
}

// Execute runs one message. With commit set, mutations that survive the
// engine's own rollback become the new state baseline and every outstanding
// checkpoint is retired; otherwise the state is restored exactly as it was,
// whatever the outcome.
//
// A revert or halt inside the engine is not an error: it is reported in the
// output. The returned error is reserved for rejected messages and backing
// source failures.
func (rt *Runtime) Execute(msg *Message, commit bool) (*Output, error) {
	if msg.Static && msg.To == nil {
		return nil, &ValidationError{Reason: "static call requires a target"}
	}
	value := msg.Value
	if value == nil {
		value = new(big.Int)
	}
	gasPrice := msg.GasPrice
	if gasPrice == nil {
		gasPrice = new(big.Int)
	}
	value256, overflow := uint256.FromBig(value)
	if overflow || value.Sign() < 0 {
		return nil, &ValidationError{Reason: "value out of range"}
	}

	gasPool := new(core.GasPool).AddGas(rt.env.GasLimit)
	if err := gasPool.SubGas(msg.Gas); err != nil {
		return nil, &ValidationError{Reason: "gas limit exceeds block gas limit"}
	}

	isCreate := msg.To == nil
	blockNum := new(big.Int).SetUint64(rt.env.Number)
	intrinsic, err := core.IntrinsicGas(
		msg.Data, msg.AccessList, nil, isCreate,
		rt.chainConfig.IsHomestead(blockNum),
		rt.chainConfig.IsIstanbul(blockNum),
		rt.chainConfig.IsShanghai(blockNum, rt.env.Timestamp),
	)
	if err != nil {
		return nil, &ValidationError{Reason: err.Error()}
	}
	if msg.Gas < intrinsic {
		return nil, &ValidationError{Reason: "intrinsic gas exceeds gas limit"}
	}

	balance, err := rt.state.GetBalance(msg.Caller)
	if err != nil {
		return nil, err
	}
	cost := new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(msg.Gas))
	cost.Add(cost, value)
	if balance.Cmp(cost) < 0 {
		return nil, &ValidationError{Reason: "insufficient funds for gas * price + value"}
	}

	cp := rt.state.NewCheckpoint()
	db := statedb.New(rt.state)

	vmConfig := rt.vmConfig
	if gasPrice.Sign() == 0 {
		// zero-priced simulations must not trip base fee checks
		vmConfig.NoBaseFee = true
	}
	evm := vm.NewEVM(rt.blockContext(), db, rt.chainConfig, vmConfig)
	evm.SetTxContext(vm.TxContext{
		Origin:     msg.Caller,
		GasPrice:   gasPrice,
		BlobHashes: msg.BlobHashes,
		BlobFeeCap: new(big.Int),
	})

	if tracer := vmConfig.Tracer; tracer != nil && tracer.OnTxStart != nil {
		tracer.OnTxStart(evm.GetVMContext(), types.NewTx(&types.LegacyTx{
			Nonce:    db.GetNonce(msg.Caller),
			To:       msg.To,
			Value:    value,
			Gas:      msg.Gas,
			GasPrice: gasPrice,
			Data:     msg.Data,
		}), msg.Caller)
	}

	rules := rt.chainConfig.Rules(blockNum, true, rt.env.Timestamp)
	db.Prepare(rules, msg.Caller, rt.env.Beneficiary, msg.To, vm.ActivePrecompiles(rules), msg.AccessList)

	if gasPrice.Sign() > 0 {
		prepaid, _ := uint256.FromBig(new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(msg.Gas)))
		db.SubBalance(msg.Caller, prepaid, tracing.BalanceDecreaseGasBuy)
	}

	var (
		ret          []byte
		leftoverGas  uint64
		vmErr        error
		contractAddr *common.Address
		execGas      = msg.Gas - intrinsic
	)
	switch {
	case isCreate:
		var created common.Address
		ret, created, leftoverGas, vmErr = evm.Create(msg.Caller, msg.Data, execGas, value256)
		if vmErr == nil {
			contractAddr = &created
		}
	case msg.Static:
		ret, leftoverGas, vmErr = evm.StaticCall(msg.Caller, *msg.To, msg.Data, execGas)
	default:
		db.SetNonce(msg.Caller, db.GetNonce(msg.Caller)+1, tracing.NonceChangeEoACall)
		ret, leftoverGas, vmErr = evm.Call(msg.Caller, *msg.To, msg.Data, execGas, value256)
	}

	if err := db.Err(); err != nil {
		if rerr := rt.state.RevertTo(cp); rerr != nil {
			log.Error("failed to revert run checkpoint", "err", rerr)
		}
		return nil, err
	}

	gasUsed := msg.Gas - leftoverGas
	refund := gasUsed / params.RefundQuotient
	if rt.chainConfig.IsLondon(blockNum) {
		refund = gasUsed / params.RefundQuotientEIP3529
	}
	if dbRefund := db.GetRefund(); dbRefund < refund {
		refund = dbRefund
	}
	gasUsed -= refund
	leftoverGas += refund

	if gasPrice.Sign() > 0 {
		remaining, _ := uint256.FromBig(new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(leftoverGas)))
		db.AddBalance(msg.Caller, remaining, tracing.BalanceIncreaseGasReturn)
		fee, _ := uint256.FromBig(new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(gasUsed)))
		db.AddBalance(rt.env.Beneficiary, fee, tracing.BalanceIncreaseRewardTransactionFee)
	}

	if tracer := vmConfig.Tracer; tracer != nil && tracer.OnTxEnd != nil {
		tracer.OnTxEnd(&types.Receipt{GasUsed: gasUsed}, nil)
	}

	db.Finalise(true)
	if err := db.Err(); err != nil {
		if rerr := rt.state.RevertTo(cp); rerr != nil {
			log.Error("failed to revert run checkpoint", "err", rerr)
		}
		return nil, err
	}

	status, reason := projectOutcome(ret, vmErr)
	out := &Output{
		Status:          status,
		Reason:          reason,
		Data:            ret,
		ContractAddress: contractAddr,
		GasUsed:         gasUsed,
		GasRefunded:     refund,
	}
	if status == StatusSuccess {
		out.Logs = db.GetLogs()
	}

	diff, err := rt.state.DiffSince(cp)
	if err != nil {
		if rerr := rt.state.RevertTo(cp); rerr != nil {
			log.Error("failed to revert run checkpoint", "err", rerr)
		}
		return nil, err
	}
	diff.Logs = out.Logs
	out.Diff = diff

	if commit {
		for _, l := range out.Logs {
			rt.state.AddLog(l)
		}
		rt.state.Commit()
		metricExecuted().AddWithLabel(1, map[string]string{"mode": "commit", "status": status.String()})
	} else {
		if err := rt.state.RevertTo(cp); err != nil {
			return nil, err
		}
		metricExecuted().AddWithLabel(1, map[string]string{"mode": "simulate", "status": status.String()})
	}
	return out, nil
}
