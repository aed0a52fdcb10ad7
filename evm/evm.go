// Copyright (c) 2026 The ember developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package evm is the host-facing facade: an in-memory or fork-backed EVM
// instance addressed with hex strings, supporting simulated and committing
// calls, deployments and named snapshots.
package evm

import (
	"context"
	"io"
	"math"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/eth/tracers/logger"
	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"

	"github.com/embervm/ember/fork"
	"github.com/embervm/ember/runtime"
	"github.com/embervm/ember/state"
)

// ErrInvalidArgument marks malformed input at the host boundary,
// e.g. a string that does not parse as an address.
var ErrInvalidArgument = errors.New("invalid argument")

// Options configures a new instance.
type Options struct {
	// ForkURL makes the instance read through to a remote node.
	// Empty means a purely in-memory instance.
	ForkURL string
	// ForkBlockNumber pins the fork point. Nil pins the latest block.
	ForkBlockNumber *uint64
	// Env is the block environment executions see.
	Env runtime.Env
	// SpecID names the most recent protocol upgrade to activate,
	// e.g. "shanghai". Empty means latest.
	SpecID string
	// Tracing enables JSON step tracing of every execution.
	Tracing bool
	// TraceOutput receives the trace. Defaults to stderr.
	TraceOutput io.Writer
}

// CallParams describes one message call.
type CallParams struct {
	Caller     string
	To         string
	Data       string // hex, may be empty
	Value      string // hex or decimal, may be empty
	Gas        uint64 // 0 means unlimited
	GasPrice   string // hex or decimal, may be empty
	BlobHashes []string
	Static     bool
}

// DeployParams describes one contract deployment.
type DeployParams struct {
	Deployer string
	Code     string // hex init code
	Value    string
	Gas      uint64
	GasPrice string
}

// EVM is one executor instance. It owns its state exclusively and is not
// safe for concurrent use.
type EVM struct {
	rt  *runtime.Runtime
	src *fork.Source
}

// New creates an instance per the given options.
func New(ctx context.Context, opts Options) (*EVM, error) {
	var (
		src *fork.Source
		st  *state.State
	)
	if opts.ForkURL != "" {
		var err error
		src, err = fork.NewSource(ctx, opts.ForkURL, opts.ForkBlockNumber)
		if err != nil {
			return nil, err
		}
		if opts.Env.Number == 0 {
			opts.Env.Number = src.BlockNumber()
		}
		st = state.New(src)
		log.Info("instance forked", "url", opts.ForkURL, "block", src.BlockNumber())
	} else {
		st = state.New(nil)
		log.Debug("in-memory instance created")
	}

	rt := runtime.New(st, opts.Env)
	if opts.SpecID != "" {
		chainConfig, err := runtime.ChainConfigForSpec(opts.SpecID)
		if err != nil {
			if src != nil {
				src.Close()
			}
			return nil, errors.Wrapf(ErrInvalidArgument, "spec %q", opts.SpecID)
		}
		rt.SetChainConfig(chainConfig)
	}
	if opts.Tracing {
		w := opts.TraceOutput
		if w == nil {
			w = os.Stderr
		}
		rt.SetVMConfig(vm.Config{Tracer: logger.NewJSONLogger(&logger.Config{}, w)})
	}
	return &EVM{rt: rt, src: src}, nil
}

// Close releases the fork connection, if any.
func (e *EVM) Close() {
	if e.src != nil {
		e.src.Close()
	}
}

// Env returns the block environment of the instance.
func (e *EVM) Env() runtime.Env {
	return e.rt.Env()
}

// SetEnv replaces the block environment for subsequent executions.
func (e *EVM) SetEnv(env runtime.Env) {
	e.rt.SetEnv(env)
}

// Basic returns balance, nonce and code hash for the given address.
func (e *EVM) Basic(addr string) (state.AccountInfo, error) {
	a, err := parseAddress(addr)
	if err != nil {
		return state.AccountInfo{}, err
	}
	return e.rt.State().GetAccount(a)
}

// GetBalance returns the balance for the given address.
func (e *EVM) GetBalance(addr string) (*big.Int, error) {
	a, err := parseAddress(addr)
	if err != nil {
		return nil, err
	}
	return e.rt.State().GetBalance(a)
}

// SetBalance sets the balance for the given address.
func (e *EVM) SetBalance(addr, balance string) error {
	a, err := parseAddress(addr)
	if err != nil {
		return err
	}
	b, err := parseBig(balance)
	if err != nil {
		return err
	}
	return e.rt.State().SetBalance(a, b)
}

// InsertAccountInfo replaces balance, nonce and code of the given address.
func (e *EVM) InsertAccountInfo(addr string, balance string, nonce uint64, code string) error {
	a, err := parseAddress(addr)
	if err != nil {
		return err
	}
	b, err := parseBig(balance)
	if err != nil {
		return err
	}
	c, err := parseBytes(code)
	if err != nil {
		return err
	}
	return e.rt.State().SetAccount(a, state.NewAccountInfo(b, nonce, c))
}

// CodeByHash returns the code whose content hash equals the given hash.
func (e *EVM) CodeByHash(hash string) (hexutil.Bytes, error) {
	h, err := parseHash(hash)
	if err != nil {
		return nil, err
	}
	return e.rt.State().CodeByHash(h)
}

// Storage returns the storage value at the given address and slot.
func (e *EVM) Storage(addr, slot string) (common.Hash, error) {
	a, err := parseAddress(addr)
	if err != nil {
		return common.Hash{}, err
	}
	k, err := parseHash(slot)
	if err != nil {
		return common.Hash{}, err
	}
	return e.rt.State().GetStorage(a, k)
}

// SetStorage sets the storage value at the given address and slot.
func (e *EVM) SetStorage(addr, slot, value string) error {
	a, err := parseAddress(addr)
	if err != nil {
		return err
	}
	k, err := parseHash(slot)
	if err != nil {
		return err
	}
	v, err := parseHash(value)
	if err != nil {
		return err
	}
	e.rt.State().SetStorage(a, k, v)
	return nil
}

// BlockHash returns the hash of the block at the given number.
func (e *EVM) BlockHash(number uint64) (common.Hash, error) {
	return e.rt.State().BlockHash(number)
}

// Accounts returns every account touched so far, keyed by hex address.
func (e *EVM) Accounts() (map[string]state.AccountInfo, error) {
	all, err := e.rt.State().Accounts()
	if err != nil {
		return nil, err
	}
	out := make(map[string]state.AccountInfo, len(all))
	for addr, info := range all {
		out[addr.Hex()] = info
	}
	return out, nil
}

func (e *EVM) message(p CallParams) (*runtime.Message, error) {
	caller, err := parseAddress(p.Caller)
	if err != nil {
		return nil, err
	}
	to, err := parseAddress(p.To)
	if err != nil {
		return nil, err
	}
	data, err := parseBytes(p.Data)
	if err != nil {
		return nil, err
	}
	value, err := parseBig(p.Value)
	if err != nil {
		return nil, err
	}
	gasPrice, err := parseBig(p.GasPrice)
	if err != nil {
		return nil, err
	}
	var blobHashes []common.Hash
	for _, s := range p.BlobHashes {
		h, err := parseHash(s)
		if err != nil {
			return nil, err
		}
		blobHashes = append(blobHashes, h)
	}
	gas := p.Gas
	if gas == 0 {
		gas = math.MaxUint64
	}
	return &runtime.Message{
		Caller:     caller,
		To:         &to,
		Value:      value,
		Data:       data,
		Gas:        gas,
		GasPrice:   gasPrice,
		BlobHashes: blobHashes,
		Static:     p.Static,
	}, nil
}

// MessageCall executes a call without persisting anything: the state is
// left exactly as it was, whatever the outcome.
func (e *EVM) MessageCall(p CallParams) (*runtime.Output, error) {
	msg, err := e.message(p)
	if err != nil {
		return nil, err
	}
	return e.rt.Execute(msg, false)
}

// MessageCallCommitting executes a call and makes the surviving state
// changes the new baseline. Outstanding snapshots are retired.
func (e *EVM) MessageCallCommitting(p CallParams) (*runtime.Output, error) {
	msg, err := e.message(p)
	if err != nil {
		return nil, err
	}
	return e.rt.Execute(msg, true)
}

// Deploy creates a contract and returns its hex address. A deployment whose
// execution reverts or halts is reported as an error.
func (e *EVM) Deploy(p DeployParams) (string, *runtime.Output, error) {
	deployer, err := parseAddress(p.Deployer)
	if err != nil {
		return "", nil, err
	}
	code, err := parseBytes(p.Code)
	if err != nil {
		return "", nil, err
	}
	value, err := parseBig(p.Value)
	if err != nil {
		return "", nil, err
	}
	gasPrice, err := parseBig(p.GasPrice)
	if err != nil {
		return "", nil, err
	}
	gas := p.Gas
	if gas == 0 {
		gas = math.MaxUint64
	}
	out, err := e.rt.Execute(&runtime.Message{
		Caller:   deployer,
		Value:    value,
		Data:     code,
		Gas:      gas,
		GasPrice: gasPrice,
	}, true)
	if err != nil {
		return "", nil, err
	}
	if !out.Success() {
		return "", out, errors.Errorf("deployment failed: %s", out.Reason)
	}
	return out.ContractAddress.Hex(), out, nil
}

// Snapshot takes a checkpoint of the current state.
func (e *EVM) Snapshot() state.Checkpoint {
	return e.rt.State().NewCheckpoint()
}

// Revert restores the state captured by the given checkpoint, discarding
// it and any checkpoint taken after it.
func (e *EVM) Revert(cp state.Checkpoint) error {
	return e.rt.State().RevertTo(cp)
}

// Commit makes the current state the new baseline, retiring all
// outstanding checkpoints. Idempotent.
func (e *EVM) Commit() {
	e.rt.State().Commit()
}
