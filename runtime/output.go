// Copyright (c) 2026 The ember developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package runtime

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/pkg/errors"

	"github.com/embervm/ember/state"
)

// Status classifies how an execution ended.
type Status uint8

const (
	// StatusSuccess means the top-level frame ran to completion.
	StatusSuccess Status = iota
	// StatusRevert means the top-level frame reverted explicitly.
	StatusRevert
	// StatusHalt means execution stopped on an error condition.
	StatusHalt
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "Success"
	case StatusRevert:
		return "Revert"
	case StatusHalt:
		return "Halt"
	}
	return "Unknown"
}

// Closed vocabulary of outcome reasons. Engine errors outside this set
// project to ReasonUnknown rather than failing.
const (
	ReasonStop         = "Stop"
	ReasonReturn       = "Return"
	ReasonSelfDestruct = "SelfDestruct"
	ReasonRevert       = "Revert"

	ReasonOutOfGas              = "OutOfGas"
	ReasonOutOfFunds            = "OutOfFunds"
	ReasonCallTooDeep           = "CallTooDeep"
	ReasonInvalidJump           = "InvalidJump"
	ReasonInvalidOpcode         = "OpcodeNotFound"
	ReasonStackUnderflow        = "StackUnderflow"
	ReasonStackOverflow         = "StackOverflow"
	ReasonWriteProtection       = "StateChangeDuringStaticCall"
	ReasonCreateCollision       = "CreateCollision"
	ReasonCreateCodeSizeLimit   = "CreateContractSizeLimit"
	ReasonCreateInitSizeLimit   = "CreateInitCodeSizeLimit"
	ReasonCreateStartingWithEF  = "CreateContractStartingWithEF"
	ReasonNonceOverflow         = "NonceOverflow"
	ReasonReturnDataOutOfBounds = "ReturnDataOutOfBounds"
	ReasonUnknown               = "Unknown"
)

// Output is the outcome of one execution run. Immutable once produced.
type Output struct {
	Status          Status
	Reason          string
	Data            []byte
	ContractAddress *common.Address // set for successful deployments
	GasUsed         uint64
	GasRefunded     uint64
	Logs            []*types.Log
	Diff            *state.Diff // mutations the run would commit
}

// Success reports whether the run completed without revert or halt.
func (o *Output) Success() bool {
	return o.Status == StatusSuccess
}

// projectOutcome maps engine results onto the closed reason vocabulary.
func projectOutcome(ret []byte, vmErr error) (Status, string) {
	if vmErr == nil {
		if len(ret) > 0 {
			return StatusSuccess, ReasonReturn
		}
		return StatusSuccess, ReasonStop
	}
	if errors.Is(vmErr, vm.ErrExecutionReverted) {
		return StatusRevert, ReasonRevert
	}
	return StatusHalt, haltReason(vmErr)
}

func haltReason(vmErr error) string {
	switch {
	case errors.Is(vmErr, vm.ErrOutOfGas),
		errors.Is(vmErr, vm.ErrCodeStoreOutOfGas),
		errors.Is(vmErr, vm.ErrGasUintOverflow):
		return ReasonOutOfGas
	case errors.Is(vmErr, vm.ErrInsufficientBalance):
		return ReasonOutOfFunds
	case errors.Is(vmErr, vm.ErrDepth):
		return ReasonCallTooDeep
	case errors.Is(vmErr, vm.ErrInvalidJump):
		return ReasonInvalidJump
	case errors.Is(vmErr, vm.ErrWriteProtection):
		return ReasonWriteProtection
	case errors.Is(vmErr, vm.ErrContractAddressCollision):
		return ReasonCreateCollision
	case errors.Is(vmErr, vm.ErrMaxCodeSizeExceeded):
		return ReasonCreateCodeSizeLimit
	case errors.Is(vmErr, vm.ErrMaxInitCodeSizeExceeded):
		return ReasonCreateInitSizeLimit
	case errors.Is(vmErr, vm.ErrInvalidCode):
		return ReasonCreateStartingWithEF
	case errors.Is(vmErr, vm.ErrNonceUintOverflow):
		return ReasonNonceOverflow
	case errors.Is(vmErr, vm.ErrReturnDataOutOfBounds):
		return ReasonReturnDataOutOfBounds
	}

	var (
		underflow     *vm.ErrStackUnderflow
		overflow      *vm.ErrStackOverflow
		invalidOpcode *vm.ErrInvalidOpCode
	)
	switch {
	case errors.As(vmErr, &underflow):
		return ReasonStackUnderflow
	case errors.As(vmErr, &overflow):
		return ReasonStackOverflow
	case errors.As(vmErr, &invalidOpcode):
		return ReasonInvalidOpcode
	}
	return ReasonUnknown
}
