// Copyright (c) 2026 The ember developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package evm

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
)

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, errors.Wrapf(ErrInvalidArgument, "address %q", s)
	}
	return common.HexToAddress(s), nil
}

// parseHash accepts a 0x-prefixed hex word of up to 32 bytes, leading zeros
// included, or a plain decimal number.
func parseHash(s string) (common.Hash, error) {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		raw := s[2:]
		if len(raw)%2 == 1 {
			raw = "0" + raw
		}
		b, err := hexutil.Decode("0x" + raw)
		if err != nil || len(b) > 32 {
			return common.Hash{}, errors.Wrapf(ErrInvalidArgument, "hash %q", s)
		}
		return common.BytesToHash(b), nil
	}
	b, err := parseBig(s)
	if err != nil {
		return common.Hash{}, err
	}
	return common.BigToHash(b), nil
}

// parseBytes decodes 0x-prefixed hex. Empty input means no bytes.
func parseBytes(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	b, err := hexutil.Decode(s)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidArgument, "bytes %q: %v", s, err)
	}
	return b, nil
}

// parseBig accepts 0x-prefixed hex or plain decimal. Empty input means zero.
func parseBig(s string) (*big.Int, error) {
	if s == "" {
		return new(big.Int), nil
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		b, err := hexutil.DecodeBig(s)
		if err != nil {
			return nil, errors.Wrapf(ErrInvalidArgument, "number %q: %v", s, err)
		}
		return b, nil
	}
	b, ok := new(big.Int).SetString(s, 10)
	if !ok || b.Sign() < 0 {
		return nil, errors.Wrapf(ErrInvalidArgument, "number %q", s)
	}
	return b, nil
}
