// Copyright (c) 2026 The ember developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package runtime

import (
	"strings"

	"github.com/ethereum/go-ethereum/params"
	"github.com/pkg/errors"
)

// ChainConfigForSpec returns a chain config with protocol upgrades active up
// to and including the named fork. The empty name and "latest" select every
// supported upgrade.
func ChainConfigForSpec(name string) (*params.ChainConfig, error) {
	config := DefaultChainConfig()
	switch strings.ToLower(name) {
	case "", "latest", "prague":
	case "cancun":
		config.PragueTime = nil
	case "shanghai":
		config.PragueTime = nil
		config.CancunTime = nil
	case "merge", "paris":
		config.PragueTime = nil
		config.CancunTime = nil
		config.ShanghaiTime = nil
	default:
		return nil, errors.Errorf("unknown spec %q", name)
	}
	return config, nil
}
