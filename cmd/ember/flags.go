// Copyright (c) 2026 The ember developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	cli "gopkg.in/urfave/cli.v1"
)

var (
	forkURLFlag = cli.StringFlag{
		Name:   "fork-url",
		Usage:  "RPC endpoint to fork state from (empty for in-memory)",
		EnvVar: "EMBER_FORK_URL",
	}
	forkBlockFlag = cli.Uint64Flag{
		Name:  "fork-block",
		Usage: "block number to pin the fork at (default: latest)",
	}
	specFlag = cli.StringFlag{
		Name:  "spec",
		Usage: "most recent protocol upgrade to activate (default: latest)",
	}
	callerFlag = cli.StringFlag{
		Name:  "caller",
		Value: "0x0000000000000000000000000000000000000001",
		Usage: "caller address",
	}
	toFlag = cli.StringFlag{
		Name:  "to",
		Usage: "call target address",
	}
	codeFlag = cli.StringFlag{
		Name:  "code",
		Usage: "hex init code to deploy (mutually exclusive with --to)",
	}
	dataFlag = cli.StringFlag{
		Name:  "data",
		Usage: "hex calldata",
	}
	valueFlag = cli.StringFlag{
		Name:  "value",
		Usage: "value to transfer, hex or decimal",
	}
	gasFlag = cli.Uint64Flag{
		Name:  "gas",
		Usage: "gas limit (default: unlimited)",
	}
	gasPriceFlag = cli.StringFlag{
		Name:  "gas-price",
		Usage: "gas price, hex or decimal (default: 0)",
	}
	staticFlag = cli.BoolFlag{
		Name:  "static",
		Usage: "execute as a static call",
	}
	commitFlag = cli.BoolFlag{
		Name:  "commit",
		Usage: "persist the state changes of the call",
	}
	traceFlag = cli.BoolFlag{
		Name:  "trace",
		Usage: "write a JSON step trace to stderr",
	}
	verbosityFlag = cli.IntFlag{
		Name:  "verbosity",
		Value: 3,
		Usage: "log verbosity (0-5)",
	}
	enableMetricsFlag = cli.BoolFlag{
		Name:  "enable-metrics",
		Usage: "enables metrics collection",
	}
	metricsAddrFlag = cli.StringFlag{
		Name:  "metrics-addr",
		Value: "localhost:2112",
		Usage: "metrics service listening address",
	}
)
