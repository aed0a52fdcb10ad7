// Copyright (c) 2026 The ember developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// ember runs one-shot EVM simulations against an in-memory or forked state.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/log"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/embervm/ember/evm"
	"github.com/embervm/ember/metrics"
	"github.com/embervm/ember/runtime"
)

var (
	version   string
	gitCommit string

	flags = []cli.Flag{
		forkURLFlag,
		forkBlockFlag,
		specFlag,
		callerFlag,
		toFlag,
		codeFlag,
		dataFlag,
		valueFlag,
		gasFlag,
		gasPriceFlag,
		staticFlag,
		commitFlag,
		traceFlag,
		verbosityFlag,
		enableMetricsFlag,
		metricsAddrFlag,
	}
)

func fullVersion() string {
	if gitCommit == "" {
		return version
	}
	return fmt.Sprintf("%s-%s", version, gitCommit)
}

func initLogger(verbosity int) {
	useColor := isatty.IsTerminal(os.Stderr.Fd())
	handler := log.NewTerminalHandlerWithLevel(os.Stderr, log.FromLegacyLevel(verbosity), useColor)
	log.SetDefault(log.NewLogger(handler))
}

// outcome is the printable projection of an execution output.
type outcome struct {
	Status          string        `json:"status"`
	Reason          string        `json:"reason"`
	Data            hexutil.Bytes `json:"data"`
	ContractAddress string        `json:"contractAddress,omitempty"`
	GasUsed         uint64        `json:"gasUsed"`
	GasRefunded     uint64        `json:"gasRefunded"`
	Logs            int           `json:"logs"`
}

func printOutcome(out *runtime.Output) error {
	o := outcome{
		Status:      out.Status.String(),
		Reason:      out.Reason,
		Data:        out.Data,
		GasUsed:     out.GasUsed,
		GasRefunded: out.GasRefunded,
		Logs:        len(out.Logs),
	}
	if out.ContractAddress != nil {
		o.ContractAddress = out.ContractAddress.Hex()
	}
	enc, err := json.MarshalIndent(&o, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(enc))
	return nil
}

func run(ctx *cli.Context) error {
	initLogger(ctx.Int(verbosityFlag.Name))

	if ctx.Bool(enableMetricsFlag.Name) {
		metrics.InitializePrometheusMetrics()
		go func() {
			addr := ctx.String(metricsAddrFlag.Name)
			log.Info("metrics server started", "addr", addr)
			if err := http.ListenAndServe(addr, metrics.HTTPHandler()); err != nil {
				log.Warn("metrics server stopped", "err", err)
			}
		}()
	}

	opts := evm.Options{
		ForkURL: ctx.String(forkURLFlag.Name),
		SpecID:  ctx.String(specFlag.Name),
		Tracing: ctx.Bool(traceFlag.Name),
	}
	if ctx.IsSet(forkBlockFlag.Name) {
		n := ctx.Uint64(forkBlockFlag.Name)
		opts.ForkBlockNumber = &n
	}

	e, err := evm.New(context.Background(), opts)
	if err != nil {
		return err
	}
	defer e.Close()

	to := ctx.String(toFlag.Name)
	code := ctx.String(codeFlag.Name)
	switch {
	case code != "" && to != "":
		return errors.New("--code and --to are mutually exclusive")
	case code != "":
		addr, out, err := e.Deploy(evm.DeployParams{
			Deployer: ctx.String(callerFlag.Name),
			Code:     code,
			Value:    ctx.String(valueFlag.Name),
			Gas:      ctx.Uint64(gasFlag.Name),
			GasPrice: ctx.String(gasPriceFlag.Name),
		})
		if err != nil {
			if out != nil {
				_ = printOutcome(out)
			}
			return err
		}
		log.Info("contract deployed", "address", addr)
		return printOutcome(out)
	case to != "":
		params := evm.CallParams{
			Caller:   ctx.String(callerFlag.Name),
			To:       to,
			Data:     ctx.String(dataFlag.Name),
			Value:    ctx.String(valueFlag.Name),
			Gas:      ctx.Uint64(gasFlag.Name),
			GasPrice: ctx.String(gasPriceFlag.Name),
			Static:   ctx.Bool(staticFlag.Name),
		}
		var out *runtime.Output
		if ctx.Bool(commitFlag.Name) {
			out, err = e.MessageCallCommitting(params)
		} else {
			out, err = e.MessageCall(params)
		}
		if err != nil {
			return err
		}
		return printOutcome(out)
	}
	return errors.New("nothing to do: pass --to or --code")
}

func main() {
	app := cli.NewApp()
	app.Version = fullVersion()
	app.Name = "ember"
	app.Usage = "one-shot EVM execution sandbox"
	app.Copyright = "(c) 2026 The ember developers"
	app.Flags = flags
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
