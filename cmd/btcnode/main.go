// Command btcnode is the process entry point: it loads configuration, wires
// up a graceful-shutdown guard, and dispatches to the command-line front
// end.
package main

import (
	"fmt"
	"os"
	"syscall"

	"github.com/vrecan/death/v3"

	"github.com/utxochain/btcnode/cli"
	"github.com/utxochain/btcnode/internal/config"
)

func main() {
	cfg := config.Load()
	cmd := cli.New(cfg.DataDir, cfg.WalletFile)

	done := make(chan error, 1)
	go func() {
		done <- cmd.Run(os.Args[1:])
	}()

	d := death.NewDeath(syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	go d.WaitForDeathWithFunc(func() {
		fmt.Fprintln(os.Stderr, "btcnode: shutdown requested, closing chain store")
		if err := cmd.CloseActiveStore(); err != nil {
			fmt.Fprintln(os.Stderr, "btcnode: error closing chain store:", err)
		}
		os.Exit(1)
	})

	if err := <-done; err != nil {
		fmt.Fprintln(os.Stderr, "btcnode:", err)
		os.Exit(1)
	}
}
