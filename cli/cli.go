// Package cli is the thin external front-end over the chain and wallet
// packages: argument parsing, human-readable printing, and dispatch. All
// the hard engineering lives one layer down.
package cli

import (
	"flag"
	"fmt"
	"sync"

	"github.com/utxochain/btcnode/chain"
	"github.com/utxochain/btcnode/internal/nodeerr"
	"github.com/utxochain/btcnode/wallet"
)

// CommandLine dispatches the node's command surface against a chain data
// directory and a wallet file.
type CommandLine struct {
	DataDir    string
	WalletFile string

	mu    sync.Mutex
	store *chain.Store
}

// New builds a CommandLine bound to the given data directory and wallet
// file paths.
func New(dataDir, walletFile string) *CommandLine {
	return &CommandLine{DataDir: dataDir, WalletFile: walletFile}
}

// setActiveStore records store as the currently open chain store, so a
// concurrent shutdown signal can find and close it.
func (cli *CommandLine) setActiveStore(store *chain.Store) {
	cli.mu.Lock()
	cli.store = store
	cli.mu.Unlock()
}

// releaseStore closes store and clears it as the active store, if it is
// still the one recorded.
func (cli *CommandLine) releaseStore(store *chain.Store) error {
	cli.mu.Lock()
	if cli.store == store {
		cli.store = nil
	}
	cli.mu.Unlock()
	return store.Close()
}

// CloseActiveStore closes whichever chain store is currently open, if any.
// It is safe to call concurrently with a running command, so a shutdown
// signal handler can use it to avoid leaving a stale Badger lock file
// behind when a command is interrupted mid-run.
func (cli *CommandLine) CloseActiveStore() error {
	cli.mu.Lock()
	store := cli.store
	cli.store = nil
	cli.mu.Unlock()

	if store == nil {
		return nil
	}
	return store.Close()
}

func (cli *CommandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  createblockchain --address ADDRESS   create the chain, mine genesis paying ADDRESS")
	fmt.Println("  createwallet                         generate a keypair and print its address")
	fmt.Println("  getbalance --address ADDRESS          sum unspent outputs locked to ADDRESS")
	fmt.Println("  send --from FROM --to TO --amount N   build, sign, and mine a transfer")
	fmt.Println("  reindex                               rebuild the UTXO index from the chain")
	fmt.Println("  printchain                            print every block from tip to genesis")
	fmt.Println("  listaddresses                         list every address in the wallet file")
}

// Run parses args (excluding the program name) and dispatches to the named
// command. Any returned error should make the caller exit non-zero.
func (cli *CommandLine) Run(args []string) error {
	if len(args) < 1 {
		cli.printUsage()
		return fmt.Errorf("no command given")
	}

	switch args[0] {
	case "createblockchain":
		fs := flag.NewFlagSet("createblockchain", flag.ContinueOnError)
		address := fs.String("address", "", "address to receive the genesis subsidy")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		if *address == "" {
			fs.Usage()
			return fmt.Errorf("--address is required")
		}
		return cli.createBlockchain(*address)

	case "createwallet":
		return cli.createWallet()

	case "listaddresses":
		return cli.listAddresses()

	case "getbalance":
		fs := flag.NewFlagSet("getbalance", flag.ContinueOnError)
		address := fs.String("address", "", "address to sum unspent outputs for")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		if *address == "" {
			fs.Usage()
			return fmt.Errorf("--address is required")
		}
		return cli.getBalance(*address)

	case "send":
		fs := flag.NewFlagSet("send", flag.ContinueOnError)
		from := fs.String("from", "", "sender address")
		to := fs.String("to", "", "recipient address")
		amount := fs.Int64("amount", 0, "amount to transfer")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		if *from == "" || *to == "" || *amount <= 0 {
			fs.Usage()
			return fmt.Errorf("--from, --to and a positive --amount are required")
		}
		return cli.send(*from, *to, *amount)

	case "reindex":
		return cli.reindex()

	case "printchain":
		return cli.printChain()

	default:
		cli.printUsage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func (cli *CommandLine) createBlockchain(address string) error {
	if !wallet.ValidateAddress(address) {
		return fmt.Errorf("%w: %s", nodeerr.ErrDecode, address)
	}

	store, err := chain.CreateStore(cli.DataDir, address)
	if err != nil {
		return err
	}
	cli.setActiveStore(store)
	defer cli.releaseStore(store)

	bc := chain.NewBlockChain(store)
	utxoSet := &chain.UTXOSet{Chain: bc}
	if err := utxoSet.Reindex(); err != nil {
		return err
	}

	fmt.Println("blockchain created")
	return nil
}

func (cli *CommandLine) createWallet() error {
	wallets, err := wallet.LoadWallets(cli.WalletFile)
	if err != nil {
		return err
	}

	address, err := wallets.CreateWallet()
	if err != nil {
		return err
	}
	if err := wallets.SaveToFile(cli.WalletFile); err != nil {
		return err
	}

	fmt.Printf("new address: %s\n", address)
	return nil
}

func (cli *CommandLine) listAddresses() error {
	wallets, err := wallet.LoadWallets(cli.WalletFile)
	if err != nil {
		return err
	}
	for _, address := range wallets.GetAllAddresses() {
		fmt.Println(address)
	}
	return nil
}

func (cli *CommandLine) getBalance(address string) error {
	if !wallet.ValidateAddress(address) {
		return fmt.Errorf("%w: %s", nodeerr.ErrDecode, address)
	}

	store, err := chain.OpenStore(cli.DataDir)
	if err != nil {
		return err
	}
	cli.setActiveStore(store)
	defer cli.releaseStore(store)

	bc := chain.NewBlockChain(store)
	utxoSet := &chain.UTXOSet{Chain: bc}

	pubKeyHash, err := wallet.PubKeyHashFromAddress(address)
	if err != nil {
		return err
	}

	outs, err := utxoSet.FindUTXO(pubKeyHash)
	if err != nil {
		return err
	}

	var balance int64
	for _, out := range outs {
		balance += out.Value
	}
	fmt.Printf("balance of %s: %d\n", address, balance)
	return nil
}

func (cli *CommandLine) send(from, to string, amount int64) error {
	if !wallet.ValidateAddress(from) {
		return fmt.Errorf("%w: %s", nodeerr.ErrDecode, from)
	}
	if !wallet.ValidateAddress(to) {
		return fmt.Errorf("%w: %s", nodeerr.ErrDecode, to)
	}

	store, err := chain.OpenStore(cli.DataDir)
	if err != nil {
		return err
	}
	cli.setActiveStore(store)
	defer cli.releaseStore(store)

	bc := chain.NewBlockChain(store)
	utxoSet := &chain.UTXOSet{Chain: bc}

	wallets, err := wallet.LoadWallets(cli.WalletFile)
	if err != nil {
		return err
	}

	tx, err := chain.NewUTXOTransaction(from, to, amount, wallets, utxoSet)
	if err != nil {
		return err
	}

	block, err := bc.MineBlock([]*chain.Transaction{tx})
	if err != nil {
		return err
	}
	if err := utxoSet.Update(block); err != nil {
		return err
	}

	fmt.Println("sent")
	return nil
}

func (cli *CommandLine) reindex() error {
	store, err := chain.OpenStore(cli.DataDir)
	if err != nil {
		return err
	}
	cli.setActiveStore(store)
	defer cli.releaseStore(store)

	bc := chain.NewBlockChain(store)
	utxoSet := &chain.UTXOSet{Chain: bc}
	if err := utxoSet.Reindex(); err != nil {
		return err
	}

	count, err := utxoSet.CountTransactions()
	if err != nil {
		return err
	}
	fmt.Printf("done: %d transactions in the UTXO set\n", count)
	return nil
}

func (cli *CommandLine) printChain() error {
	store, err := chain.OpenStore(cli.DataDir)
	if err != nil {
		return err
	}
	cli.setActiveStore(store)
	defer cli.releaseStore(store)

	it, err := store.IterateFromTip()
	if err != nil {
		return err
	}

	for {
		block, ok, err := it.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}

		valid, err := chain.NewProofOfWork(block).Validate()
		if err != nil {
			return err
		}

		fmt.Printf("Prev. hash: %s\n", block.PrevBlockHash)
		fmt.Printf("Hash: %s\n", block.Hash)
		fmt.Printf("PoW: %v\n", valid)
		for _, tx := range block.Transactions {
			fmt.Printf("Transaction: %s\n", tx.ID)
		}
		fmt.Println()
	}
	return nil
}
