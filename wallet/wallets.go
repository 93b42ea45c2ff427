package wallet

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/utxochain/btcnode/internal/nodeerr"
)

// Wallets is the on-disk key bag: address -> Wallet, persisted as JSON
// ({"wallets": {address: {secret_key:[...], public_key:[...]}}}).
type Wallets struct {
	Bag map[string]*Wallet `json:"wallets"`
}

// LoadWallets opens (or, if absent, initializes empty) the wallet bag at
// path. An empty or missing file is treated as a fresh bag.
func LoadWallets(path string) (*Wallets, error) {
	ws := &Wallets{Bag: make(map[string]*Wallet)}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ws, nil
		}
		return nil, fmt.Errorf("%w: read wallet file: %v", nodeerr.ErrIO, err)
	}
	if len(data) == 0 {
		return ws, nil
	}

	if err := json.Unmarshal(data, ws); err != nil {
		return nil, fmt.Errorf("%w: decode wallet file: %v", nodeerr.ErrSerialization, err)
	}
	if ws.Bag == nil {
		ws.Bag = make(map[string]*Wallet)
	}
	return ws, nil
}

// SaveToFile serializes the bag to path, truncating and rewriting it
// atomically from the caller's perspective (single os.WriteFile call).
func (ws *Wallets) SaveToFile(path string) error {
	data, err := json.MarshalIndent(ws, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode wallet file: %v", nodeerr.ErrSerialization, err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("%w: write wallet file: %v", nodeerr.ErrIO, err)
	}
	return nil
}

// CreateWallet generates a new key pair, adds it to the bag, and returns
// its address. The caller is responsible for persisting via SaveToFile.
func (ws *Wallets) CreateWallet() (string, error) {
	w, err := MakeWallet()
	if err != nil {
		return "", err
	}

	address := w.Address()
	ws.Bag[address] = w
	return address, nil
}

// GetWallet returns the wallet registered under address, or
// nodeerr.ErrUnknownWallet if none is.
func (ws *Wallets) GetWallet(address string) (*Wallet, error) {
	w, ok := ws.Bag[address]
	if !ok {
		return nil, fmt.Errorf("%w: %s", nodeerr.ErrUnknownWallet, address)
	}
	return w, nil
}

// GetAllAddresses lists every address currently held in the bag.
func (ws *Wallets) GetAllAddresses() []string {
	addresses := make([]string, 0, len(ws.Bag))
	for address := range ws.Bag {
		addresses = append(addresses, address)
	}
	return addresses
}
