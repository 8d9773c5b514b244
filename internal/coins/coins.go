// Package coins holds the fixed catalog of coins coinwatch can track.
package coins

import "strings"

// Coin is a single catalog entry. ID is the CoinGecko coin id.
type Coin struct {
	ID     string `json:"id"`
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
	Icon   string `json:"icon"`
}

// Label renders the coin as "Name (SYM)".
func (c Coin) Label() string {
	return c.Name + " (" + strings.ToUpper(c.Symbol) + ")"
}

var catalog = []Coin{
	{ID: "bitcoin", Symbol: "btc", Name: "Bitcoin", Icon: "https://coin-images.coingecko.com/coins/images/1/large/bitcoin.png"},
	{ID: "ethereum", Symbol: "eth", Name: "Ethereum", Icon: "https://assets.coingecko.com/coins/images/279/large/ethereum.png"},
	{ID: "tether", Symbol: "usdt", Name: "Tether", Icon: "https://assets.coingecko.com/coins/images/325/large/Tether.png"},
	{ID: "binancecoin", Symbol: "bnb", Name: "BNB", Icon: "https://assets.coingecko.com/coins/images/825/large/bnb-icon2_2x.png"},
	{ID: "solana", Symbol: "sol", Name: "Solana", Icon: "https://assets.coingecko.com/coins/images/4128/large/solana.png"},
	{ID: "usd-coin", Symbol: "usdc", Name: "USD Coin", Icon: "https://assets.coingecko.com/coins/images/6319/large/usdc.png"},
	{ID: "ripple", Symbol: "xrp", Name: "XRP", Icon: "https://assets.coingecko.com/coins/images/44/large/xrp-symbol-white-128.png"},
	{ID: "dogecoin", Symbol: "doge", Name: "Dogecoin", Icon: "https://assets.coingecko.com/coins/images/5/large/dogecoin.png"},
	{ID: "cardano", Symbol: "ada", Name: "Cardano", Icon: "https://assets.coingecko.com/coins/images/975/large/cardano.png"},
	{ID: "tron", Symbol: "trx", Name: "TRON", Icon: "https://assets.coingecko.com/coins/images/1094/large/tron-logo.png"},
}

var byID = func() map[string]Coin {
	m := make(map[string]Coin, len(catalog))
	for _, c := range catalog {
		m[c.ID] = c
	}
	return m
}()

// All returns a copy of the catalog in display order.
func All() []Coin {
	out := make([]Coin, len(catalog))
	copy(out, catalog)
	return out
}

// IDs returns the catalog ids in display order.
func IDs() []string {
	out := make([]string, 0, len(catalog))
	for _, c := range catalog {
		out = append(out, c.ID)
	}
	return out
}

// Lookup finds a coin by id.
func Lookup(id string) (Coin, bool) {
	c, ok := byID[id]
	return c, ok
}

// Known reports whether id is in the catalog.
func Known(id string) bool {
	_, ok := byID[id]
	return ok
}

// Label returns the display label for id, falling back to the raw id for
// coins outside the catalog.
func Label(id string) string {
	if c, ok := byID[id]; ok {
		return c.Label()
	}
	return id
}
