package registry

import "strings"

// Chain identifies one of the two networks the treasury operates across.
type Chain struct {
	Name       string
	Slug       string
	CAIP2      string
	EVMChainID int64
}

var (
	// Settlement is the network on which recipient payouts land.
	Settlement = Chain{Name: "Base", Slug: "base", CAIP2: "eip155:8453", EVMChainID: 8453}
	// Liquidity is the secondary network holding swappable/bridgeable assets.
	Liquidity = Chain{Name: "Arbitrum", Slug: "arbitrum", CAIP2: "eip155:42161", EVMChainID: 42161}
)

// Currency describes an invoice currency and, when one exists, its funding
// route from the liquidity chain.
type Currency struct {
	Symbol   string
	Decimals int

	// Bridgeable is true when a liquidity-chain route can cover a
	// settlement-chain shortfall of this currency.
	Bridgeable bool

	// PoolRef is the exact-output pool quoting VolatileSymbol into Symbol on
	// the liquidity chain.
	PoolRef string
	// RouteRef is the bridge route moving Symbol from the liquidity chain to
	// the settlement chain.
	RouteRef string

	VolatileSymbol   string
	VolatileDecimals int
}

var currencies = map[string]Currency{
	"USDC": {
		Symbol:           "USDC",
		Decimals:         6,
		Bridgeable:       true,
		PoolRef:          "arbitrum:weth-usdc-030",
		RouteRef:         "arbitrum-base:usdc",
		VolatileSymbol:   "WETH",
		VolatileDecimals: 18,
	},
	// EURC is held on the settlement chain only; shortfalls cannot be covered
	// from the liquidity chain.
	"EURC": {
		Symbol:     "EURC",
		Decimals:   6,
		Bridgeable: false,
	},
}

// LookupCurrency resolves an invoice currency symbol, case-insensitively.
func LookupCurrency(symbol string) (Currency, bool) {
	c, ok := currencies[strings.ToUpper(strings.TrimSpace(symbol))]
	return c, ok
}

// SupportedCurrencies lists the symbols invoices may be denominated in.
func SupportedCurrencies() []string {
	return []string{"EURC", "USDC"}
}
