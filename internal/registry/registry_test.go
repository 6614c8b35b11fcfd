package registry

import "testing"

func TestLookupCurrencyIsCaseInsensitive(t *testing.T) {
	for _, input := range []string{"USDC", "usdc", " Usdc "} {
		c, ok := LookupCurrency(input)
		if !ok {
			t.Fatalf("expected %q to resolve", input)
		}
		if c.Symbol != "USDC" || c.Decimals != 6 {
			t.Fatalf("unexpected currency: %+v", c)
		}
	}
}

func TestUSDCHasFullFundingRoute(t *testing.T) {
	c, _ := LookupCurrency("USDC")
	if !c.Bridgeable {
		t.Fatal("expected USDC to be bridgeable")
	}
	if c.PoolRef == "" || c.RouteRef == "" || c.VolatileSymbol == "" {
		t.Fatalf("expected complete route config, got %+v", c)
	}
}

func TestEURCHasNoRoute(t *testing.T) {
	c, ok := LookupCurrency("EURC")
	if !ok {
		t.Fatal("expected EURC to resolve")
	}
	if c.Bridgeable {
		t.Fatal("expected EURC to have no bridge route")
	}
}

func TestUnknownCurrency(t *testing.T) {
	if _, ok := LookupCurrency("DOGE"); ok {
		t.Fatal("expected DOGE to be unsupported")
	}
}

func TestChainsAreDistinct(t *testing.T) {
	if Settlement.CAIP2 == Liquidity.CAIP2 {
		t.Fatal("settlement and liquidity chains must differ")
	}
}
