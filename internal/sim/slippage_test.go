package sim

import (
	"math"
	"testing"
	"time"

	"github.com/kirillm/kalshi-bot/internal/domain"
)

func TestQuote(t *testing.T) {
	snapshot := domain.MarketSnapshot{
		Timestamp:  time.Now(),
		Ticker:     "KXHIGHLAX-26AUG29-B85",
		YesBid:     48,
		YesAsk:     50,
		NoBid:      50,
		NoAsk:      52,
		YesBidSize: 100,
		YesAskSize: 200,
		NoBidSize:  300,
		NoAskSize:  400,
	}

	tests := []struct {
		name      string
		side      string
		action    string
		wantPrice float64
		wantSize  int
	}{
		{"buy yes hits ask", domain.SideYes, domain.ActionBuy, 50, 200},
		{"sell yes hits bid", domain.SideYes, domain.ActionSell, 48, 100},
		{"buy no hits ask", domain.SideNo, domain.ActionBuy, 52, 400},
		{"sell no hits bid", domain.SideNo, domain.ActionSell, 50, 300},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			price, size := Quote(snapshot, tt.side, tt.action)
			if price != tt.wantPrice || size != tt.wantSize {
				t.Errorf("Quote() = (%v, %v), want (%v, %v)", price, size, tt.wantPrice, tt.wantSize)
			}
		})
	}
}

func TestSlippageModel_FillPrice(t *testing.T) {
	model := DefaultSlippageModel()

	tests := []struct {
		name      string
		quote     float64
		quoteSize int
		contracts int
		action    string
		wantPrice float64
		wantBps   float64
	}{
		{
			name:      "small buy barely moves price",
			quote:     50,
			quoteSize: 500,
			contracts: 10,
			action:    domain.ActionBuy,
			wantPrice: 50.125, // 5 + 10/500*0.1*10000 = 25 bps up
			wantBps:   25,
		},
		{
			name:      "small sell moves price down",
			quote:     50,
			quoteSize: 500,
			contracts: 10,
			action:    domain.ActionSell,
			wantPrice: 49.875,
			wantBps:   25,
		},
		{
			name:      "thin book floors at 100 for impact",
			quote:     50,
			quoteSize: 50,
			contracts: 50,
			action:    domain.ActionBuy,
			wantPrice: 50 * 1.0505, // 5 + 50/100*0.1*10000 = 505 bps
			wantBps:   505,
		},
		{
			name:      "empty book uses half impact",
			quote:     50,
			quoteSize: 0,
			contracts: 10,
			action:    domain.ActionBuy,
			wantPrice: 50 * 1.0505,
			wantBps:   505,
		},
		{
			name:      "price clamped below 99 cents",
			quote:     98,
			quoteSize: 100,
			contracts: 200,
			action:    domain.ActionBuy,
			wantPrice: 99,
			wantBps:   5 + 2.0*0.1*10000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			price, bps := model.FillPrice(tt.quote, tt.quoteSize, tt.contracts, tt.action)
			if math.Abs(price-tt.wantPrice) > 1e-9 {
				t.Errorf("FillPrice() price = %v, want %v", price, tt.wantPrice)
			}
			if math.Abs(bps-tt.wantBps) > 1e-9 {
				t.Errorf("FillPrice() bps = %v, want %v", bps, tt.wantBps)
			}
		})
	}
}

func TestSlippageModel_BuyerAlwaysWorseOff(t *testing.T) {
	model := DefaultSlippageModel()
	for contracts := 1; contracts <= 1000; contracts *= 3 {
		buyPrice, _ := model.FillPrice(50, 500, contracts, domain.ActionBuy)
		sellPrice, _ := model.FillPrice(50, 500, contracts, domain.ActionSell)
		if buyPrice < 50 {
			t.Errorf("buy price %v below quote for %d contracts", buyPrice, contracts)
		}
		if sellPrice > 50 {
			t.Errorf("sell price %v above quote for %d contracts", sellPrice, contracts)
		}
	}
}
