package expense

import (
	"time"

	"github.com/FACorreiaa/monexa/pkg/money"
)

// Generator builds randomized records for tests and local seeding.
type Generator struct {
	gen      *money.TestDataGenerator
	currency string
	nextID   int64
}

// NewGenerator creates a deterministic generator for the given seed.
func NewGenerator(seed int64, currency string) *Generator {
	return &Generator{gen: money.NewTestDataGeneratorWithSeed(seed), currency: currency}
}

// Record returns a random small purchase dated inside the given month.
func (g *Generator) Record(year int, month time.Month) Record {
	ts := g.gen.DateInMonth(year, month).Format(DatetimeLayout)
	return Record{
		TxDatetime:  &ts,
		ExpType:     g.gen.Category(),
		TotalAmount: -g.gen.SmallPurchase(g.currency).ToFloat64(),
		Note:        g.gen.Merchant(),
		TxnID:       g.gen.Reference(),
	}
}

// Stored returns n stored records with increasing ids.
func (g *Generator) Stored(n int, source string, year int, month time.Month) []Stored {
	out := make([]Stored, 0, n)
	for i := 0; i < n; i++ {
		g.nextID++
		out = append(out, Stored{Record: g.Record(year, month), ID: g.nextID, Source: source})
	}
	return out
}
