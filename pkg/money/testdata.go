package money

import (
	"time"

	"github.com/brianvoe/gofakeit/v6"
)

// TestDataGenerator generates realistic spending fixtures using gofakeit.
type TestDataGenerator struct {
	faker *gofakeit.Faker
}

// NewTestDataGeneratorWithSeed creates a generator with a specific seed for reproducibility.
func NewTestDataGeneratorWithSeed(seed int64) *TestDataGenerator {
	return &TestDataGenerator{faker: gofakeit.New(seed)}
}

var merchants = []string{
	"Starbucks", "Blue Tokai", "Chai Point", "Swiggy", "Zomato",
	"Uber", "Ola", "Amazon", "Flipkart", "BigBasket",
	"Netflix", "Spotify", "Reliance Fresh", "DMart", "Indian Oil",
	"Tim Hortons", "Walmart", "Costco", "Whole Foods", "Shell",
}

var expenseCategories = []string{
	"coffee", "tea", "groceries", "transport", "food delivery",
	"shopping", "entertainment", "utilities", "fuel", "misc",
}

// Merchant returns a random merchant name.
func (g *TestDataGenerator) Merchant() string {
	return merchants[g.faker.Number(0, len(merchants)-1)]
}

// Category returns a random expense category.
func (g *TestDataGenerator) Category() string {
	return expenseCategories[g.faker.Number(0, len(expenseCategories)-1)]
}

// Reference returns a random transaction reference.
func (g *TestDataGenerator) Reference() string {
	return g.faker.Regex(`[A-Z]{3}[0-9]{9}`)
}

// RandomAmountRange generates a random amount within a range, rounded to the currency's minor unit.
func (g *TestDataGenerator) RandomAmountRange(currency string, min, max float64) *Money {
	return NewFromFloat(g.faker.Float64Range(min, max), currency)
}

// SmallPurchase generates a typical small purchase amount (1-50).
func (g *TestDataGenerator) SmallPurchase(currency string) *Money {
	return g.RandomAmountRange(currency, 1, 50)
}

// DateInMonth returns a random timestamp inside the given calendar month.
func (g *TestDataGenerator) DateInMonth(year int, month time.Month) time.Time {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0).Add(-time.Second)
	return g.faker.DateRange(start, end).Truncate(time.Second)
}
