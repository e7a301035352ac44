package parser

import (
	"math"
	"strings"

	"github.com/FACorreiaa/monexa/internal/domain/expense"
	"github.com/FACorreiaa/monexa/internal/domain/import/normalizer"
)

// SourceKind identifies the origin of an import batch.
type SourceKind string

const (
	SourceGeneric SourceKind = "generic"
	SourceGPay    SourceKind = "gpay"
	SourcePaytm   SourceKind = "paytm"
	SourcePhonePe SourceKind = "phonepe"
	SourceAmazon  SourceKind = "amazon"
	SourceSBI     SourceKind = "sbi"
	SourceHDFC    SourceKind = "hdfc"
	SourceICICI   SourceKind = "icici"
	SourceAxis    SourceKind = "axis"
	SourceChase   SourceKind = "chase"
	SourceBoA     SourceKind = "boa"
	SourceTD      SourceKind = "td"
	SourceRBC     SourceKind = "rbc"
)

// AllSources lists every supported source kind.
var AllSources = []SourceKind{
	SourceGeneric,
	SourceGPay, SourcePaytm, SourcePhonePe,
	SourceAmazon,
	SourceSBI, SourceHDFC, SourceICICI, SourceAxis,
	SourceChase, SourceBoA,
	SourceTD, SourceRBC,
}

// Family groups sources that share export conventions.
type Family string

const (
	FamilyGeneric     Family = "generic"
	FamilyWallet      Family = "wallet"
	FamilyMarketplace Family = "marketplace"
	FamilyBankIN      Family = "bank_in"
	FamilyBankUS      Family = "bank_us"
	FamilyBankCA      Family = "bank_ca"
)

// Family returns the export family of k.
func (k SourceKind) Family() Family {
	switch k {
	case SourceGPay, SourcePaytm, SourcePhonePe:
		return FamilyWallet
	case SourceAmazon:
		return FamilyMarketplace
	case SourceSBI, SourceHDFC, SourceICICI, SourceAxis:
		return FamilyBankIN
	case SourceChase, SourceBoA:
		return FamilyBankUS
	case SourceTD, SourceRBC:
		return FamilyBankCA
	default:
		return FamilyGeneric
	}
}

// ParseSourceKind maps a free-form source identifier to a kind.
// ok is false for identifiers nobody recognises; the kind is then generic.
func ParseSourceKind(source string) (SourceKind, bool) {
	switch strings.ToLower(strings.TrimSpace(source)) {
	case "generic", "csv", "":
		return SourceGeneric, true
	case "gpay", "googlepay", "google pay":
		return SourceGPay, true
	case "paytm":
		return SourcePaytm, true
	case "phonepe", "phone pe":
		return SourcePhonePe, true
	case "amazon", "amazon.in", "amazon.com":
		return SourceAmazon, true
	case "sbi":
		return SourceSBI, true
	case "hdfc":
		return SourceHDFC, true
	case "icici":
		return SourceICICI, true
	case "axis":
		return SourceAxis, true
	case "chase":
		return SourceChase, true
	case "boa", "bofa", "bank of america":
		return SourceBoA, true
	case "td":
		return SourceTD, true
	case "rbc":
		return SourceRBC, true
	default:
		return SourceGeneric, false
	}
}

// ColumnAliases lists, per semantic field, the header names tried in order.
// The first alias with a non-empty value wins.
type ColumnAliases struct {
	Date        []string
	Amount      []string
	Description []string
	Reference   []string
	Category    []string
}

// Categorizer infers a spending category from a description.
type Categorizer interface {
	Classify(text string) string
}

// Adapter maps the rows of one source format onto canonical records.
type Adapter interface {
	Kind() SourceKind
	Parse(rows []Row) []expense.Record
}

type tableAdapter struct {
	kind    SourceKind
	aliases ColumnAliases
	layouts []string

	// debitCredit enables the separate Debit/Credit fallback when no amount column is present.
	debitCredit bool
	// items reads Quantity and Item Total into a line item.
	items bool
	// categorize is set only for the generic adapter; others use the source name.
	categorize Categorizer
}

var (
	debitAliases  = []string{"Debit", "Withdrawal", "Withdrawal Amt.", "Withdrawal Amount", "Dr"}
	creditAliases = []string{"Credit", "Deposit", "Deposit Amt.", "Deposit Amount", "Cr"}
	qtyAliases    = []string{"Quantity", "Qty"}
	itemAliases   = []string{"Item Total", "Item Subtotal"}
)

func (a *tableAdapter) Kind() SourceKind { return a.kind }

// Parse converts every row. Unparseable fields degrade to their defaults.
func (a *tableAdapter) Parse(rows []Row) []expense.Record {
	out := make([]expense.Record, 0, len(rows))
	for _, row := range rows {
		out = append(out, a.parseRow(row))
	}
	return out
}

func (a *tableAdapter) parseRow(row Row) expense.Record {
	lookup := newRowLookup(row)

	rec := expense.Record{
		Note:  cleanDescription(lookup.first(a.aliases.Description)),
		TxnID: lookup.first(a.aliases.Reference),
	}

	if ts, ok := normalizer.ParseDateWithLayouts(lookup.first(a.aliases.Date), a.layouts); ok {
		rec.TxDatetime = &ts
	}

	if raw := lookup.first(a.aliases.Amount); raw != "" {
		rec.TotalAmount = normalizer.AmountOrZero(raw)
	} else if a.debitCredit {
		rec.TotalAmount = debitCredit(lookup.first(debitAliases), lookup.first(creditAliases))
	}

	if a.items {
		qty, total := lookup.first(qtyAliases), lookup.first(itemAliases)
		if qty != "" || total != "" {
			q, ok := normalizer.NormalizeAmount(qty)
			if !ok {
				q = 1
			}
			rec.Items = []expense.Item{{Quantity: q, Amount: normalizer.AmountOrZero(total)}}
		}
	}

	switch {
	case a.categorize == nil:
		rec.ExpType = string(a.kind)
	case lookup.first(a.aliases.Category) != "":
		rec.ExpType = strings.ToLower(lookup.first(a.aliases.Category))
	default:
		rec.ExpType = a.categorize.Classify(rec.Note)
	}
	return rec
}

// debitCredit folds double-entry columns into one signed amount; money out is negative.
func debitCredit(debit, credit string) float64 {
	if v, ok := normalizer.NormalizeAmount(debit); ok && v != 0 {
		return -math.Abs(v)
	}
	if v, ok := normalizer.NormalizeAmount(credit); ok && v != 0 {
		return math.Abs(v)
	}
	return 0
}

// Date layouts per regional convention. Single-digit layout fields accept
// both padded and unpadded values.
var (
	usLayouts = []string{
		"1/2/2006", "1/2/2006 15:04:05", "1/2/2006 15:04", "1/2/06",
		"2/1/2006", "2006-1-2", "1-2-2006", "2-Jan-2006", "Jan 2, 2006",
	}
	inLayouts = []string{
		"2-1-2006", "2/1/2006", "2006-1-2", "2006-01-02T15:04:05", "2-Jan-2006", "2 Jan 2006", "2-Jan-06",
		"2/1/2006 15:04:05", "2/1/2006 15:04", "2-1-2006 15:04:05", "2/1/06",
	}
	caLayouts = []string{
		"2006-01-02T15:04:05", "2006-1-2", "2-1-2006", "2/1/2006", "2-Jan-2006", "2006/1/2",
	}
	genericLayouts = []string{
		"2006-1-2", "2/1/2006", "2-1-2006", "2-Jan-2006", "01-02-06",
	}
)

func newAdapters(categorize Categorizer) map[SourceKind]Adapter {
	inBank := ColumnAliases{
		Date:        []string{"Txn Date", "Transaction Date", "Date", "Value Date", "tx_datetime", "timestamp"},
		Amount:      []string{"Amount", "Amt", "total_amount"},
		Description: []string{"Description", "Narration", "note", "Remarks", "Particulars"},
		Reference:   []string{"RefNo", "Ref No", "Ref", "Chq./Ref.No.", "txn_id", "TransactionRef"},
	}
	usBank := ColumnAliases{
		Date:        []string{"Date", "Transaction Date", "Posting Date", "tx_datetime"},
		Amount:      []string{"Amount", "total_amount", "Value"},
		Description: []string{"Description", "Details", "Narration", "Payee", "note"},
		Reference:   []string{"TransactionID", "TxnID", "OrderID", "RefNo", "Reference Number", "txn_id"},
	}
	caBank := ColumnAliases{
		Date:        []string{"Date", "Txn Date", "Transaction Date", "tx_datetime", "timestamp"},
		Amount:      []string{"Amount", "Amt", "total_amount", "Value"},
		Description: []string{"Details", "Description", "Narration", "note", "Remarks"},
		Reference:   []string{"TxnID", "Txn Id", "OrderID", "RefNo", "Ref", "txn_id", "transaction_id"},
	}

	adapters := map[SourceKind]Adapter{
		SourceGeneric: &tableAdapter{
			kind: SourceGeneric,
			aliases: ColumnAliases{
				Date:        []string{"Date", "date", "Txn Date", "tx_datetime", "timestamp"},
				Amount:      []string{"Amount", "amount", "total_amount"},
				Description: []string{"Description", "Desc", "note", "Details", "Merchant"},
				Reference:   []string{"TxnID", "RefNo", "txn_id"},
				Category:    []string{"exp_type", "Category"},
			},
			layouts:     genericLayouts,
			debitCredit: true,
			categorize:  categorize,
		},
		SourceGPay: &tableAdapter{
			kind: SourceGPay,
			aliases: ColumnAliases{
				Date:        []string{"Date", "tx_datetime"},
				Amount:      []string{"Amount", "total_amount"},
				Description: []string{"Merchant", "Description", "note"},
				Reference:   []string{"TxnID", "Transaction ID", "txn_id"},
			},
			layouts: []string{"2006-01-02T15:04:05", "2 Jan 2006, 15:04", "2 Jan 2006", "2/1/2006", "2-1-2006"},
		},
		SourcePaytm: &tableAdapter{
			kind: SourcePaytm,
			aliases: ColumnAliases{
				Date:        []string{"Date", "tx_datetime"},
				Amount:      []string{"Amount", "total_amount"},
				Description: []string{"Narration", "Description", "note"},
				Reference:   []string{"OrderID", "Order ID", "txn_id"},
			},
			layouts: []string{"2/1/2006", "2/1/2006 15:04:05", "2-1-2006", "2006-1-2"},
		},
		SourcePhonePe: &tableAdapter{
			kind: SourcePhonePe,
			aliases: ColumnAliases{
				Date:        []string{"Date", "Transaction Date", "tx_datetime"},
				Amount:      []string{"Amount", "total_amount"},
				Description: []string{"Transaction Details", "Description", "Merchant", "note"},
				Reference:   []string{"Transaction ID", "UTR No", "txn_id"},
			},
			layouts: []string{"Jan 2, 2006 03:04 PM", "Jan 2, 2006", "2/1/2006", "2-1-2006"},
		},
		SourceAmazon: &tableAdapter{
			kind: SourceAmazon,
			aliases: ColumnAliases{
				Date:        []string{"Order Date", "Date", "tx_datetime"},
				Amount:      []string{"Total Owed", "Total Charged", "Amount", "total_amount", "Item Total"},
				Description: []string{"Product Name", "Title", "Description", "note"},
				Reference:   []string{"Order ID", "OrderID", "txn_id"},
			},
			layouts: []string{"2006-01-02T15:04:05Z", "2/1/2006", "2-Jan-2006", "2006-1-2"},
			items:   true,
		},
		SourceChase: &tableAdapter{kind: SourceChase, aliases: usBank, layouts: usLayouts},
		SourceBoA:   &tableAdapter{kind: SourceBoA, aliases: usBank, layouts: usLayouts},
		SourceTD:    &tableAdapter{kind: SourceTD, aliases: caBank, layouts: caLayouts},
		SourceRBC:   &tableAdapter{kind: SourceRBC, aliases: caBank, layouts: caLayouts},
	}
	for _, k := range []SourceKind{SourceSBI, SourceHDFC, SourceICICI, SourceAxis} {
		adapters[k] = &tableAdapter{kind: k, aliases: inBank, layouts: inLayouts, debitCredit: true}
	}
	return adapters
}

// Registry resolves source identifiers to adapters.
type Registry struct {
	adapters map[SourceKind]Adapter
}

// NewRegistry builds every adapter. categorize backs the generic adapter's
// category inference.
func NewRegistry(categorize Categorizer) *Registry {
	return &Registry{adapters: newAdapters(categorize)}
}

// Lookup returns the adapter for source. Unknown identifiers get the generic adapter.
func (r *Registry) Lookup(source string) Adapter {
	kind, known := ParseSourceKind(source)
	switch {
	case known:
		return r.adapters[kind]
	default:
		return r.adapters[SourceGeneric]
	}
}
