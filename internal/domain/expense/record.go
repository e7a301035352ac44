// Package expense holds the canonical transaction record shared by every
// import adapter, the dedup engine and the reporting layer, plus the
// Postgres store that persists it.
package expense

// DefaultExpType is used when a source gives no category and none can be inferred.
const DefaultExpType = "misc"

// DatetimeLayout is the canonical timestamp layout of Record.TxDatetime.
const DatetimeLayout = "2006-01-02 15:04:05"

// Item is an optional line item attached to a record.
type Item struct {
	Quantity float64 `json:"quantity"`
	Amount   float64 `json:"amount"`
}

// Record is the normalized transaction shape every source adapter emits.
// Downstream consumers never see source-specific column names.
type Record struct {
	// TxDatetime is nil when the source date could not be parsed.
	TxDatetime  *string `json:"tx_datetime"`
	ExpType     string  `json:"exp_type"`
	TotalAmount float64 `json:"total_amount"`
	Note        string  `json:"note"`
	TxnID       string  `json:"txn_id"`
	Items       []Item  `json:"items,omitempty"`
}

// Stored is a record as read back from the store.
type Stored struct {
	Record
	ID     int64  `json:"id"`
	Source string `json:"source"`
}

// Datetime returns the timestamp or an empty string when absent.
func (r Record) Datetime() string {
	if r.TxDatetime == nil {
		return ""
	}
	return *r.TxDatetime
}

// WithDefaults fills the documented defaults for fields a caller left empty.
func (r Record) WithDefaults() Record {
	if r.ExpType == "" {
		r.ExpType = DefaultExpType
	}
	return r
}

// StringPtr is a small helper for optional string fields.
func StringPtr(s string) *string {
	return &s
}
