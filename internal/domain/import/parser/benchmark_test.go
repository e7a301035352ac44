package parser

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"testing"
	"time"

	"github.com/FACorreiaa/monexa/internal/domain/import/sniffer"
)

// generateCSVData creates test CSV data with specified row count
func generateCSVData(rows int, delimiter rune) []byte {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	writer.Comma = delimiter

	_ = writer.Write([]string{"Txn Date", "Narration", "Debit", "Credit", "Ref"})
	base := time.Date(2025, 9, 30, 0, 0, 0, 0, time.UTC)
	for i := 0; i < rows; i++ {
		date := base.AddDate(0, 0, -(i % 365)).Format("02/01/2006")
		desc := fmt.Sprintf("UPI-MERCHANT %d", i%100)
		debit, credit := fmt.Sprintf("%.2f", float64(i%10000)/100.0), ""
		if i%7 == 0 {
			debit, credit = "", "1,250.00"
		}
		_ = writer.Write([]string{date, desc, debit, credit, fmt.Sprintf("R%d", i)})
	}

	writer.Flush()
	return buf.Bytes()
}

func BenchmarkReadCSV(b *testing.B) {
	for _, size := range []int{100, 1000, 10000} {
		for _, delim := range []rune{',', ';'} {
			data := generateCSVData(size, delim)
			cfg, err := sniffer.DetectConfig(data)
			if err != nil {
				b.Fatal(err)
			}

			b.Run(fmt.Sprintf("%q_%d_rows", delim, size), func(b *testing.B) {
				b.SetBytes(int64(len(data)))
				b.ReportAllocs()
				for i := 0; i < b.N; i++ {
					if _, err := ReadCSV(data, cfg); err != nil {
						b.Fatal(err)
					}
				}
			})
		}
	}
}

func BenchmarkAdapterParse(b *testing.B) {
	rows, err := ReadCSV(generateCSVData(10000, ','), nil)
	if err != nil {
		b.Fatal(err)
	}
	reg := newTestRegistry()

	for _, source := range []string{"hdfc", "generic"} {
		adapter := reg.Lookup(source)
		b.Run(source, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_ = adapter.Parse(rows)
			}
		})
	}
}
