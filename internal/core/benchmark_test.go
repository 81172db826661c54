package core

import (
	"fmt"
	"strings"
	"testing"

	"github.com/JonMunkholm/crmsync/internal/csvcodec"
)

// ============================================================================
// Conversion Function Benchmarks
// ============================================================================

// BenchmarkParseNumeric covers the formats seen in revenue columns.
func BenchmarkParseNumeric(b *testing.B) {
	testCases := []string{
		"123",
		"-456.78",
		"$1,234.56",
		"(123.45)",      // Accounting negative
		"1,234,567.89",  // Thousands separators
		"  999.99  ",    // Whitespace
		"\u20ac1234.56", // Euro
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, tc := range testCases {
			ParseNumeric(tc)
		}
	}
}

func BenchmarkParseInteger(b *testing.B) {
	for i := 0; i < b.N; i++ {
		ParseInteger("1,200")
	}
}

func BenchmarkCleanCell(b *testing.B) {
	testCases := []string{
		"simple",
		"  padded  ",
		`="00123"`,
		`"quoted"`,
		`Says "hi"`,
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, tc := range testCases {
			CleanCell(tc)
		}
	}
}

func BenchmarkNormalizeEmail(b *testing.B) {
	for i := 0; i < b.N; i++ {
		NormalizeEmail("  Jane.Doe@Example.COM ")
	}
}

// ============================================================================
// Header Mapping Benchmarks
// ============================================================================

func BenchmarkValidateHeaders(b *testing.B) {
	def := MustGet(KindContact)
	headers := []string{"First Name", "Last Name", "Email Address", "Job Title", "Mobile Phone", "Account ID", "Notes"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := ValidateHeaders(headers, def.FieldSpecs); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkBuildEntity(b *testing.B) {
	v := Values{
		"first_name":  "Jane",
		"last_name":   "Doe",
		"email":       "jane@example.com",
		"lead_score":  "75",
		"lead_status": "new",
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := BuildEntity(KindLead, v); err != nil {
			b.Fatal(err)
		}
	}
}

// ============================================================================
// CSV Benchmarks
// ============================================================================

func BenchmarkDecodeAndMap(b *testing.B) {
	text := generateLeadCSV(1000)
	def := MustGet(KindLead)

	b.SetBytes(int64(len(text)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		header, rows, err := csvcodec.Decode(text)
		if err != nil {
			b.Fatal(err)
		}
		idx, err := ValidateHeaders(header, def.FieldSpecs)
		if err != nil {
			b.Fatal(err)
		}
		for _, row := range rows {
			RowValues(row.Fields, idx)
		}
	}
}

func BenchmarkCleanCellParallel(b *testing.B) {
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			CleanCell(`  ="00123"  `)
		}
	})
}

func generateLeadCSV(rows int) string {
	var sb strings.Builder
	sb.WriteString("First Name,Last Name,Email,Company,Lead Score,Notes\n")
	for i := 0; i < rows; i++ {
		fmt.Fprintf(&sb, "First%d,Last%d,lead%d@example.com,\"Company %d, Inc\",%d,\"Line one\nline two\"\n",
			i, i, i, i, i%100)
	}
	return sb.String()
}
