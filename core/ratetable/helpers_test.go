package ratetable

import (
	"bytes"
	"testing"

	"github.com/let-me-illustrate/lmi-sub002/internal/logging"
)

const minimalText = `Table number: 1
Table type: Aggregate
Minimum age: 0
Maximum age: 1
Number of decimal places: 5
Table values:
  0  0.12345
  1  0.23456
`

// minimalHash is the legacy checksum of the minimal table.
const minimalHash = 2956225307

func aggregateSpec() Spec {
	return Spec{
		Name:        "Sample aggregate",
		Number:      101,
		Type:        Aggregate,
		Contributor: "Society of Actuaries",
		Comments:    "Line one\nLine two",
		MinAge:      20,
		MaxAge:      24,
		NumDecimals: 4,
		Values:      []float64{0.0012, 0.0013, 0.0015, 0.0018, 0.0021},
	}
}

func durationSpec() Spec {
	return Spec{
		Name:        "Sample duration",
		Number:      202,
		Type:        Duration,
		MinAge:      1,
		MaxAge:      4,
		NumDecimals: 2,
		Values:      []float64{0.5, 0.25, 0.12, 0.06},
	}
}

// selectSpec has a select period of 2 and a maximum select age of 3, so its
// rows are for ages 1, 2, 3, 6, 7 and 8.
func selectSpec() Spec {
	return Spec{
		Name:         "Sample select",
		Number:       303,
		Type:         Select,
		DataSource:   "Test data",
		MinAge:       1,
		MaxAge:       8,
		SelectPeriod: 2,
		MaxSelectAge: 3,
		NumDecimals:  3,
		Values: []float64{
			0.101, 0.102, 0.103,
			0.111, 0.112, 0.113,
			0.121, 0.122, 0.123,
			0.2, 0.21, 0.225,
		},
	}
}

func mustTable(t *testing.T, s Spec) *Table {
	t.Helper()
	table, err := NewTable(s)
	if err != nil {
		t.Fatalf("NewTable(%d) failed: %v", s.Number, err)
	}
	return table
}

func sampleTables(t *testing.T) []*Table {
	t.Helper()
	return []*Table{
		mustTable(t, aggregateSpec()),
		mustTable(t, durationSpec()),
		mustTable(t, selectSpec()),
	}
}

// captureLog returns what the logger writes while fn runs.
func captureLog(t *testing.T, fn func()) string {
	t.Helper()
	var buf bytes.Buffer
	prev := logging.SetOutput(&buf)
	defer logging.SetOutput(prev)
	fn()
	return buf.String()
}

// largeSelectSpec has 101 select rows of 100 values each: more values than
// fit in the 16-bit length of a binary record.
func largeSelectSpec() Spec {
	values := make([]float64, 101*100)
	for i := range values {
		values[i] = float64(i%1000) / 1000
	}
	return Spec{
		Name:         "Large select",
		Number:       404,
		Type:         Select,
		MinAge:       0,
		MaxAge:       199,
		SelectPeriod: 99,
		MaxSelectAge: 100,
		NumDecimals:  3,
		Values:       values,
	}
}
