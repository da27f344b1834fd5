// text.go implements the text table format.
//
// Every field is written as "Field name: value" on its own line. The values
// follow a "Table values:" line as fixed-width columns: ages are right-aligned
// in 3 characters and each value in numDecimals+4 characters. Select tables
// have a header of durations ending in "Ult." and repeat the attained age of
// the ultimate value after each row.
package ratetable

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/let-me-illustrate/lmi-sub002/core/errors"
	"github.com/let-me-illustrate/lmi-sub002/internal/logging"
)

// Column layout of the values section.
const (
	ageWidth  = 3
	gapLength = 2
)

// ultimateHeader labels the ultimate column of select tables.
const ultimateHeader = "Ult."

// valueWidth is the width of one value column. The "+2" is for "0." and is
// kept even for tables without decimals, whose columns are one character
// wider than they need to be.
func valueWidth(numDecimals int) int {
	return numDecimals + gapLength + 2
}

type textWriter struct {
	sb *strings.Builder
}

func (tw *textWriter) decimalsFirst() bool { return false }

func (tw *textWriter) writeLine(f field, value string) {
	tw.sb.WriteString(f.String())
	tw.sb.WriteString(": ")
	tw.sb.WriteString(value)
	tw.sb.WriteByte('\n')
}

func (tw *textWriter) writeString(f field, v optional[string]) error {
	if v.ok {
		tw.writeLine(f, v.value)
	}
	return nil
}

func (tw *textWriter) writeNumber(v optional[Number]) error {
	if v.ok {
		tw.writeLine(fieldTableNumber, strconv.FormatUint(uint64(v.value), 10))
	}
	return nil
}

func (tw *textWriter) writeType(v optional[TableType]) error {
	if v.ok {
		tw.writeLine(fieldTableType, v.value.String())
	}
	return nil
}

func (tw *textWriter) writeUint16(f field, v optional[uint16]) error {
	if v.ok {
		tw.writeLine(f, strconv.Itoa(int(v.value)))
	}
	return nil
}

func (tw *textWriter) writeHash(t *Table) error {
	if t.hashValue.ok && t.hashSupplied {
		tw.writeLine(fieldHashValue, strconv.FormatUint(uint64(t.hashValue.value), 10))
	}
	return nil
}

func (tw *textWriter) end() error { return nil }

func (tw *textWriter) writeValues(t *Table) error {
	values, ok := t.values.get()
	if !ok {
		return nil
	}
	tw.sb.WriteString(fieldValues.String())
	tw.sb.WriteString(":\n")

	decimals := int(t.numDecimals.value)
	width := valueWidth(decimals)
	value := func(v float64) {
		fmt.Fprintf(tw.sb, "%*s", width, strconv.FormatFloat(v, 'f', decimals, 64))
	}
	minAge, maxAge := int(t.minAge.value), int(t.maxAge.value)

	if t.typ.value != Select {
		for i, v := range values {
			fmt.Fprintf(tw.sb, "%*d", ageWidth, minAge+i)
			value(v)
			tw.sb.WriteByte('\n')
		}
		return nil
	}

	sp, msa := int(t.selectPeriod.value), int(t.maxSelectAge.value)

	tw.sb.WriteString(strings.Repeat(" ", ageWidth))
	for d := 1; d <= sp; d++ {
		fmt.Fprintf(tw.sb, "%*d", width, d)
	}
	fmt.Fprintf(tw.sb, "%*s\n", width, ultimateHeader)

	i := 0
	for age := minAge; age <= msa; age++ {
		fmt.Fprintf(tw.sb, "%*d", ageWidth, age)
		for d := 0; d <= sp; d++ {
			value(values[i])
			i++
		}
		fmt.Fprintf(tw.sb, "%*s%*d\n", gapLength, "", ageWidth, age+sp)
	}

	padding := strings.Repeat(" ", sp*width)
	for age := msa + sp + 1; age <= maxAge; age++ {
		fmt.Fprintf(tw.sb, "%*d%s", ageWidth, age, padding)
		value(values[i])
		i++
		fmt.Fprintf(tw.sb, "%*s%*d\n", gapLength, "", ageWidth, age)
	}
	return nil
}

// SaveAsText returns the table in the text format.
func (t *Table) SaveAsText() string {
	var sb strings.Builder
	// The text writer cannot fail.
	_ = t.writeFields(&textWriter{sb: &sb})
	return sb.String()
}

// SaveAsTextFile writes the table in the text format to path.
func (t *Table) SaveAsTextFile(path string) error {
	if err := os.WriteFile(path, []byte(t.SaveAsText()), 0644); err != nil {
		return errors.NewIO("write table", path, err)
	}
	return nil
}

// ReadFromText parses a table in the text format.
func ReadFromText(text string) (*Table, error) {
	t, err := parseText(text)
	if err != nil {
		return nil, errors.Wrap(err, "error reading table from text")
	}
	return t, nil
}

// ReadFromTextFile parses the table in the text format stored in path.
func ReadFromTextFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewIO("read table", path, err)
	}
	t, err := parseText(string(data))
	if err != nil {
		return nil, errors.Wrapf(err, "error reading table from file '%s'", path)
	}
	return t, nil
}

// textReader holds the parsing state of one text table.
type textReader struct {
	lines []string
	next  int // index of the next line to read
	t     *Table

	// lastString is the string field continuation lines are appended to,
	// if any.
	lastString optional[field]
	seenValues bool
}

func parseText(text string) (*Table, error) {
	lines := strings.Split(text, "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}

	r := &textReader{lines: lines, t: &Table{}}
	if err := r.parse(); err != nil {
		if number, ok := r.t.number.get(); ok {
			return nil, errors.Wrapf(err, "bad data for table %d", number)
		}
		return nil, err
	}
	return r.t, nil
}

// readLine returns the next line and its 1-based number.
func (r *textReader) readLine() (string, int, bool) {
	if r.next >= len(r.lines) {
		return "", r.next, false
	}
	r.next++
	return r.lines[r.next-1], r.next, true
}

func isBlank(line string) bool {
	return strings.TrimSpace(line) == ""
}

func (r *textReader) parse() error {
	for {
		line, lineNum, ok := r.readLine()
		if !ok {
			break
		}

		if isBlank(line) {
			// Blank lines may only trail the table.
			for _, rest := range r.lines[r.next:] {
				if !isBlank(rest) {
					return errors.Textf(lineNum, "blank line not allowed in the middle of the table")
				}
			}
			break
		}

		f, value, isField, err := r.parseFieldLine(line, lineNum)
		if err != nil {
			return err
		}
		if !isField {
			sf, ok := r.lastString.get()
			if !ok {
				return errors.Textf(lineNum, "expected a field name")
			}
			r.t.strs[sf].value += "\n" + line
			continue
		}

		if r.seenValues && f != fieldHashValue {
			return errors.Textf(lineNum, "field '%s' is not allowed after the table values", f)
		}
		if r.t.has(f) {
			return errors.Textf(lineNum, "duplicate occurrence of the field '%s'", f)
		}

		r.lastString = optional[field]{}
		if err := r.setField(f, value, lineNum, len(f.String())+3); err != nil {
			return err
		}
	}
	return r.t.validate()
}

// parseFieldLine checks whether line starts with a known field name followed
// by a colon. Lines that are not fields are continuations of the previous
// string field.
func (r *textReader) parseFieldLine(line string, lineNum int) (field, string, bool, error) {
	colon := strings.IndexByte(line, ':')
	if colon < 0 {
		return 0, "", false, nil
	}

	name := line[:colon]
	f, ok := fieldByName(name)
	if !ok {
		// Prose containing a colon usually has more words before it than a
		// field name does.
		if strings.Count(name, " ") <= 3 {
			logging.UnknownField(name, lineNum)
		}
		return 0, "", false, nil
	}

	rest := line[colon+1:]
	if f == fieldValues {
		if rest != "" {
			return 0, "", false, errors.TextAtf(lineNum, colon+2,
				"unexpected characters \"%s\" after the field '%s'", rest, f)
		}
		return f, "", true, nil
	}
	if rest == "" {
		return f, "", true, nil
	}
	if rest[0] != ' ' {
		return 0, "", false, errors.TextAtf(lineNum, colon+2, "space expected after the colon following '%s'", f)
	}
	return f, rest[1:], true, nil
}

// setField stores the value of f. column is where the value starts, for
// error messages.
func (r *textReader) setField(f field, value string, lineNum, column int) error {
	t := r.t
	parseUint := func(bits int) (uint64, error) {
		n, err := strconv.ParseUint(value, 10, bits)
		if err != nil {
			if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
				return 0, errors.TextAtf(lineNum, column, "value %s of the field '%s' is out of range", value, f)
			}
			return 0, errors.TextAtf(lineNum, column, "invalid value '%s' of the field '%s'", value, f)
		}
		return n, nil
	}

	switch f.kind() {
	case kindString:
		t.strs[f] = some(value)
		r.lastString = some(f)

	case kindNumber:
		n, err := parseUint(32)
		if err != nil {
			return err
		}
		t.number = some(Number(n))

	case kindType:
		typ, ok := tableTypeFromName(value)
		if !ok {
			return errors.TextAtf(lineNum, column, "unknown table type '%s'", value)
		}
		t.typ = some(typ)

	case kindUint16:
		n, err := parseUint(16)
		if err != nil {
			return err
		}
		*t.uint16Field(f) = some(uint16(n))

	case kindHash:
		n, err := parseUint(32)
		if err != nil {
			return err
		}
		t.hashValue = some(uint32(n))
		t.hashSupplied = true

	case kindValues:
		values, err := r.parseValues(lineNum)
		if err != nil {
			return err
		}
		t.values = some(values)
		r.seenValues = true
	}
	return nil
}

// parseValues reads the rows following the "Table values:" line.
func (r *textReader) parseValues(lineNum int) ([]float64, error) {
	t := r.t
	numDecimals, ok := t.numDecimals.get()
	if !ok {
		return nil, errors.Textf(lineNum, "number of decimal places must be specified before the table values")
	}
	typ, ok := t.typ.get()
	if !ok {
		return nil, errors.Textf(lineNum, "table type must be specified before the table values")
	}
	if typ == Select {
		if t.selectPeriod.or(0) == 0 {
			return nil, errors.Textf(lineNum, "select period must be specified before the table values of a select table")
		}
		if t.maxSelectAge.or(0) == 0 {
			return nil, errors.Textf(lineNum, "maximum select age must be specified before the table values of a select table")
		}
	}
	count, err := t.expectedValueCount()
	if err != nil {
		return nil, errors.Wrapf(err, "invalid table values at line %d", lineNum)
	}

	decimals := int(numDecimals)
	values := make([]float64, 0, count)
	minAge, maxAge := int(t.minAge.value), int(t.maxAge.value)

	if typ != Select {
		for age := minAge; age <= maxAge; age++ {
			c, err := r.valuesRow(age)
			if err != nil {
				return nil, err
			}
			if err := c.expectAge(age); err != nil {
				return nil, err
			}
			v, err := c.value(decimals, 0)
			if err != nil {
				return nil, err
			}
			if err := c.expectEnd(); err != nil {
				return nil, err
			}
			values = append(values, v)
		}
		return values, nil
	}

	sp, msa := int(t.selectPeriod.value), int(t.maxSelectAge.value)
	if err := r.parseSelectHeader(sp); err != nil {
		return nil, err
	}

	for age := minAge; age <= msa; age++ {
		c, err := r.valuesRow(age)
		if err != nil {
			return nil, err
		}
		if err := c.expectAge(age); err != nil {
			return nil, err
		}
		for d := 0; d <= sp; d++ {
			v, err := c.value(decimals, 0)
			if err != nil {
				return nil, err
			}
			values = append(values, v)
		}
		if err := c.expectUltimateAge(age + sp); err != nil {
			return nil, err
		}
		if err := c.expectEnd(); err != nil {
			return nil, err
		}
	}

	padding := sp * valueWidth(decimals)
	for age := msa + sp + 1; age <= maxAge; age++ {
		c, err := r.valuesRow(age)
		if err != nil {
			return nil, err
		}
		if err := c.expectAge(age); err != nil {
			return nil, err
		}
		v, err := c.value(decimals, padding)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
		if err := c.expectUltimateAge(age); err != nil {
			return nil, err
		}
		if err := c.expectEnd(); err != nil {
			return nil, err
		}
	}
	return values, nil
}

// parseSelectHeader checks the "1 2 ... N Ult." line of select tables.
func (r *textReader) parseSelectHeader(selectPeriod int) error {
	line, lineNum, ok := r.readLine()
	if !ok {
		return errors.Textf(lineNum, "select table header expected after the end of input")
	}
	labels := strings.Fields(line)
	for d := 1; d <= selectPeriod; d++ {
		if len(labels) < d || labels[d-1] != strconv.Itoa(d) {
			return errors.Textf(lineNum, "expected duration %d in the select table header", d)
		}
	}
	if len(labels) <= selectPeriod || labels[selectPeriod] != ultimateHeader {
		return errors.Textf(lineNum, "expected \"%s\" after the last duration in the select table header", ultimateHeader)
	}
	if len(labels) > selectPeriod+1 {
		return errors.Textf(lineNum, "unexpected \"%s\" after \"%s\" in the select table header",
			labels[selectPeriod+1], ultimateHeader)
	}
	return nil
}

// valuesRow returns a cursor on the line holding the values for age.
func (r *textReader) valuesRow(age int) (*rowCursor, error) {
	line, lineNum, ok := r.readLine()
	if !ok {
		return nil, errors.Textf(lineNum, "values for age %d are missing", age)
	}
	if isBlank(line) {
		return nil, errors.Textf(lineNum, "values for age %d are missing", age)
	}
	return &rowCursor{line: line, lineNum: lineNum}, nil
}

// rowCursor scans one line of the values section.
type rowCursor struct {
	line    string
	lineNum int
	pos     int
}

func (c *rowCursor) errorf(format string, args ...interface{}) error {
	return errors.TextAtf(c.lineNum, c.pos+1, format, args...)
}

func (c *rowCursor) spaces() int {
	start := c.pos
	for c.pos < len(c.line) && c.line[c.pos] == ' ' {
		c.pos++
	}
	return c.pos - start
}

func (c *rowCursor) digits() string {
	start := c.pos
	for c.pos < len(c.line) && c.line[c.pos] >= '0' && c.line[c.pos] <= '9' {
		c.pos++
	}
	return c.line[start:c.pos]
}

// rightAligned reads a non-negative integer right-aligned in a column of the
// given width that starts with at least minSpaces blanks.
func (c *rowCursor) rightAligned(minSpaces, width int, what string) (int, error) {
	start := c.pos
	n := c.spaces()
	digits := c.digits()
	if digits == "" {
		return 0, c.errorf("expected %s", what)
	}
	if n < minSpaces || n+len(digits) != max(width, minSpaces+len(digits)) {
		c.pos = start
		return 0, c.errorf("misaligned %s", what)
	}
	v, err := strconv.Atoi(digits)
	if err != nil {
		c.pos = start
		return 0, c.errorf("invalid %s \"%s\"", what, digits)
	}
	return v, nil
}

func (c *rowCursor) expectAge(age int) error {
	start := c.pos
	got, err := c.rightAligned(0, ageWidth, "age")
	if err != nil {
		return err
	}
	if got != age {
		c.pos = start
		return c.errorf("incorrect age %d, %d expected", got, age)
	}
	return nil
}

func (c *rowCursor) expectUltimateAge(age int) error {
	start := c.pos
	got, err := c.rightAligned(gapLength, gapLength+ageWidth, "ultimate age")
	if err != nil {
		return err
	}
	if got != age {
		c.pos = start
		return c.errorf("incorrect ultimate age %d, %d expected", got, age)
	}
	return nil
}

// value reads one value preceded by padding blank columns and the usual
// 1..gapLength spaces (one more without decimals).
func (c *rowCursor) value(decimals, padding int) (float64, error) {
	maxSpaces := gapLength
	if decimals == 0 {
		maxSpaces++
	}
	n := c.spaces() - padding
	if n < 1 || n > maxSpaces {
		return 0, c.errorf("expected between 1 and %d spaces before the value", maxSpaces)
	}

	start := c.pos
	if c.pos < len(c.line) && c.line[c.pos] == '-' {
		c.pos++
	}
	if c.digits() == "" {
		c.pos = start
		return 0, c.errorf("expected a number")
	}
	if c.pos < len(c.line) && c.line[c.pos] == '.' {
		if decimals == 0 {
			return 0, c.errorf("unexpected decimal point in a table without decimals")
		}
		c.pos++
		if got := len(c.digits()); got != decimals {
			c.pos = start
			return 0, c.errorf("expected a number with %d decimals, got %d", decimals, got)
		}
	} else if decimals != 0 {
		c.pos = start
		return 0, c.errorf("expected a number with %d decimals, got 0", decimals)
	}

	v, err := strconv.ParseFloat(c.line[start:c.pos], 64)
	if err != nil {
		c.pos = start
		return 0, c.errorf("invalid number \"%s\"", c.line[start:c.pos])
	}
	return v, nil
}

func (c *rowCursor) expectEnd() error {
	if c.pos != len(c.line) {
		return c.errorf("unexpected characters \"%s\" at the end of the line", c.line[c.pos:])
	}
	return nil
}
