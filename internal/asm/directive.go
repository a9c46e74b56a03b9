package asm

import "strings"

// dataItemSize computes the byte length of a DB/DW data-definition
// operand list without actually resolving any label it references —
// pass 1 needs the size, not the bytes, and labels inside DUP/string
// items never affect length.
func dataItemSize(width int, rest string, lineNum int) (int, error) {
	items, err := splitDataItems(rest, lineNum)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, it := range items {
		n, err := it.size(width, lineNum)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

// emitDataItems resolves and encodes a DB/DW operand list into bytes.
func emitDataItems(width int, rest string, lineNum int, resolve func(string) (uint16, bool)) ([]byte, error) {
	items, err := splitDataItems(rest, lineNum)
	if err != nil {
		return nil, err
	}
	var out []byte
	for _, it := range items {
		b, err := it.emit(width, lineNum, resolve)
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
	}
	return out, nil
}

// dataItem is one comma-separated element of a DB/DW list: a string
// literal, a numeric/char constant, a label reference, or an `N
// DUP(item)` repetition.
type dataItem struct {
	str      string // non-empty for a quoted string literal
	dupCount int    // > 0 for N DUP(...)
	dupInner string
	expr     string // numeric, char-literal, or label expression
}

func (it dataItem) size(width, lineNum int) (int, error) {
	if it.str != "" {
		return len(it.str), nil
	}
	if it.dupCount > 0 {
		inner, err := splitDataItems(it.dupInner, lineNum)
		if err != nil {
			return 0, err
		}
		n := 0
		for _, sub := range inner {
			s, err := sub.size(width, lineNum)
			if err != nil {
				return 0, err
			}
			n += s
		}
		return n * it.dupCount, nil
	}
	return width, nil
}

func (it dataItem) emit(width, lineNum int, resolve func(string) (uint16, bool)) ([]byte, error) {
	if it.str != "" {
		return []byte(it.str), nil
	}
	if it.dupCount > 0 {
		inner, err := splitDataItems(it.dupInner, lineNum)
		if err != nil {
			return nil, err
		}
		var unit []byte
		for _, sub := range inner {
			b, err := sub.emit(width, lineNum, resolve)
			if err != nil {
				return nil, err
			}
			unit = append(unit, b...)
		}
		out := make([]byte, 0, len(unit)*it.dupCount)
		for i := 0; i < it.dupCount; i++ {
			out = append(out, unit...)
		}
		return out, nil
	}

	expr := strings.TrimSpace(it.expr)
	var v int32
	if strings.HasPrefix(expr, "'") {
		cv, err := parseCharLiteral(expr, lineNum)
		if err != nil {
			return nil, err
		}
		v = cv
	} else if n, ok := parseNumeric(expr); ok {
		v = n
	} else if isIdentifier(expr) {
		off, ok := resolve(expr)
		if !ok {
			return nil, errf(lineNum, UndefinedLabel, "undefined label %q", expr)
		}
		v = int32(off)
	} else {
		return nil, errf(lineNum, BadNumeric, "cannot parse data item %q", expr)
	}
	if width == 1 {
		return []byte{byte(v)}, nil
	}
	return []byte{byte(v), byte(v >> 8)}, nil
}

// splitDataItems splits a DB/DW operand list on top-level commas,
// recognising quoted strings and a single level of DUP(...) nesting.
func splitDataItems(s string, lineNum int) ([]dataItem, error) {
	var out []dataItem
	depth := 0
	inQuote := false
	start := 0
	flush := func(raw string) error {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			return nil
		}
		item, err := parseDataItem(raw, lineNum)
		if err != nil {
			return err
		}
		out = append(out, item)
		return nil
	}
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\'':
			inQuote = !inQuote
		case '(':
			if !inQuote {
				depth++
			}
		case ')':
			if !inQuote && depth > 0 {
				depth--
			}
		case ',':
			if !inQuote && depth == 0 {
				if err := flush(s[start:i]); err != nil {
					return nil, err
				}
				start = i + 1
			}
		}
	}
	if err := flush(s[start:]); err != nil {
		return nil, err
	}
	return out, nil
}

func parseDataItem(raw string, lineNum int) (dataItem, error) {
	if strings.HasPrefix(raw, "'") && strings.HasSuffix(raw, "'") && len(raw) >= 2 {
		return dataItem{str: raw[1 : len(raw)-1]}, nil
	}
	upper := strings.ToUpper(raw)
	if idx := strings.Index(upper, "DUP"); idx > 0 {
		countStr := strings.TrimSpace(raw[:idx])
		count, ok := parseNumeric(countStr)
		if !ok || count <= 0 {
			return dataItem{}, errf(lineNum, BadNumeric, "invalid DUP count %q", countStr)
		}
		open := strings.Index(raw[idx:], "(")
		close := strings.LastIndex(raw, ")")
		if open < 0 || close < 0 {
			return dataItem{}, errf(lineNum, BadDirective, "malformed DUP expression %q", raw)
		}
		inner := raw[idx+open+1 : close]
		return dataItem{dupCount: int(count), dupInner: inner}, nil
	}
	return dataItem{expr: raw}, nil
}
