package cellgrid

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// RGB is a colour.
type RGB struct{ R, G, B uint8 }

// ColorRule maps the value range [Low, High] to colours interpolated
// from LowColor to HighColor.
type ColorRule struct {
	Low, High           float64
	LowColor, HighColor RGB
}

// metadataValue formats r the way GRASS-backed GDAL bands report it.
func (r ColorRule) metadataValue() string {
	return fmt.Sprintf("%e %e %d %d %d %d %d %d", r.Low, r.High,
		r.LowColor.R, r.LowColor.G, r.LowColor.B,
		r.HighColor.R, r.HighColor.G, r.HighColor.B)
}

func (r ColorRule) line() string {
	return fmt.Sprintf("%s:%d:%d:%d %s:%d:%d:%d",
		strconv.FormatFloat(r.Low, 'g', -1, 64), r.LowColor.R, r.LowColor.G, r.LowColor.B,
		strconv.FormatFloat(r.High, 'g', -1, 64), r.HighColor.R, r.HighColor.G, r.HighColor.B)
}

// readColorRules parses a colr file. Each rule is a line of the form
// "low:r:g:b high:r:g:b" or "value:r:g:b"; blank lines and lines starting
// with '%' or '#' are ignored. ok is false when the file does not exist.
func readColorRules(path string) (rules []ColorRule, ok bool, err error) {
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	sc := bufio.NewScanner(bytes.NewReader(b))
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" || line[0] == '%' || line[0] == '#' {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) > 2 {
			return nil, true, fmt.Errorf("cellgrid: %s:%d: malformed rule", path, n)
		}
		var rule ColorRule
		if rule.Low, rule.LowColor, err = parseColorPoint(fields[0]); err != nil {
			return nil, true, fmt.Errorf("cellgrid: %s:%d: %w", path, n, err)
		}
		rule.High, rule.HighColor = rule.Low, rule.LowColor
		if len(fields) == 2 {
			if rule.High, rule.HighColor, err = parseColorPoint(fields[1]); err != nil {
				return nil, true, fmt.Errorf("cellgrid: %s:%d: %w", path, n, err)
			}
		}
		rules = append(rules, rule)
	}
	return rules, true, sc.Err()
}

func parseColorPoint(s string) (float64, RGB, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 4 {
		return 0, RGB{}, fmt.Errorf("malformed colour %q", s)
	}
	v, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0, RGB{}, err
	}
	var c [3]uint8
	for i, p := range parts[1:] {
		n, err := strconv.ParseUint(p, 10, 8)
		if err != nil {
			return 0, RGB{}, fmt.Errorf("malformed colour %q: %w", s, err)
		}
		c[i] = uint8(n)
	}
	return v, RGB{c[0], c[1], c[2]}, nil
}

// colorMetadata returns the band metadata for rules. Without a colr file
// only the zero count is reported. Rules are listed last first.
func colorMetadata(rules []ColorRule, present bool) map[string]string {
	md := map[string]string{"COLOR_TABLE_RULES_COUNT": strconv.Itoa(len(rules))}
	if !present {
		return md
	}
	n := len(rules)
	for i := n - 1; i >= 0; i-- {
		md["COLOR_TABLE_RULE_RGB_"+strconv.Itoa(n-i-1)] = rules[i].metadataValue()
	}
	return md
}
