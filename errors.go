package geoconform

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind classifies why a check failed.
type Kind int

const (
	KindNone Kind = iota
	KindDriverNotFound
	KindOpenFailed
	KindStatMismatch
	KindMetadataKeyMissing
	KindMetadataValueMismatch
	KindGeometryMismatch
	KindAttributeMismatch
	KindSRSMismatch
	KindCountMismatch
	KindNotFound
	KindCanceled
	KindInvalidCase
)

var kindNames = [...]string{
	KindNone:                  "None",
	KindDriverNotFound:        "DriverNotFound",
	KindOpenFailed:            "OpenFailed",
	KindStatMismatch:          "StatMismatch",
	KindMetadataKeyMissing:    "MetadataKeyMissing",
	KindMetadataValueMismatch: "MetadataValueMismatch",
	KindGeometryMismatch:      "GeometryMismatch",
	KindAttributeMismatch:     "AttributeMismatch",
	KindSRSMismatch:           "SRSMismatch",
	KindCountMismatch:         "CountMismatch",
	KindNotFound:              "NotFound",
	KindCanceled:              "Canceled",
	KindInvalidCase:           "InvalidCase",
}

var kindSentinels = [...]error{
	KindDriverNotFound:        ErrDriverNotFound,
	KindOpenFailed:            ErrOpenFailed,
	KindStatMismatch:          ErrStatMismatch,
	KindMetadataKeyMissing:    ErrMetadataKeyMissing,
	KindMetadataValueMismatch: ErrMetadataValueMismatch,
	KindGeometryMismatch:      ErrGeometryMismatch,
	KindAttributeMismatch:     ErrAttributeMismatch,
	KindSRSMismatch:           ErrSRSMismatch,
	KindCountMismatch:         ErrCountMismatch,
	KindNotFound:              ErrNotFound,
	KindCanceled:              ErrCanceled,
	KindInvalidCase:           ErrInvalidCase,
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "Kind(" + strconv.Itoa(int(k)) + ")"
	}
	return kindNames[k]
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	for i, name := range kindNames {
		if strings.EqualFold(name, string(text)) {
			*k = Kind(i)
			return nil
		}
	}
	return fmt.Errorf("geoconform: unknown failure kind %q", text)
}

// Sentinel returns the package error matching k, or nil for KindNone.
func (k Kind) Sentinel() error {
	if k <= KindNone || int(k) >= len(kindSentinels) {
		return nil
	}
	return kindSentinels[k]
}

// CheckError describes the failure of one check.
type CheckError struct {
	Kind     Kind
	Check    string // e.g. "band 1 minimum"
	Expected string
	Actual   string
	Err      error // underlying cause, if any
}

func (e *CheckError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Check != "" {
		b.WriteString(": ")
		b.WriteString(e.Check)
	}
	if e.Expected != "" || e.Actual != "" {
		fmt.Fprintf(&b, ": expected %s, actual %s", e.Expected, e.Actual)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *CheckError) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel error for e's kind.
func (e *CheckError) Is(target error) bool {
	s := e.Kind.Sentinel()
	return s != nil && target == s
}

// OpenError is returned when a registered driver fails to open a path.
type OpenError struct {
	Driver string
	Path   string
	Err    error
}

func (e *OpenError) Error() string {
	if e.Driver == "" {
		return fmt.Sprintf("geoconform: open %q: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("geoconform: open %q with driver %s: %v", e.Path, e.Driver, e.Err)
}

func (e *OpenError) Unwrap() error { return e.Err }

func (e *OpenError) Is(target error) bool { return target == ErrOpenFailed }

// KindOf classifies err. Context errors map to KindCanceled, errors wrapping
// a package sentinel to the matching kind.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	var ce *CheckError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCanceled
	}
	for k := KindDriverNotFound; int(k) < len(kindSentinels); k++ {
		if errors.Is(err, kindSentinels[k]) {
			return k
		}
	}
	return KindNone
}

// mismatch builds a CheckError with formatted expected and actual values.
func mismatch(kind Kind, check string, expected, actual interface{}) *CheckError {
	return &CheckError{
		Kind:     kind,
		Check:    check,
		Expected: formatValue(expected),
		Actual:   formatValue(actual),
	}
}

// scoped prefixes the Check of a CheckError with scope. Other errors are
// returned unchanged.
func scoped(err error, scope string) error {
	var ce *CheckError
	if scope == "" || !errors.As(err, &ce) {
		return err
	}
	c := *ce
	if c.Check == "" {
		c.Check = scope
	} else {
		c.Check = scope + " " + c.Check
	}
	return &c
}

func formatValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "none"
	case string:
		return val
	case float64:
		return formatFloat(val)
	case float32:
		return formatFloat(float64(val))
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

// formatFloat prints f in plain decimal notation, so expected and actual
// values read alike; very large or very small magnitudes use exponents.
func formatFloat(f float64) string {
	if math.IsNaN(f) {
		return "nan"
	}
	if a := math.Abs(f); a != 0 && (a < 1e-6 || a >= 1e21) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
