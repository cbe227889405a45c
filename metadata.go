package geoconform

import "strings"

// MetadataExpectation is one expected metadata item.
type MetadataExpectation struct {
	Key   string
	Value string
}

// LookupMetadata returns the metadata item key of src. A key of the form
// "DOMAIN:KEY" is looked up in that domain when src supports domains.
func LookupMetadata(src MetadataSource, key string) (string, bool) {
	if dm, ok := src.(DomainMetadata); ok {
		if domain, k, found := strings.Cut(key, ":"); found && domain != "" {
			return dm.MetadataItemInDomain(domain, k)
		}
	}
	return src.MetadataItem(key)
}

// VerifyMetadata compares the item key of src with expected using exact
// string equality. A missing key and a different value fail with different
// kinds.
func VerifyMetadata(src MetadataSource, key, expected string) error {
	check := "metadata " + key
	actual, ok := LookupMetadata(src, key)
	if !ok {
		return &CheckError{
			Kind:     KindMetadataKeyMissing,
			Check:    check,
			Expected: quote(expected),
			Actual:   "missing",
		}
	}
	if actual != expected {
		return &CheckError{
			Kind:     KindMetadataValueMismatch,
			Check:    check,
			Expected: quote(expected),
			Actual:   quote(actual),
		}
	}
	return nil
}

func quote(s string) string { return `"` + s + `"` }
