package properties

import "strings"

// Record is one key/value entry from the compact list syntax used by
// string-typed deployment options, e.g.
//
//	environmentVariables: foo=bar,other='a,b,c'
//	nodeSelector:         disktype:ssd, os: linux
type Record struct {
	Key   string
	Value string
}

// ParseRecords splits a compact list of key/value records. Records are
// separated by commas; a value wrapped in single quotes may itself contain
// commas. The key ends at the first unquoted sep byte, so colon-separated
// options keep any further colons in the value. Whitespace around keys and
// values is trimmed.
func ParseRecords(option, s string, sep byte) ([]Record, error) {
	segments, err := splitTopLevel(option, s)
	if err != nil {
		return nil, err
	}

	var records []Record
	for _, seg := range segments {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		idx := indexUnquoted(seg, sep)
		if idx < 0 {
			return nil, configError(option, "record %q is missing %q", seg, string(sep))
		}
		key := strings.TrimSpace(seg[:idx])
		if key == "" {
			return nil, configError(option, "record %q has an empty key", seg)
		}
		value := unquote(strings.TrimSpace(seg[idx+1:]))
		records = append(records, Record{Key: key, Value: value})
	}
	return records, nil
}

// FormatRecords is the inverse of ParseRecords. Values containing commas
// are re-quoted, so formatting parsed records and parsing them again gives
// back the same records.
func FormatRecords(records []Record, sep byte) string {
	parts := make([]string, 0, len(records))
	for _, r := range records {
		value := r.Value
		if strings.Contains(value, ",") {
			value = "'" + value + "'"
		}
		parts = append(parts, r.Key+string(sep)+value)
	}
	return strings.Join(parts, ",")
}

// RecordMap collapses records into a map, later keys winning. Used for
// options where order carries no meaning, such as selectors and
// annotations.
func RecordMap(records []Record) map[string]string {
	if len(records) == 0 {
		return nil
	}
	m := make(map[string]string, len(records))
	for _, r := range records {
		m[r.Key] = r.Value
	}
	return m
}

// splitTopLevel cuts s at commas outside single quotes.
func splitTopLevel(option, s string) ([]string, error) {
	var segments []string
	start := 0
	quoted := false
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\'':
			quoted = !quoted
		case ',':
			if !quoted {
				segments = append(segments, s[start:i])
				start = i + 1
			}
		}
	}
	if quoted {
		return nil, configError(option, "unbalanced single quote in %q", s)
	}
	return append(segments, s[start:]), nil
}

// indexUnquoted returns the index of the first sep outside single quotes,
// or -1.
func indexUnquoted(s string, sep byte) int {
	quoted := false
	for i := 0; i < len(s); i++ {
		switch {
		case s[i] == '\'':
			quoted = !quoted
		case s[i] == sep && !quoted:
			return i
		}
	}
	return -1
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\'' {
		return s[1 : len(s)-1]
	}
	return s
}
