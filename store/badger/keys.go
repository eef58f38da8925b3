package badger

import "strings"

// Key schema:
//
//	Data Type     Prefix   Key Format                                   Value
//	==========    ======   ==========================================   ===========
//	Document      "d"      d \x00 <collection> \x00 <id>                JSON object
//	Index entry   "x"      x \x00 <collection> \x00 <field> \x00        empty
//	                       <value> \x00 <id>
//
// The NUL separator cannot appear in collection names, field names or IDs,
// so index prefixes never match a longer value.
const (
	prefixDoc   = "d"
	prefixIndex = "x"
	sep         = "\x00"
)

func keyDoc(collection, id string) []byte {
	return []byte(prefixDoc + sep + collection + sep + id)
}

// keyIndexPrefix generates the key prefix for scanning index entries of one value.
func keyIndexPrefix(collection, field, value string) []byte {
	return []byte(prefixIndex + sep + collection + sep + field + sep + value + sep)
}

func keyIndex(collection, field, value, id string) []byte {
	return append(keyIndexPrefix(collection, field, value), id...)
}

// idFromIndexKey extracts the document ID from an index key.
func idFromIndexKey(key []byte) string {
	s := string(key)
	if i := strings.LastIndex(s, sep); i >= 0 {
		return s[i+1:]
	}
	return ""
}
