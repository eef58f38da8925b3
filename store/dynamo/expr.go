package dynamo

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// exprBuilder allocates expression attribute placeholders.
// Names are deduplicated; values are always fresh except the shared constants.
type exprBuilder struct {
	names  map[string]string
	values map[string]types.AttributeValue
	byName map[string]string
	nv     int
}

// name returns the placeholder for an attribute name.
func (b *exprBuilder) name(attr string) string {
	if b.byName == nil {
		b.byName = make(map[string]string)
		b.names = make(map[string]string)
	}
	if p, ok := b.byName[attr]; ok {
		return p
	}
	p := fmt.Sprintf("#n%d", len(b.byName))
	b.byName[attr] = p
	b.names[p] = attr
	return p
}

// path returns the document path expression for dotted field segments.
func (b *exprBuilder) path(segments []string) string {
	parts := make([]string, len(segments))
	for i, s := range segments {
		parts[i] = b.name(s)
	}
	return strings.Join(parts, ".")
}

// value returns a fresh placeholder bound to av.
func (b *exprBuilder) value(av types.AttributeValue) string {
	p := fmt.Sprintf(":v%d", b.nv)
	b.nv++
	b.bind(p, av)
	return p
}

func (b *exprBuilder) bind(p string, av types.AttributeValue) {
	if b.values == nil {
		b.values = make(map[string]types.AttributeValue)
	}
	b.values[p] = av
}

func (b *exprBuilder) zero() string {
	b.bind(":zero", &types.AttributeValueMemberN{Value: "0"})
	return ":zero"
}

func (b *exprBuilder) one() string {
	b.bind(":one", &types.AttributeValueMemberN{Value: "1"})
	return ":one"
}

// versionCondition asserts the document still exists at the observed version.
// Documents written before versioning carry no version attribute.
func (b *exprBuilder) versionCondition(version int64) string {
	id := b.name(attrID)
	ver := b.name(attrVersion)
	if version == 0 {
		return fmt.Sprintf("attribute_exists(%s) AND attribute_not_exists(%s)", id, ver)
	}
	b.bind(":expected_version", &types.AttributeValueMemberN{Value: strconv.FormatInt(version, 10)})
	return fmt.Sprintf("attribute_exists(%s) AND %s = :expected_version", id, ver)
}
