// Package shard provides shard key generation for distributed DynamoDB indexes.
package shard

import (
	"fmt"
	"hash/fnv"
)

// MaxShards is the largest supported shard count.
const MaxShards = 256

// IndexPK computes the sharded partition key for a secondary index entry.
// With numShards=1, all entries for a value go to shard "00".
// With numShards>1, entries are distributed across shards based on the document ID hash,
// so a directory with very many children does not concentrate on one partition.
func IndexPK(value, id string, numShards int) string {
	numShards = clamp(numShards)
	if numShards == 1 {
		return fmt.Sprintf("%s#00", value)
	}
	h := fnv.New32a()
	h.Write([]byte(id))
	shard := h.Sum32() % uint32(numShards)
	return fmt.Sprintf("%s#%02x", value, shard)
}

// IndexKeys returns every partition key a value's entries may live under.
func IndexKeys(value string, numShards int) []string {
	numShards = clamp(numShards)
	keys := make([]string, numShards)
	for i := 0; i < numShards; i++ {
		keys[i] = fmt.Sprintf("%s#%02x", value, i)
	}
	return keys
}

func clamp(numShards int) int {
	if numShards < 1 {
		return 1
	}
	if numShards > MaxShards {
		return MaxShards
	}
	return numShards
}
