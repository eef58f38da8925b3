// Package tree implements per-owner namespace trees on top of a store.DB.
//
// A namespace owns exactly one root Directory (named RootName) and any number
// of Directories and Files below it. Every operation runs in a single store
// transaction: the ancestor chain is read first, then all writes are issued.
// Each write keeps the aggregates along the chain consistent:
//
//   - fileCount and dirCount of a Directory count its direct children
//   - the size of a Directory is the sum of the sizes of all Files below it
//   - revision grows by exactly one on every node a transaction touches,
//     including every ancestor of the node that changed
//
// Deleting a Directory removes its metadata record atomically and records a
// reap job for its descendants, which are removed afterwards by the reaper
// package.
package tree
