// Package resilience is the root of lib-resilience, a resilience
// orchestration layer between application code and two heterogeneous backing
// stores: a relational (transactional) store and a columnar (analytical)
// store.
//
// The library keeps applications answering requests, possibly with degraded
// data, while either store is slow, unreachable, or erroring, and never
// silently corrupts state on writes. See the client package for the public
// facades and the circuitbreaker, cache, query, session, and health packages
// for the building blocks.
package resilience
