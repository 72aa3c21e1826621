// Package config supplies the settings vocabulary shared by every
// allocator constructor in this module, built directly on
// gosettings.Settings the way the teacher's malloc package builds its
// own Defaultsettings on top of the same map type.
package config

import (
	"fmt"

	gosettings "github.com/prataprc/gosettings"
)

// Settings is a re-export of gosettings.Settings so callers configuring
// memalloc allocators do not need a second import for the same type.
type Settings = gosettings.Settings

// Alignment every node returned by a large-node free list is rounded up
// to, at minimum: the size of a free-list link.
const Alignment = 8

// MaxBlockSize is a 1 TiB bound on a single slab size. blocklist does
// not consult it: its growth-factor doubling has no ceiling.
const MaxBlockSize = int64(1) << 40 // 1 TiB

// Defaults returns the settings for a pool sized to serve nodes in
// [minNode, maxNode], mirroring malloc.Defaultsettings in the teacher.
//
// "block_size" (int64): initial slab size requested from upstream.
// "growth_factor" (int64): multiplier applied to block_size after each
//
//	fresh upstream allocation (fixed at 2 per spec, exposed for tests).
//
// "max_pools" (int64): ceiling on distinct size classes/pools.
// "max_chunks" (int64): ceiling on cells per small-free-list chunk request.
// "allocator" (string): "flist" (pointer-chained) or "small" (byte-offset).
//
// No constructor in this module reads these keys: pool.New and
// blocklist.New take no settings, poolcollection.New reads only
// "debug_checks", and stackalloc.New reads only "debug_fill".
func Defaults(minNode, maxNode int64) Settings {
	if minNode <= 0 || maxNode < minNode {
		panic(fmt.Errorf("config: invalid node range [%v, %v]", minNode, maxNode))
	}
	blockSize := minNode * 128
	if blockSize < 4096 {
		blockSize = 4096
	}
	return Settings{
		"minblock":      minNode,
		"maxblock":      maxNode,
		"block_size":    blockSize,
		"growth_factor": int64(2),
		"max_pools":     int64(512),
		"max_chunks":    int64(65536),
		"allocator":     "flist",
	}
}

// Int64OrDefault reads an int64 setting, returning def if the key is
// absent so constructors can layer Defaults() with caller overrides.
func Int64OrDefault(setts Settings, key string, def int64) int64 {
	if setts == nil {
		return def
	}
	if v, ok := setts[key]; ok {
		return v.(int64)
	}
	return def
}

// StringOrDefault mirrors Int64OrDefault for string settings.
func StringOrDefault(setts Settings, key string, def string) string {
	if setts == nil {
		return def
	}
	if v, ok := setts[key]; ok {
		return v.(string)
	}
	return def
}

// BoolOrDefault mirrors Int64OrDefault for boolean settings, used by
// callers gating debug-only invariant checks (e.g. "debug_checks") that
// a release build would rather skip than pay for on every operation.
func BoolOrDefault(setts Settings, key string, def bool) bool {
	if setts == nil {
		return def
	}
	if v, ok := setts[key]; ok {
		return v.(bool)
	}
	return def
}
