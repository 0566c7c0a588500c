// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package asm

import (
	"sync"

	"github.com/Fantom-foundation/asmbox/go/asmbox"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/crypto/sha3"
)

// Config contains the configuration options of an Assembler.
type Config struct {
	// CacheSize is the maximum number of programs retained in the cache of
	// assembled programs. If set to 0, a default size is used. If negative,
	// no cache is used.
	CacheSize int
}

const defaultCacheSize = 1 << 10

// maxCachedSourceLength is the maximum length of a source text in bytes for
// which assembled programs are retained in the cache.
const maxCachedSourceLength = 1 << 16

// Hash is the Keccak-256 hash of a source text.
type Hash [32]byte

// Assembler assembles source texts and caches the resulting programs indexed
// by the hash of their source. Since the same program is commonly run many
// times, e.g. when stepping through it in a session, this avoids repeated
// parsing. Programs obtained from an Assembler are shared and must not be
// modified. The Assembler is thread-safe.
type Assembler struct {
	config Config
	cache  *lru.Cache[Hash, *asmbox.Program]
}

// NewAssembler creates a new assembler with the provided configuration.
func NewAssembler(config Config) (*Assembler, error) {
	if config.CacheSize == 0 {
		config.CacheSize = defaultCacheSize
	}

	var cache *lru.Cache[Hash, *asmbox.Program]
	if config.CacheSize > 0 {
		var err error
		cache, err = lru.New[Hash, *asmbox.Program](config.CacheSize)
		if err != nil {
			return nil, err
		}
	}
	return &Assembler{
		config: config,
		cache:  cache,
	}, nil
}

// Assemble assembles the given source, consulting the cache first. Failed
// assemblies are not cached.
func (a *Assembler) Assemble(source string) (*asmbox.Program, error) {
	if a.cache == nil || len(source) > maxCachedSourceLength {
		return Assemble(source)
	}

	hash := Keccak256([]byte(source))
	if res, exists := a.cache.Get(hash); exists {
		return res, nil
	}

	res, err := Assemble(source)
	if err != nil {
		return nil, err
	}
	a.cache.Add(hash, res)
	return res, nil
}

// Len returns the number of cached programs.
func (a *Assembler) Len() int {
	if a.cache == nil {
		return 0
	}
	return a.cache.Len()
}

var keccakHasherPool = sync.Pool{New: func() any { return sha3.NewLegacyKeccak256() }}

type keccakHasher interface {
	Reset()
	Write(in []byte) (int, error)
	Read(out []byte) (int, error)
}

// Keccak256 computes the Keccak-256 hash of the given data.
func Keccak256(data []byte) Hash {
	hasher := keccakHasherPool.Get().(keccakHasher)
	hasher.Reset()
	hasher.Write(data)
	var res Hash
	hasher.Read(res[:])
	keccakHasherPool.Put(hasher)
	return res
}
