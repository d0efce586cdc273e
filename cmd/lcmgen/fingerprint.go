// Copyright 2022 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package main

import "github.com/samber/lo"

// mixByte folds one byte into the running 64-bit hash. Per spec.md §4.3
// the shift is a signed arithmetic right shift; the Go `>>` operator on a
// signed int64 already performs that. The byte is added to the result of
// the xor, `((v << 8) ^ (v >> 55)) + c`; this grouping yields the point_t
// fingerprint 0xae7e5fba5eeca11e checked in main_test.go.
func mixByte(v int64, c byte) int64 {
	return ((v << 8) ^ (v >> 55)) + int64(c)
}

// mixString folds a name/identifier string into v: first its length, then
// each byte (all IDL identifiers are ASCII in practice, per spec.md §4.3).
func mixString(v int64, s string) int64 {
	v = mixByte(v, byte(len(s)))
	for i := 0; i < len(s); i++ {
		v = mixByte(v, s[i])
	}
	return v
}

// baseHash computes struct S's base hash per the spec.md §4.3 recipe:
// member name, primitive type name (user types are excluded — their
// contribution is folded in transitively), dimension count, and each
// dimension's constant/variable tag plus size-expression text.
func baseHash(s *Struct) int64 {
	v := int64(0x12345678)
	for _, m := range s.Members {
		v = mixString(v, m.Name)
		if m.Type.Primitive {
			v = mixString(v, m.Type.ShortName)
		}
		v = mixByte(v, byte(len(m.Dims)))
		for _, d := range m.Dims {
			if d.Kind == DimConst {
				v = mixByte(v, 0)
			} else {
				v = mixByte(v, 1)
			}
			v = mixString(v, d.Expr)
		}
	}
	return v
}

// userTypeDeps returns the distinct full names of every user-defined type
// directly referenced by s's members, deduplicated with lo.Uniq the same
// way the teacher collapses repeated parameter/offset tuples in
// parser_amd64.go's stack-building pass.
func userTypeDeps(s *Struct) []string {
	var deps []string
	for _, m := range s.Members {
		if !m.Type.Primitive {
			deps = append(deps, m.Type.Full)
		}
	}
	return lo.Uniq(deps)
}

// fullHash computes H(S): the base hash plus H(T) for each distinct
// user-defined type T that s's members reference directly. Each H(T)
// already folds in T's own dependencies, so a type reachable along
// several paths contributes once per path. byName resolves a full type
// name to its Struct (unknown names are skipped); memo caches
// already-computed hashes, and inProgress detects cycles, which the
// reference algorithm does not define but which must not infinite loop
// here.
func fullHash(s *Struct, byName map[string]*Struct, memo map[string]int64, inProgress map[string]bool) int64 {
	if h, ok := memo[s.FullName()]; ok {
		return h
	}
	if inProgress[s.FullName()] {
		// structurally-recursive types are not meaningful for this wire
		// format; treat the cycle as contributing zero further mixing.
		return 0
	}
	inProgress[s.FullName()] = true
	h := baseHash(s)
	for _, dep := range userTypeDeps(s) {
		depStruct, ok := byName[dep]
		if !ok {
			continue
		}
		h += fullHash(depStruct, byName, memo, inProgress)
	}
	delete(inProgress, s.FullName())
	memo[s.FullName()] = h
	return h
}

// Fingerprint computes the final wire fingerprint for s: the fully-mixed
// hash H(S) rotated left by one bit using unsigned (logical) shift, per
// spec.md §4.3's mandatory-unsigned-rotation rule.
func Fingerprint(s *Struct, byName map[string]*Struct) int64 {
	h := fullHash(s, byName, map[string]int64{}, map[string]bool{})
	return rotateLeft1(h)
}

// rotateLeft1 performs `(H << 1) | (H >>> 63)` using unsigned 64-bit
// arithmetic, as spec.md §4.3 and §9 require: substituting a signed
// arithmetic shift here silently changes fingerprints whenever H's high
// bit is set and breaks cross-language interop.
func rotateLeft1(h int64) int64 {
	u := uint64(h)
	u = (u << 1) | (u >> 63)
	return int64(u)
}
