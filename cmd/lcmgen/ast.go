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

import "strings"

// primitiveTypes is the closed set of IDL primitive type names.
var primitiveTypes = map[string]bool{
	"int8_t":  true,
	"int16_t": true,
	"int32_t": true,
	"int64_t": true,
	"byte":    true,
	"float":   true,
	"double":  true,
	"string":  true,
	"boolean": true,
}

// File is the parsed contents of one .lcm source file.
type File struct {
	Path    string
	Package string
	Structs []*Struct
}

// Struct is one `struct` block, owning its members and constants in
// declaration order.
type Struct struct {
	Name      string
	Package   string
	Doc       string
	Members   []*Member
	Constants []*Constant
}

// FullName is the dotted package-qualified name used as a fingerprint and
// codegen lookup key.
func (s *Struct) FullName() string {
	if s.Package == "" {
		return s.Name
	}
	return s.Package + "." + s.Name
}

// Member is one field declaration inside a struct.
type Member struct {
	Type TypeRef
	Name string
	Dims []ArrayDim
}

// Constant is one `const` declaration inside a struct.
type Constant struct {
	Type  string // primitive type name, always numeric
	Name  string
	Value string // literal text as written, e.g. "3", "0x1f", "3.14"
}

// TypeRef names a member's or constant's type.
type TypeRef struct {
	Full      string // dotted full name
	ShortName string
	Package   string // empty for primitives
	Primitive bool
}

func newTypeRef(enclosingPackage string, parts []string) TypeRef {
	short := parts[len(parts)-1]
	if primitiveTypes[short] && len(parts) == 1 {
		return TypeRef{Full: short, ShortName: short, Primitive: true}
	}
	if len(parts) == 1 {
		// unqualified user type takes the enclosing package
		full := short
		if enclosingPackage != "" {
			full = enclosingPackage + "." + short
		}
		return TypeRef{Full: full, ShortName: short, Package: enclosingPackage}
	}
	pkg := strings.Join(parts[:len(parts)-1], ".")
	return TypeRef{Full: strings.Join(parts, "."), ShortName: short, Package: pkg}
}

// DimKind distinguishes constant from variable array dimensions.
type DimKind int

const (
	DimConst DimKind = iota
	DimVar
)

// ArrayDim is one `[...]` declared on a member.
type ArrayDim struct {
	Kind DimKind
	// Expr is the original size-expression text: digits for a literal,
	// the referenced member's name for a variable dimension, or the bare
	// identifier for a symbolic constant that resolved to neither.
	Expr string
	// Resolved holds the integer value for DimConst dimensions (0 if the
	// constant is symbolic-only and never resolved to a literal).
	Resolved int
	// RefMember is set for DimVar dimensions: the name of the previously
	// declared integer member that carries this dimension's length.
	RefMember string
}
