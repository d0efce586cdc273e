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

import (
	"errors"
	"fmt"
	"go/format"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// IOError reports a source-read or generated-file-write failure.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// GenOptions controls where and how generated files are laid out, bound
// to the `lcmgen` CLI flags in main.go.
type GenOptions struct {
	OutDir      string
	PackageDirs bool
	RuntimeImport string // import path of the lcm runtime package
}

// Generate emits one Go source file per struct in every file, resolving
// cross-file/cross-struct type references (for fingerprinting and nested
// encode/decode calls) against the full set of structs first. A failure
// stops generation for the remaining structs of that file only; the other
// files are still generated and every failure is joined into the result.
func Generate(files []*File, opts GenOptions) error {
	byName := map[string]*Struct{}
	for _, f := range files {
		for _, s := range f.Structs {
			byName[s.FullName()] = s
		}
	}
	var failed []error
	for _, f := range files {
		for _, s := range f.Structs {
			if err := generateStruct(s, byName, opts); err != nil {
				failed = append(failed, fmt.Errorf("%s: %w", f.Path, err))
				break
			}
		}
	}
	return errors.Join(failed...)
}

func generateStruct(s *Struct, byName map[string]*Struct, opts GenOptions) error {
	dir := opts.OutDir
	if opts.PackageDirs && s.Package != "" {
		dir = filepath.Join(dir, filepath.Join(strings.Split(s.Package, ".")...))
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &IOError{Op: "mkdir", Path: dir, Err: err}
	}
	var b strings.Builder
	writeGenHeader(&b)
	goPackage := s.Package
	if goPackage == "" {
		goPackage = "lcmtypes"
	}
	goPackage = strings.ReplaceAll(goPackage, ".", "_")
	fmt.Fprintf(&b, "package %s\n\n", goPackage)
	fmt.Fprintf(&b, "import %q\n\n", opts.RuntimeImport)

	fp := Fingerprint(s, byName)
	fmt.Fprintf(&b, "const %sFingerprint int64 = %d\n\n", exportName(s.Name), fp)

	writeConstants(&b, s)
	writeStructDecl(&b, s)
	writeFingerprintMethod(&b, s)
	if err := writeEncodeMethod(&b, s); err != nil {
		return err
	}
	if err := writeDecodeFunc(&b, s, byName); err != nil {
		return err
	}

	formatted, err := format.Source([]byte(b.String()))
	if err != nil {
		// keep the unformatted text on disk so a broken generator is
		// still diagnosable, matching the teacher's "write whatever was
		// assembled" fallback when asmfmt.Format fails.
		formatted = []byte(b.String())
	}
	path := filepath.Join(dir, s.Name+".go")
	if err := os.WriteFile(path, formatted, 0o644); err != nil {
		return &IOError{Op: "write", Path: path, Err: err}
	}
	return nil
}

func writeGenHeader(b *strings.Builder) {
	b.WriteString("// Code generated by lcmgen. DO NOT EDIT.\n\n")
}

func writeConstants(b *strings.Builder, s *Struct) {
	if len(s.Constants) == 0 {
		return
	}
	b.WriteString("const (\n")
	for _, c := range s.Constants {
		fmt.Fprintf(b, "\t%s_%s %s = %s\n", exportName(s.Name), c.Name, goType(TypeRef{ShortName: c.Type, Primitive: true}, nil), c.Value)
	}
	b.WriteString(")\n\n")
}

func writeStructDecl(b *strings.Builder, s *Struct) {
	if s.Doc != "" {
		for _, line := range strings.Split(s.Doc, "\n") {
			fmt.Fprintf(b, "// %s\n", line)
		}
	}
	fmt.Fprintf(b, "type %s struct {\n", exportName(s.Name))
	for _, m := range s.Members {
		fmt.Fprintf(b, "\t%s %s\n", exportName(m.Name), goFieldType(m))
	}
	b.WriteString("}\n\n")
}

func writeFingerprintMethod(b *strings.Builder, s *Struct) {
	fmt.Fprintf(b, "func (m *%s) Fingerprint() int64 { return %sFingerprint }\n\n", exportName(s.Name), exportName(s.Name))
}

// exportName converts an IDL identifier (member, struct, or constant
// name) to its exported Go spelling by capitalizing its first letter;
// names pass through unmodified where already capitalized. Applied to
// struct type names and their fingerprint/declared constants as well as
// member names, since spec.md §4.4 requires generated structs to be
// constructible from an arbitrary importing package, and Go visibility
// is determined solely by identifier case.
func exportName(name string) string {
	if name == "" {
		return name
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

func goType(t TypeRef, byName map[string]*Struct) string {
	if t.Primitive {
		switch t.ShortName {
		case "int8_t":
			return "int8"
		case "int16_t":
			return "int16"
		case "int32_t":
			return "int32"
		case "int64_t":
			return "int64"
		case "byte":
			return "byte"
		case "float":
			return "float32"
		case "double":
			return "float64"
		case "string":
			return "string"
		case "boolean":
			return "bool"
		}
	}
	// Non-primitive members reference another generated struct type,
	// which is emitted under its exported name (see exportName).
	return exportName(t.ShortName)
}

func goFieldType(m *Member) string {
	return goFieldTypeFromDims(m.Type, m.Dims)
}

// goFieldTypeFromDims renders a member's Go field type: one nested slice
// level per declared dimension. Both constant and variable dimensions are
// represented as slices (rather than giving constant dimensions a fixed
// Go array type) so a single encode/decode code-generation path handles
// both uniformly — dimension sizes are never carried on the wire either
// way (spec.md §4.4), only the slice's runtime length.
func goFieldTypeFromDims(t TypeRef, dims []ArrayDim) string {
	base := goType(t, nil)
	for range dims {
		base = "[]" + base
	}
	return base
}

// primMethodSuffix maps an IDL primitive short name to the Buffer
// accessor method suffix used by generated Encode/Decode code
// (buf.WriteInt32/ReadInt32, etc).
func primMethodSuffix(short string) string {
	switch short {
	case "int8_t":
		return "Int8"
	case "int16_t":
		return "Int16"
	case "int32_t":
		return "Int32"
	case "int64_t":
		return "Int64"
	case "byte":
		return "Byte"
	case "float":
		return "Float32"
	case "double":
		return "Float64"
	}
	return ""
}

// emitEncodeScalar writes the encode statement for one non-array value.
func emitEncodeScalar(b *strings.Builder, expr string, t TypeRef, indent string) {
	if t.Primitive {
		switch t.ShortName {
		case "string":
			fmt.Fprintf(b, "%sif err := buf.WriteString(%s); err != nil {\n%s\treturn err\n%s}\n", indent, expr, indent, indent)
		case "boolean":
			fmt.Fprintf(b, "%sif err := buf.WriteBool(%s); err != nil {\n%s\treturn err\n%s}\n", indent, expr, indent, indent)
		default:
			fmt.Fprintf(b, "%sif err := buf.Write%s(%s); err != nil {\n%s\treturn err\n%s}\n",
				indent, primMethodSuffix(t.ShortName), expr, indent, indent)
		}
		return
	}
	fmt.Fprintf(b, "%sif err := %s.Encode(buf); err != nil {\n%s\treturn err\n%s}\n", indent, expr, indent, indent)
}

// emitEncodeValue recursively walks a member's declared dimensions,
// emitting one `for range` loop per dimension (row-major, per spec.md
// §4.4) and bottoming out at emitEncodeScalar.
func emitEncodeValue(b *strings.Builder, expr string, t TypeRef, dims []ArrayDim, indent string, depth int) {
	if len(dims) == 0 {
		emitEncodeScalar(b, expr, t, indent)
		return
	}
	v := fmt.Sprintf("v%d", depth)
	fmt.Fprintf(b, "%sfor _, %s := range %s {\n", indent, v, expr)
	emitEncodeValue(b, v, t, dims[1:], indent+"\t", depth+1)
	fmt.Fprintf(b, "%s}\n", indent)
}

func writeEncodeMethod(b *strings.Builder, s *Struct) error {
	fmt.Fprintf(b, "// Encode appends m's wire form (fingerprint then members, per declaration order) to buf.\n")
	fmt.Fprintf(b, "func (m *%s) Encode(buf *lcm.Buffer) error {\n", exportName(s.Name))
	b.WriteString("\tif err := buf.WriteInt64(m.Fingerprint()); err != nil {\n\t\treturn err\n\t}\n")
	for _, mem := range s.Members {
		emitEncodeValue(b, "m."+exportName(mem.Name), mem.Type, mem.Dims, "\t", 0)
	}
	b.WriteString("\treturn nil\n}\n\n")
	return nil
}

// emitDecodeScalar writes the decode-and-assign statement for one
// non-array value, storing the result at path.
func emitDecodeScalar(b *strings.Builder, path string, t TypeRef, indent string) {
	if t.Primitive {
		switch t.ShortName {
		case "string":
			fmt.Fprintf(b, "%s{\n%s\tv, err := buf.ReadString()\n%s\tif err != nil {\n%s\t\treturn nil, err\n%s\t}\n%s\t%s = v\n%s}\n",
				indent, indent, indent, indent, indent, indent, path, indent)
		case "boolean":
			fmt.Fprintf(b, "%s{\n%s\tv, err := buf.ReadBool()\n%s\tif err != nil {\n%s\t\treturn nil, err\n%s\t}\n%s\t%s = v\n%s}\n",
				indent, indent, indent, indent, indent, indent, path, indent)
		default:
			fmt.Fprintf(b, "%s{\n%s\tv, err := buf.Read%s()\n%s\tif err != nil {\n%s\t\treturn nil, err\n%s\t}\n%s\t%s = v\n%s}\n",
				indent, indent, primMethodSuffix(t.ShortName), indent, indent, indent, indent, path, indent)
		}
		return
	}
	fmt.Fprintf(b, "%s{\n%s\tv, err := Decode%s(buf)\n%s\tif err != nil {\n%s\t\treturn nil, err\n%s\t}\n%s\t%s = *v\n%s}\n",
		indent, indent, exportName(t.ShortName), indent, indent, indent, indent, path, indent)
}

// emitDecodeValue mirrors emitEncodeValue on the read side: it allocates
// each dimension's slice (sized from a resolved constant or, for a
// variable dimension, from the already-decoded referenced member) and
// recurses into the inner dimension.
func emitDecodeValue(b *strings.Builder, path string, t TypeRef, dims []ArrayDim, indent string, depth int) {
	if len(dims) == 0 {
		emitDecodeScalar(b, path, t, indent)
		return
	}
	d := dims[0]
	var sizeExpr string
	if d.Kind == DimVar {
		sizeExpr = fmt.Sprintf("int(m.%s)", exportName(d.RefMember))
	} else {
		sizeExpr = strconv.Itoa(d.Resolved)
	}
	elemType := goFieldTypeFromDims(t, dims[1:])
	idx := fmt.Sprintf("i%d", depth)
	fmt.Fprintf(b, "%s%s = make([]%s, %s)\n", indent, path, elemType, sizeExpr)
	fmt.Fprintf(b, "%sfor %s := range %s {\n", indent, idx, path)
	emitDecodeValue(b, fmt.Sprintf("%s[%s]", path, idx), t, dims[1:], indent+"\t", depth+1)
	fmt.Fprintf(b, "%s}\n", indent)
}

func writeDecodeFunc(b *strings.Builder, s *Struct, byName map[string]*Struct) error {
	goName := exportName(s.Name)
	fmt.Fprintf(b, "// Decode%s reads m's wire form from buf, validating the leading fingerprint.\n", goName)
	fmt.Fprintf(b, "func Decode%s(buf *lcm.Buffer) (*%s, error) {\n", goName, goName)
	b.WriteString("\tfp, err := buf.ReadInt64()\n\tif err != nil {\n\t\treturn nil, err\n\t}\n")
	fmt.Fprintf(b, "\tif fp != %sFingerprint {\n\t\treturn nil, &lcm.FingerprintMismatchError{Expected: %sFingerprint, Got: fp}\n\t}\n", goName, goName)
	fmt.Fprintf(b, "\tm := &%s{}\n", goName)
	for _, mem := range s.Members {
		emitDecodeValue(b, "m."+exportName(mem.Name), mem.Type, mem.Dims, "\t", 0)
	}
	b.WriteString("\treturn m, nil\n}\n\n")
	return nil
}
