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

// Command lcmgen reads .lcm interface-definition files and emits one Go
// source file per declared struct.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var verbose bool

var command = &cobra.Command{
	Use:  "lcmgen [flags] <file.lcm> [<file2.lcm> ...]",
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		outDir, _ := cmd.PersistentFlags().GetString("output-dir")
		if outDir == "" {
			outDir = "."
		}
		packageDirs, _ := cmd.PersistentFlags().GetBool("package-dirs")

		// A partial failure (some files lex/parse cleanly, others don't)
		// must still produce a non-zero exit per spec.md §6 ("non-zero
		// with a message on I/O or parse errors"), even though generation
		// proceeds for whatever parsed successfully.
		files, err := parseFiles(args)
		failed := err != nil
		if err != nil {
			_, _ = fmt.Fprintln(os.Stderr, err)
		}

		if len(files) > 0 {
			opts := GenOptions{
				OutDir:        outDir,
				PackageDirs:   packageDirs,
				RuntimeImport: "github.com/ToberoCat/lcm",
			}
			if err := Generate(files, opts); err != nil {
				_, _ = fmt.Fprintln(os.Stderr, err)
				failed = true
			}
		}

		if failed {
			os.Exit(1)
		}
	},
}

// parseFiles lexes and parses every named source, continuing past a
// failing file (spec.md §7: "lex/parse/IO errors abort generation for
// that file with a diagnostic; other files continue") and joining every
// failure into a single non-nil error for the caller, so a partial
// failure still results in a non-zero exit even though the files that
// did parse are returned for generation.
func parseFiles(paths []string) ([]*File, error) {
	var files []*File
	var failed []error
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			failed = append(failed, &IOError{Op: "read", Path: path, Err: err})
			if verbose {
				_, _ = fmt.Fprintf(os.Stderr, "skipping %s: %v\n", path, err)
			}
			continue
		}
		f, err := ParseFile(string(data), path)
		if err != nil {
			failed = append(failed, fmt.Errorf("%s: %w", path, err))
			if verbose {
				_, _ = fmt.Fprintf(os.Stderr, "skipping %s: %v\n", path, err)
			}
			continue
		}
		files = append(files, f)
	}
	if len(failed) == 0 {
		return files, nil
	}
	return files, errors.Join(failed...)
}

func init() {
	command.PersistentFlags().StringP("output-dir", "o", ".", "output directory of generated files")
	command.PersistentFlags().Bool("package-dirs", true, "create the directory tree implied by each struct's package name")
	command.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "if set, increase verbosity level")
}

func main() {
	if err := command.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
