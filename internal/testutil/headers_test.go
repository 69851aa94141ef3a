// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package test_test

import (
	"go/parser"
	"go/token"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"

	test "github.com/jaycherian/gcp-go-media-indexer/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The license block is its own comment group and never part of a package doc.
func TestSourceHeaders(t *testing.T) {
	root := filepath.Join(test.ConfigDir(), "..")
	for _, dir := range []string{"cmd", "internal"} {
		err := filepath.WalkDir(filepath.Join(root, dir), func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() || !strings.HasSuffix(path, ".go") {
				return err
			}
			file, err := parser.ParseFile(token.NewFileSet(), path, nil, parser.PackageClauseOnly|parser.ParseComments)
			require.NoError(t, err, path)
			require.NotEmpty(t, file.Comments, path)

			license := file.Comments[0].Text()
			assert.True(t, strings.HasPrefix(license, "Copyright 2024 Google, LLC"), path)
			assert.True(t, strings.HasSuffix(license, "limitations under the License.\n"), path)

			if file.Doc != nil {
				doc := file.Doc.Text()
				assert.NotContains(t, doc, "Licensed under", path)
				assert.True(t, strings.HasPrefix(doc, "Package "+file.Name.Name+" "), "%s: %q", path, doc)
			}
			return nil
		})
		require.NoError(t, err)
	}
}
