// Copyright (C) 2025 Aleutian AI
//
// This program is licensed under the GNU Affero General Public License v3.
// See the LICENSE.txt file for details.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

import (
	"context"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"

	"github.com/AleutianAI/atlas/services/knowledge/scan"
)

// JavaScriptNormalizer extracts definitions from JavaScript and JSX
// source. The JavaScript grammar parses JSX natively, so .js and .jsx
// share one parser.
type JavaScriptNormalizer struct{}

// NewJavaScriptNormalizer creates a JavaScript normalizer.
func NewJavaScriptNormalizer() *JavaScriptNormalizer {
	return &JavaScriptNormalizer{}
}

// Language returns the language name for this normalizer.
func (n *JavaScriptNormalizer) Language() string {
	return scan.LangJavaScript
}

// Normalize extracts imports, functions (declared and arrow-assigned),
// classes with methods, raw variable declarations, and call sites.
func (n *JavaScriptNormalizer) Normalize(ctx context.Context, path string, source []byte) (*Definitions, error) {
	if err := checkSource(ctx, source); err != nil {
		return nil, err
	}

	tree, err := parseTree(ctx, javascript.GetLanguage(), source)
	if err != nil {
		return nil, nil
	}
	defer tree.Close()

	defs := &Definitions{}
	root := tree.RootNode()

	visit(root, func(node *sitter.Node) {
		switch node.Type() {
		case tsNodeImportStatement:
			defs.Imports = append(defs.Imports, nodeText(node, source))

		case tsNodeFunctionDeclaration:
			defs.Functions = append(defs.Functions, Function{
				Name:       nodeText(node.ChildByFieldName("name"), source),
				Parameters: trimParens(nodeText(node.ChildByFieldName("parameters"), source)),
			})

		case tsNodeArrowFunction:
			if fn, ok := arrowFunction(node, source); ok {
				defs.Functions = append(defs.Functions, fn)
			}

		case tsNodeClassDeclaration:
			defs.Classes = append(defs.Classes, jsClass(node, source))

		case tsNodeVariableDeclaration:
			defs.Variables = append(defs.Variables, nodeText(node, source))

		case tsNodeCallExpression:
			fn := nodeText(node.ChildByFieldName("function"), source)
			if fn == "" {
				return
			}
			defs.Calls = append(defs.Calls, Call{
				Function:  fn,
				Arguments: callArguments(node.ChildByFieldName("arguments"), source),
			})
		}
	})

	defs.CodePatterns = extractCodePatterns(root, source, path)
	defs.UIElements = ExtractUIPatterns(path, source)
	defs.FileStructure = AnalyzeFileStructure(path, source)
	return defs, nil
}
