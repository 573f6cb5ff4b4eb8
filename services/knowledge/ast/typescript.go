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
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/AleutianAI/atlas/services/knowledge/scan"
)

// Node type constants shared by the TypeScript and JavaScript
// normalizers.
const (
	tsNodeImportStatement      = "import_statement"
	tsNodeFunctionDeclaration  = "function_declaration"
	tsNodeArrowFunction        = "arrow_function"
	tsNodeVariableDeclarator   = "variable_declarator"
	tsNodeVariableDeclaration  = "variable_declaration"
	tsNodeClassDeclaration     = "class_declaration"
	tsNodeMethodDefinition     = "method_definition"
	tsNodeInterfaceDeclaration = "interface_declaration"
	tsNodeMethodSignature      = "method_signature"
	tsNodeDecorator            = "decorator"
	tsNodeExportStatement      = "export_statement"
	tsNodeCallExpression       = "call_expression"
)

// TypeScriptNormalizer extracts definitions from TypeScript source.
// Files ending in .tsx are parsed with the TSX grammar.
type TypeScriptNormalizer struct{}

// NewTypeScriptNormalizer creates a TypeScript normalizer.
func NewTypeScriptNormalizer() *TypeScriptNormalizer {
	return &TypeScriptNormalizer{}
}

// Language returns the language name for this normalizer.
func (n *TypeScriptNormalizer) Language() string {
	return scan.LangTypeScript
}

// Normalize extracts imports, functions (declared and arrow-assigned),
// classes with methods and decorators, interfaces, and call sites.
func (n *TypeScriptNormalizer) Normalize(ctx context.Context, path string, source []byte) (*Definitions, error) {
	if err := checkSource(ctx, source); err != nil {
		return nil, err
	}

	lang := typescript.GetLanguage()
	if strings.EqualFold(filepath.Ext(path), ".tsx") {
		lang = tsx.GetLanguage()
	}

	tree, err := parseTree(ctx, lang, source)
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

		case tsNodeInterfaceDeclaration:
			defs.Interfaces = append(defs.Interfaces, tsInterface(node, source))

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

// arrowFunction resolves an arrow function assigned to a variable to a
// named Function. Anonymous arrows (callbacks, inline props) are not
// definitions and report ok = false.
func arrowFunction(node *sitter.Node, source []byte) (Function, bool) {
	parent := node.Parent()
	if parent == nil || parent.Type() != tsNodeVariableDeclarator {
		return Function{}, false
	}
	name := nodeText(parent.ChildByFieldName("name"), source)
	if name == "" {
		return Function{}, false
	}
	params := nodeText(node.ChildByFieldName("parameters"), source)
	if params == "" {
		// Single-parameter arrows without parentheses use the
		// "parameter" field instead.
		params = nodeText(node.ChildByFieldName("parameter"), source)
	}
	return Function{Name: name, Parameters: trimParens(params)}, true
}

// jsClass builds a Class from a class_declaration node, collecting
// method_definition members and attached decorators. Shared by the
// TypeScript and JavaScript normalizers.
func jsClass(node *sitter.Node, source []byte) Class {
	cls := Class{
		Name: nodeText(node.ChildByFieldName("name"), source),
	}

	if body := node.ChildByFieldName("body"); body != nil {
		for i := 0; i < int(body.ChildCount()); i++ {
			child := body.Child(i)
			if child.Type() == tsNodeMethodDefinition {
				cls.Methods = append(cls.Methods, Function{
					Name:       nodeText(child.ChildByFieldName("name"), source),
					Parameters: trimParens(nodeText(child.ChildByFieldName("parameters"), source)),
				})
			}
		}
	}

	cls.Annotations = classDecorators(node, source)
	return cls
}

// classDecorators collects decorator text attached to a class, whether
// the grammar parents decorators on the class node itself or on a
// wrapping export_statement.
func classDecorators(node *sitter.Node, source []byte) []string {
	var out []string
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() == tsNodeDecorator {
			out = append(out, nodeText(child, source))
		}
	}
	if parent := node.Parent(); parent != nil && parent.Type() == tsNodeExportStatement {
		for i := 0; i < int(parent.ChildCount()); i++ {
			child := parent.Child(i)
			if child.Type() == tsNodeDecorator {
				out = append(out, nodeText(child, source))
			}
		}
	}
	return out
}

// tsInterface builds an Interface from an interface_declaration node.
func tsInterface(node *sitter.Node, source []byte) Interface {
	iface := Interface{
		Name: nodeText(node.ChildByFieldName("name"), source),
	}
	if body := node.ChildByFieldName("body"); body != nil {
		for i := 0; i < int(body.ChildCount()); i++ {
			child := body.Child(i)
			if child.Type() == tsNodeMethodSignature {
				iface.Methods = append(iface.Methods, Function{
					Name:       nodeText(child.ChildByFieldName("name"), source),
					Parameters: trimParens(nodeText(child.ChildByFieldName("parameters"), source)),
				})
			}
		}
	}
	return iface
}
