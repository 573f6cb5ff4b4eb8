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
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/AleutianAI/atlas/services/knowledge/scan"
)

// Node type constants for Python AST traversal.
const (
	pyNodeImportStatement     = "import_statement"
	pyNodeImportFromStatement = "import_from_statement"
	pyNodeFunctionDefinition  = "function_definition"
	pyNodeClassDefinition     = "class_definition"
	pyNodeDecoratedDefinition = "decorated_definition"
	pyNodeDecorator           = "decorator"
	pyNodeCall                = "call"
	pyNodeExpressionStatement = "expression_statement"
	pyNodeString              = "string"
	pyNodeBlock               = "block"
)

// PythonNormalizer extracts definitions from Python source.
type PythonNormalizer struct{}

// NewPythonNormalizer creates a Python normalizer.
func NewPythonNormalizer() *PythonNormalizer {
	return &PythonNormalizer{}
}

// Language returns the language name for this normalizer.
func (n *PythonNormalizer) Language() string {
	return scan.LangPython
}

// Normalize extracts imports, functions (with docstrings), classes with
// their methods, and call sites.
func (n *PythonNormalizer) Normalize(ctx context.Context, path string, source []byte) (*Definitions, error) {
	if err := checkSource(ctx, source); err != nil {
		return nil, err
	}

	tree, err := parseTree(ctx, python.GetLanguage(), source)
	if err != nil {
		return nil, nil // Unparseable file is dropped, not fatal
	}
	defer tree.Close()

	defs := &Definitions{}
	root := tree.RootNode()

	visit(root, func(node *sitter.Node) {
		switch node.Type() {
		case pyNodeImportStatement, pyNodeImportFromStatement:
			defs.Imports = append(defs.Imports, nodeText(node, source))

		case pyNodeFunctionDefinition:
			// Methods are collected under their class below.
			if pyInsideClass(node) {
				return
			}
			defs.Functions = append(defs.Functions, pyFunction(node, source))

		case pyNodeClassDefinition:
			defs.Classes = append(defs.Classes, pyClass(node, source))

		case pyNodeCall:
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
	return defs, nil
}

// pyFunction builds a Function from a function_definition node.
func pyFunction(node *sitter.Node, source []byte) Function {
	return Function{
		Name:       nodeText(node.ChildByFieldName("name"), source),
		Parameters: trimParens(nodeText(node.ChildByFieldName("parameters"), source)),
		Docstring:  pyDocstring(node.ChildByFieldName("body"), source),
	}
}

// pyClass builds a Class from a class_definition node, collecting
// methods from the class body (including decorated ones) and decorator
// text from a wrapping decorated_definition.
func pyClass(node *sitter.Node, source []byte) Class {
	cls := Class{
		Name: nodeText(node.ChildByFieldName("name"), source),
	}

	if body := node.ChildByFieldName("body"); body != nil {
		for i := 0; i < int(body.ChildCount()); i++ {
			child := body.Child(i)
			switch child.Type() {
			case pyNodeFunctionDefinition:
				cls.Methods = append(cls.Methods, pyFunction(child, source))
			case pyNodeDecoratedDefinition:
				if def := child.ChildByFieldName("definition"); def != nil && def.Type() == pyNodeFunctionDefinition {
					cls.Methods = append(cls.Methods, pyFunction(def, source))
				}
			}
		}
	}

	if parent := node.Parent(); parent != nil && parent.Type() == pyNodeDecoratedDefinition {
		for i := 0; i < int(parent.ChildCount()); i++ {
			child := parent.Child(i)
			if child.Type() == pyNodeDecorator {
				cls.Annotations = append(cls.Annotations, nodeText(child, source))
			}
		}
	}

	return cls
}

// pyDocstring returns the docstring of a function body: the first
// statement when it is a bare string literal, with quotes stripped.
func pyDocstring(body *sitter.Node, source []byte) string {
	if body == nil || body.NamedChildCount() == 0 {
		return ""
	}
	stmt := body.NamedChild(0)
	if stmt.Type() != pyNodeExpressionStatement || stmt.NamedChildCount() == 0 {
		return ""
	}
	if str := stmt.NamedChild(0); str.Type() == pyNodeString {
		return stripStringQuotes(nodeText(str, source))
	}
	return ""
}

// pyInsideClass reports whether a definition sits inside a class body.
func pyInsideClass(node *sitter.Node) bool {
	for p := node.Parent(); p != nil; p = p.Parent() {
		switch p.Type() {
		case pyNodeClassDefinition:
			return true
		case pyNodeFunctionDefinition:
			return false
		}
	}
	return false
}

// stripStringQuotes removes triple or single quote delimiters and any
// string prefix (r, b, u, f) from a Python string literal.
func stripStringQuotes(s string) string {
	s = strings.TrimSpace(s)
	// Prefix letters only count when an opening quote follows them.
	i := 0
	for i < len(s) && i < 3 && strings.ContainsRune("rbufRBUF", rune(s[i])) {
		i++
	}
	if i > 0 && i < len(s) && (s[i] == '"' || s[i] == '\'') {
		s = s[i:]
	}
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if strings.HasPrefix(s, q) && strings.HasSuffix(s, q) && len(s) >= 2*len(q) {
			return strings.TrimSpace(s[len(q) : len(s)-len(q)])
		}
	}
	return strings.TrimSpace(s)
}

// trimParens strips one outer pair of parentheses from a raw parameter
// list so signatures render as name(params) without doubling.
func trimParens(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		return strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}

// callArguments lists raw argument text from an argument list node,
// skipping punctuation.
func callArguments(args *sitter.Node, source []byte) []string {
	if args == nil {
		return nil
	}
	var out []string
	for i := 0; i < int(args.ChildCount()); i++ {
		child := args.Child(i)
		switch child.Type() {
		case ",", "(", ")":
			continue
		}
		out = append(out, nodeText(child, source))
	}
	return out
}
