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
	"github.com/smacker/go-tree-sitter/csharp"

	"github.com/AleutianAI/atlas/services/knowledge/scan"
)

// Node type constants for C# AST traversal.
const (
	csNodeUsingDirective       = "using_directive"
	csNodeClassDeclaration     = "class_declaration"
	csNodeInterfaceDeclaration = "interface_declaration"
	csNodeMethodDeclaration    = "method_declaration"
	csNodePropertyDeclaration  = "property_declaration"
	csNodeAttributeList        = "attribute_list"
	csNodePredefinedType       = "predefined_type"
	csNodeIdentifier           = "identifier"
)

// CSharpNormalizer extracts definitions from C# source.
type CSharpNormalizer struct{}

// NewCSharpNormalizer creates a C# normalizer.
func NewCSharpNormalizer() *CSharpNormalizer {
	return &CSharpNormalizer{}
}

// Language returns the language name for this normalizer.
func (n *CSharpNormalizer) Language() string {
	return scan.LangCSharp
}

// Normalize extracts using directives, classes (with methods,
// properties, and attributes), and interfaces.
func (n *CSharpNormalizer) Normalize(ctx context.Context, path string, source []byte) (*Definitions, error) {
	if err := checkSource(ctx, source); err != nil {
		return nil, err
	}

	tree, err := parseTree(ctx, csharp.GetLanguage(), source)
	if err != nil {
		return nil, nil
	}
	defer tree.Close()

	defs := &Definitions{}

	visit(tree.RootNode(), func(node *sitter.Node) {
		switch node.Type() {
		case csNodeUsingDirective:
			defs.Imports = append(defs.Imports, nodeText(node, source))

		case csNodeClassDeclaration:
			defs.Classes = append(defs.Classes, csClass(node, source))

		case csNodeInterfaceDeclaration:
			defs.Interfaces = append(defs.Interfaces, csInterface(node, source))
		}
	})

	defs.CodePatterns = extractCodePatterns(tree.RootNode(), source, path)
	return defs, nil
}

// csClass builds a Class from a class_declaration node. C# property
// declarations land in Properties; attribute lists ([ApiController],
// [Route("...")]) land in Annotations.
func csClass(node *sitter.Node, source []byte) Class {
	cls := Class{
		Name: nodeText(node.ChildByFieldName("name"), source),
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() == csNodeAttributeList {
			cls.Annotations = append(cls.Annotations, nodeText(child, source))
		}
	}

	if body := node.ChildByFieldName("body"); body != nil {
		for i := 0; i < int(body.ChildCount()); i++ {
			child := body.Child(i)
			switch child.Type() {
			case csNodeMethodDeclaration:
				cls.Methods = append(cls.Methods, csMethod(child, source))
			case csNodePropertyDeclaration:
				if name := nodeText(child.ChildByFieldName("name"), source); name != "" {
					cls.Properties = append(cls.Properties, name)
				}
			}
		}
	}

	return cls
}

// csMethod builds a Function from a method_declaration node. The
// return type is the first predefined type or identifier among the
// method's children.
func csMethod(node *sitter.Node, source []byte) Function {
	fn := Function{
		Name:       nodeText(node.ChildByFieldName("name"), source),
		Parameters: trimParens(nodeText(node.ChildByFieldName("parameters"), source)),
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() == csNodePredefinedType || child.Type() == csNodeIdentifier {
			fn.ReturnType = nodeText(child, source)
			break
		}
	}
	return fn
}

// csInterface builds an Interface from an interface_declaration node.
func csInterface(node *sitter.Node, source []byte) Interface {
	iface := Interface{
		Name: nodeText(node.ChildByFieldName("name"), source),
	}
	if body := node.ChildByFieldName("body"); body != nil {
		for i := 0; i < int(body.ChildCount()); i++ {
			child := body.Child(i)
			if child.Type() == csNodeMethodDeclaration {
				iface.Methods = append(iface.Methods, Function{
					Name:       nodeText(child.ChildByFieldName("name"), source),
					Parameters: trimParens(nodeText(child.ChildByFieldName("parameters"), source)),
				})
			}
		}
	}
	return iface
}
