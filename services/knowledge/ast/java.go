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
	"github.com/smacker/go-tree-sitter/java"

	"github.com/AleutianAI/atlas/services/knowledge/scan"
)

// Node type constants for Java AST traversal.
const (
	javaNodeImportDeclaration    = "import_declaration"
	javaNodeClassDeclaration     = "class_declaration"
	javaNodeInterfaceDeclaration = "interface_declaration"
	javaNodeMethodDeclaration    = "method_declaration"
	javaNodeFieldDeclaration     = "field_declaration"
	javaNodeModifiers            = "modifiers"
	javaNodeAnnotation           = "annotation"
	javaNodeMarkerAnnotation     = "marker_annotation"
	javaNodeTypeIdentifier       = "type_identifier"
	javaNodeVoidType             = "void_type"
)

// JavaNormalizer extracts definitions from Java source.
type JavaNormalizer struct{}

// NewJavaNormalizer creates a Java normalizer.
func NewJavaNormalizer() *JavaNormalizer {
	return &JavaNormalizer{}
}

// Language returns the language name for this normalizer.
func (n *JavaNormalizer) Language() string {
	return scan.LangJava
}

// Normalize extracts imports, classes (with methods, fields, and
// annotations), and interfaces.
func (n *JavaNormalizer) Normalize(ctx context.Context, path string, source []byte) (*Definitions, error) {
	if err := checkSource(ctx, source); err != nil {
		return nil, err
	}

	tree, err := parseTree(ctx, java.GetLanguage(), source)
	if err != nil {
		return nil, nil
	}
	defer tree.Close()

	defs := &Definitions{}
	root := tree.RootNode()

	visit(root, func(node *sitter.Node) {
		switch node.Type() {
		case javaNodeImportDeclaration:
			defs.Imports = append(defs.Imports, nodeText(node, source))

		case javaNodeClassDeclaration:
			defs.Classes = append(defs.Classes, javaClass(node, source))

		case javaNodeInterfaceDeclaration:
			defs.Interfaces = append(defs.Interfaces, javaInterface(node, source))
		}
	})

	defs.CodePatterns = extractCodePatterns(root, source, path)
	return defs, nil
}

// javaClass builds a Class from a class_declaration node.
func javaClass(node *sitter.Node, source []byte) Class {
	cls := Class{
		Name: nodeText(node.ChildByFieldName("name"), source),
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() != javaNodeModifiers {
			continue
		}
		for j := 0; j < int(child.ChildCount()); j++ {
			mod := child.Child(j)
			if mod.Type() == javaNodeAnnotation || mod.Type() == javaNodeMarkerAnnotation {
				cls.Annotations = append(cls.Annotations, nodeText(mod, source))
			}
		}
	}

	if body := node.ChildByFieldName("body"); body != nil {
		for i := 0; i < int(body.ChildCount()); i++ {
			child := body.Child(i)
			switch child.Type() {
			case javaNodeMethodDeclaration:
				cls.Methods = append(cls.Methods, javaMethod(child, source))
			case javaNodeFieldDeclaration:
				cls.Fields = append(cls.Fields, nodeText(child, source))
			}
		}
	}

	return cls
}

// javaMethod builds a Function from a method_declaration node. The
// return type is the first type identifier (or void) among the
// method's children.
func javaMethod(node *sitter.Node, source []byte) Function {
	fn := Function{
		Name:       nodeText(node.ChildByFieldName("name"), source),
		Parameters: trimParens(nodeText(node.ChildByFieldName("parameters"), source)),
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() == javaNodeTypeIdentifier || child.Type() == javaNodeVoidType {
			fn.ReturnType = nodeText(child, source)
			break
		}
	}
	return fn
}

// javaInterface builds an Interface from an interface_declaration node.
func javaInterface(node *sitter.Node, source []byte) Interface {
	iface := Interface{
		Name: nodeText(node.ChildByFieldName("name"), source),
	}
	if body := node.ChildByFieldName("body"); body != nil {
		for i := 0; i < int(body.ChildCount()); i++ {
			child := body.Child(i)
			if child.Type() == javaNodeMethodDeclaration {
				iface.Methods = append(iface.Methods, Function{
					Name:       nodeText(child.ChildByFieldName("name"), source),
					Parameters: trimParens(nodeText(child.ChildByFieldName("parameters"), source)),
				})
			}
		}
	}
	return iface
}
