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
	"github.com/smacker/go-tree-sitter/c"

	"github.com/AleutianAI/atlas/services/knowledge/scan"
)

// Node type constants shared by the C and C++ normalizers.
const (
	cNodePreprocInclude      = "preproc_include"
	cNodeFunctionDefinition  = "function_definition"
	cNodeStructSpecifier     = "struct_specifier"
	cNodeTypeDefinition      = "type_definition"
	cNodeClassSpecifier      = "class_specifier"
	cNodeNamespaceDefinition = "namespace_definition"
)

// CNormalizer extracts definitions from C source and headers.
type CNormalizer struct{}

// NewCNormalizer creates a C normalizer.
func NewCNormalizer() *CNormalizer {
	return &CNormalizer{}
}

// Language returns the language name for this normalizer.
func (n *CNormalizer) Language() string {
	return scan.LangC
}

// Normalize extracts includes, function definitions, named structs,
// and typedefs.
func (n *CNormalizer) Normalize(ctx context.Context, path string, source []byte) (*Definitions, error) {
	if err := checkSource(ctx, source); err != nil {
		return nil, err
	}

	tree, err := parseTree(ctx, c.GetLanguage(), source)
	if err != nil {
		return nil, nil
	}
	defer tree.Close()

	defs := &Definitions{}

	visit(tree.RootNode(), func(node *sitter.Node) {
		switch node.Type() {
		case cNodePreprocInclude:
			defs.Includes = append(defs.Includes, nodeText(node, source))

		case cNodeFunctionDefinition:
			if fn, ok := cFunction(node, source); ok {
				defs.Functions = append(defs.Functions, fn)
			}

		case cNodeStructSpecifier:
			if name := nodeText(node.ChildByFieldName("name"), source); name != "" {
				defs.Structs = append(defs.Structs, Struct{Name: name})
			}

		case cNodeTypeDefinition:
			if name := nodeText(node.ChildByFieldName("declarator"), source); name != "" {
				defs.Typedefs = append(defs.Typedefs, Typedef{Name: name})
			}
		}
	})

	return defs, nil
}

// cFunction resolves a function_definition through its declarator
// chain: the outer declarator is a function_declarator whose own
// declarator field holds the name and whose parameters field holds the
// parameter list.
func cFunction(node *sitter.Node, source []byte) (Function, bool) {
	declarator := node.ChildByFieldName("declarator")
	if declarator == nil {
		return Function{}, false
	}
	nameNode := declarator.ChildByFieldName("declarator")
	if nameNode == nil {
		return Function{}, false
	}
	return Function{
		Name:       nodeText(nameNode, source),
		Parameters: trimParens(nodeText(declarator.ChildByFieldName("parameters"), source)),
	}, true
}
