// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package build

import (
	"strings"

	"github.com/AleutianAI/atlas/services/knowledge"
	"github.com/AleutianAI/atlas/services/knowledge/ast"
	"github.com/AleutianAI/atlas/services/knowledge/relate"
)

// symbolSet accumulates symbols with ID deduplication. Languages with
// overloading (java, c++) produce several definitions with the same
// name; the first one wins so IDs stay unique.
type symbolSet struct {
	symbols []knowledge.Symbol
	seen    map[string]bool
}

func (s *symbolSet) add(sym knowledge.Symbol) {
	if sym.Name == "" || s.seen[sym.ID] {
		return
	}
	s.seen[sym.ID] = true
	s.symbols = append(s.symbols, sym)
}

// buildAllSymbols derives the symbol list for every module, in module
// order. When fan is non-nil, symbols of modules whose fan-in meets
// threshold carry their docstring summaries; all other symbols stay
// summary-free to keep the document compact.
func buildAllSymbols(modules []knowledge.Module, sources []relate.Source, fan map[string]knowledge.FanStats, threshold int) []knowledge.Symbol {
	set := &symbolSet{
		symbols: []knowledge.Symbol{},
		seen:    make(map[string]bool, len(modules)*4),
	}
	for i := range modules {
		withSummaries := false
		if fan != nil {
			if fs, ok := fan[modules[i].ID]; ok && fs.FanIn >= threshold {
				withSummaries = true
			}
		}
		moduleSymbols(set, modules[i].ID, sources[i].Definitions, withSummaries)
	}
	return set.symbols
}

// moduleSymbols maps one file's definitions onto graph symbols:
// functions and ASP subroutines become functions, classes and C
// structs become classes with their methods qualified "Class.method",
// interfaces become interfaces. Namespaces, typedefs, and plain
// variables produce no symbols.
func moduleSymbols(set *symbolSet, moduleID string, defs *ast.Definitions, withSummaries bool) {
	if defs == nil {
		return
	}

	for _, fn := range defs.Functions {
		set.add(functionSymbol(moduleID, fn, withSummaries))
	}
	for _, sub := range defs.Subroutines {
		set.add(functionSymbol(moduleID, sub, withSummaries))
	}

	for _, cls := range defs.Classes {
		set.add(typeSymbol(moduleID, cls.Name, knowledge.SymbolClass))
		for _, m := range cls.Methods {
			if m.Name == "" {
				continue
			}
			set.add(methodSymbol(moduleID, cls.Name, m, withSummaries))
		}
	}
	for _, st := range defs.Structs {
		set.add(typeSymbol(moduleID, st.Name, knowledge.SymbolClass))
	}
	for _, iface := range defs.Interfaces {
		set.add(typeSymbol(moduleID, iface.Name, knowledge.SymbolInterface))
	}
}

func functionSymbol(moduleID string, fn ast.Function, withSummary bool) knowledge.Symbol {
	exported := isExportedName(fn.Name)
	sym := knowledge.Symbol{
		ID:         knowledge.SymbolID(moduleID, fn.Name),
		ModuleID:   moduleID,
		Name:       fn.Name,
		Kind:       knowledge.SymbolFunction,
		IsExported: exported,
		Signature:  signature(fn.Name, fn.Parameters),
		Visibility: visibilityFor(exported),
	}
	if withSummary {
		sym.Summary = summaryLine(fn.Docstring)
	}
	return sym
}

// methodSymbol builds a "Class.method" symbol. Methods are never part
// of the module's export surface; visibility still follows the name.
func methodSymbol(moduleID, className string, m ast.Function, withSummary bool) knowledge.Symbol {
	name := className + "." + m.Name
	sym := knowledge.Symbol{
		ID:         knowledge.SymbolID(moduleID, name),
		ModuleID:   moduleID,
		Name:       name,
		Kind:       knowledge.SymbolMethod,
		IsExported: false,
		Signature:  signature(name, m.Parameters),
		Visibility: visibilityFor(isExportedName(m.Name)),
	}
	if withSummary {
		sym.Summary = summaryLine(m.Docstring)
	}
	return sym
}

func typeSymbol(moduleID, name string, kind knowledge.SymbolKind) knowledge.Symbol {
	exported := isExportedName(name)
	return knowledge.Symbol{
		ID:         knowledge.SymbolID(moduleID, name),
		ModuleID:   moduleID,
		Name:       name,
		Kind:       kind,
		IsExported: exported,
		Signature:  name,
		Visibility: visibilityFor(exported),
	}
}

// isExportedName applies the cross-language convention the normalizers
// leave us with: a leading underscore means private.
func isExportedName(name string) bool {
	return name != "" && !strings.HasPrefix(name, "_")
}

func visibilityFor(exported bool) string {
	if exported {
		return knowledge.VisibilityPublic
	}
	return knowledge.VisibilityPrivate
}

// signature renders "name(params)". The normalizers disagree about
// whether the parameter text includes parentheses; both shapes end up
// with exactly one pair.
func signature(name, params string) string {
	params = strings.TrimSpace(params)
	if params == "" {
		return name + "()"
	}
	if strings.HasPrefix(params, "(") {
		return name + params
	}
	return name + "(" + params + ")"
}

// summaryLine reduces a docstring to its first non-empty line.
func summaryLine(doc string) string {
	for _, line := range strings.Split(doc, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}
