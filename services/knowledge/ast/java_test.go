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
	"testing"
)

const javaSample = `import org.springframework.web.bind.annotation.RestController;
import java.util.List;

@RestController
public class OrderController {
    private final OrderRepository repository;

    public List findAll() {
        return repository.findAll();
    }

    public void delete(String id) {
        repository.deleteById(id);
    }
}

public interface OrderRepository {
    List findAll();
    void deleteById(String id);
}
`

func TestJavaNormalizer_Normalize(t *testing.T) {
	n := NewJavaNormalizer()
	defs, err := n.Normalize(context.Background(), "src/main/java/OrderController.java", []byte(javaSample))
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}

	t.Run("imports", func(t *testing.T) {
		if len(defs.Imports) != 2 {
			t.Fatalf("imports = %v, want 2", defs.Imports)
		}
		if !strings.Contains(defs.Imports[0], "springframework") {
			t.Errorf("imports[0] = %q", defs.Imports[0])
		}
	})

	t.Run("class with annotations, methods, fields", func(t *testing.T) {
		if len(defs.Classes) != 1 {
			t.Fatalf("classes = %+v, want 1", defs.Classes)
		}
		cls := defs.Classes[0]
		if cls.Name != "OrderController" {
			t.Errorf("class name = %q", cls.Name)
		}
		if len(cls.Annotations) != 1 || cls.Annotations[0] != "@RestController" {
			t.Errorf("annotations = %v, want [@RestController]", cls.Annotations)
		}
		if len(cls.Methods) != 2 {
			t.Fatalf("methods = %+v, want 2", cls.Methods)
		}
		if cls.Methods[0].Name != "findAll" || cls.Methods[0].ReturnType != "List" {
			t.Errorf("methods[0] = %+v", cls.Methods[0])
		}
		if cls.Methods[1].ReturnType != "void" {
			t.Errorf("methods[1].ReturnType = %q, want void", cls.Methods[1].ReturnType)
		}
		if len(cls.Fields) != 1 || !strings.Contains(cls.Fields[0], "repository") {
			t.Errorf("fields = %v", cls.Fields)
		}
	})

	t.Run("interface", func(t *testing.T) {
		if len(defs.Interfaces) != 1 {
			t.Fatalf("interfaces = %+v, want 1", defs.Interfaces)
		}
		iface := defs.Interfaces[0]
		if iface.Name != "OrderRepository" {
			t.Errorf("interface name = %q", iface.Name)
		}
		if len(iface.Methods) != 2 {
			t.Errorf("interface methods = %+v, want 2", iface.Methods)
		}
	})
}

func TestCNormalizer_Normalize(t *testing.T) {
	source := `#include <stdio.h>
#include "util.h"

struct point {
    int x;
    int y;
};

typedef unsigned int uid_t;

int main(int argc, char **argv) {
    return run(argc);
}
`
	n := NewCNormalizer()
	defs, err := n.Normalize(context.Background(), "src/main.c", []byte(source))
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}

	if len(defs.Includes) != 2 {
		t.Errorf("includes = %v, want 2", defs.Includes)
	}
	if len(defs.Structs) != 1 || defs.Structs[0].Name != "point" {
		t.Errorf("structs = %+v, want point", defs.Structs)
	}
	if len(defs.Typedefs) != 1 || defs.Typedefs[0].Name != "uid_t" {
		t.Errorf("typedefs = %+v, want uid_t", defs.Typedefs)
	}
	if len(defs.Functions) != 1 || defs.Functions[0].Name != "main" {
		t.Fatalf("functions = %+v, want main", defs.Functions)
	}
	if !strings.Contains(defs.Functions[0].Parameters, "argc") {
		t.Errorf("parameters = %q", defs.Functions[0].Parameters)
	}
}

func TestCPPNormalizer_Normalize(t *testing.T) {
	source := `#include <vector>

namespace billing {

class Invoice {
public:
    void addLine(int amount) {
        total += amount;
    }
private:
    int total;
};

}

int freeStanding() {
    return 1;
}
`
	n := NewCPPNormalizer()
	defs, err := n.Normalize(context.Background(), "src/invoice.cpp", []byte(source))
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}

	if len(defs.Includes) != 1 {
		t.Errorf("includes = %v, want 1", defs.Includes)
	}
	if len(defs.Namespaces) != 1 || defs.Namespaces[0].Name != "billing" {
		t.Errorf("namespaces = %+v, want billing", defs.Namespaces)
	}
	if len(defs.Classes) != 1 || defs.Classes[0].Name != "Invoice" {
		t.Fatalf("classes = %+v, want Invoice", defs.Classes)
	}
	if len(defs.Classes[0].Methods) != 1 || defs.Classes[0].Methods[0].Name != "addLine" {
		t.Errorf("methods = %+v, want addLine", defs.Classes[0].Methods)
	}
	if len(defs.Functions) != 1 || defs.Functions[0].Name != "freeStanding" {
		t.Errorf("functions = %+v, want only freeStanding (methods stay on the class)", defs.Functions)
	}
}

func TestCSharpNormalizer_Normalize(t *testing.T) {
	source := `using System;
using Microsoft.AspNetCore.Mvc;

[ApiController]
public class OrdersController
{
    public string Name { get; set; }

    public void Cancel(string id)
    {
        repository.Delete(id);
    }
}

public interface IOrderStore
{
    void Save(string id);
}
`
	n := NewCSharpNormalizer()
	defs, err := n.Normalize(context.Background(), "Controllers/OrdersController.cs", []byte(source))
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}

	if len(defs.Imports) != 2 {
		t.Errorf("imports = %v, want 2", defs.Imports)
	}
	if len(defs.Classes) != 1 {
		t.Fatalf("classes = %+v, want 1", defs.Classes)
	}
	cls := defs.Classes[0]
	if cls.Name != "OrdersController" {
		t.Errorf("class name = %q", cls.Name)
	}
	if len(cls.Annotations) != 1 || cls.Annotations[0] != "[ApiController]" {
		t.Errorf("annotations = %v, want [[ApiController]]", cls.Annotations)
	}
	if len(cls.Properties) != 1 || cls.Properties[0] != "Name" {
		t.Errorf("properties = %v, want [Name]", cls.Properties)
	}
	if len(cls.Methods) != 1 || cls.Methods[0].Name != "Cancel" {
		t.Errorf("methods = %+v, want Cancel", cls.Methods)
	}
	if len(defs.Interfaces) != 1 || defs.Interfaces[0].Name != "IOrderStore" {
		t.Errorf("interfaces = %+v, want IOrderStore", defs.Interfaces)
	}
}

func TestASPNormalizer_Normalize(t *testing.T) {
	source := `<!-- #include file="includes/header.asp" -->
<!--#include virtual="/lib/db.asp"-->
<%
Function GetOrder(id)
    GetOrder = LookupOrder(id)
End Function

Sub RenderPage(title)
    Response.Write title
End Sub
%>
`
	n := NewASPNormalizer()
	defs, err := n.Normalize(context.Background(), "orders.asp", []byte(source))
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}

	if len(defs.Functions) != 1 || defs.Functions[0].Name != "GetOrder" {
		t.Errorf("functions = %+v, want GetOrder", defs.Functions)
	}
	if len(defs.Subroutines) != 1 || defs.Subroutines[0].Name != "RenderPage" {
		t.Errorf("subroutines = %+v, want RenderPage", defs.Subroutines)
	}
	if len(defs.Includes) != 2 {
		t.Fatalf("includes = %v, want 2", defs.Includes)
	}
	if defs.Includes[0] != "includes/header.asp" || defs.Includes[1] != "/lib/db.asp" {
		t.Errorf("includes = %v, want paths only", defs.Includes)
	}
}
