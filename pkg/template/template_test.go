package template

import (
	"testing"

	"github.com/wflowhq/engine/pkg/models"
)

func TestResolveString_SimpleSubstitution(t *testing.T) {
	ctx := models.NewExecutionContext(map[string]interface{}{
		"email": "jane@example.com",
	})
	ctx.SetNodeOutput("node1", map[string]interface{}{"greeting": "Hello"})

	e := NewEngine(ctx)

	tests := []struct {
		name     string
		template string
		want     interface{}
	}{
		{"trigger field", "{{trigger.email}}", "jane@example.com"},
		{"node field", "{{node1.greeting}} there", "Hello there"},
		{"multiple refs", "{{node1.greeting}} {{trigger.email}}!", "Hello jane@example.com!"},
		{"no templates", "plain text", "plain text"},
		{"empty string", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.ResolveString(tt.template)
			if got != tt.want {
				t.Errorf("ResolveString(%q) = %v, want %v", tt.template, got, tt.want)
			}
		})
	}
}

func TestResolveString_MissingPathReturnsEmpty(t *testing.T) {
	ctx := models.NewExecutionContext(map[string]interface{}{"email": "jane@example.com"})
	e := NewEngine(ctx)

	got := e.ResolveString("{{trigger.nonexistent}}")
	if got != "" {
		t.Errorf("expected empty string for missing path, got %v", got)
	}

	got = e.ResolveString("prefix {{unknown_node.field}} suffix")
	if got != "prefix  suffix" {
		t.Errorf("expected empty substitution for unknown root, got %q", got)
	}
}

func TestResolveString_PreservesNativeType(t *testing.T) {
	ctx := models.NewExecutionContext(nil)
	ctx.SetNodeOutput("node1", map[string]interface{}{
		"count": 42,
		"ok":    true,
	})
	e := NewEngine(ctx)

	if got := e.ResolveString("{{node1.count}}"); got != 42 {
		t.Errorf("expected int 42, got %v (%T)", got, got)
	}
	if got := e.ResolveString("{{node1.ok}}"); got != true {
		t.Errorf("expected bool true, got %v (%T)", got, got)
	}
}

func TestResolveString_NestedPathsAndIndexing(t *testing.T) {
	ctx := models.NewExecutionContext(nil)
	ctx.SetNodeOutput("node1", map[string]interface{}{
		"user": map[string]interface{}{
			"name": "John",
			"items": []interface{}{
				map[string]interface{}{"id": "a"},
				map[string]interface{}{"id": "b"},
			},
		},
	})
	e := NewEngine(ctx)

	tests := []struct {
		template string
		want     interface{}
	}{
		{"{{node1.user.name}}", "John"},
		{"{{node1.user.items[0].id}}", "a"},
		{"{{node1.user.items[1].id}}", "b"},
	}

	for _, tt := range tests {
		got := e.ResolveString(tt.template)
		if got != tt.want {
			t.Errorf("ResolveString(%q) = %v, want %v", tt.template, got, tt.want)
		}
	}
}

func TestResolveString_OutOfBoundsIndex(t *testing.T) {
	ctx := models.NewExecutionContext(nil)
	ctx.SetNodeOutput("node1", map[string]interface{}{
		"items": []interface{}{"only-one"},
	})
	e := NewEngine(ctx)

	got := e.ResolveString("{{node1.items[5]}}")
	if got != "" {
		t.Errorf("expected empty string for out-of-bounds index, got %v", got)
	}
}

func TestResolveMap_Recursive(t *testing.T) {
	ctx := models.NewExecutionContext(map[string]interface{}{"id": "123"})
	e := NewEngine(ctx)

	config := map[string]interface{}{
		"url": "https://api.example.com/users/{{trigger.id}}",
		"headers": map[string]interface{}{
			"X-User": "{{trigger.id}}",
		},
		"tags": []interface{}{"{{trigger.id}}", "static"},
		"retries": 3,
	}

	resolved := e.ResolveMap(config)

	if resolved["url"] != "https://api.example.com/users/123" {
		t.Errorf("url not resolved: %v", resolved["url"])
	}
	headers := resolved["headers"].(map[string]interface{})
	if headers["X-User"] != "123" {
		t.Errorf("nested map not resolved: %v", headers["X-User"])
	}
	tags := resolved["tags"].([]interface{})
	if tags[0] != "123" || tags[1] != "static" {
		t.Errorf("slice not resolved: %v", tags)
	}
	if resolved["retries"] != 3 {
		t.Errorf("non-string value mutated: %v", resolved["retries"])
	}
}

func TestResolveField_ViaStructReflection(t *testing.T) {
	type profile struct {
		Email string
	}
	ctx := models.NewExecutionContext(nil)
	ctx.SetNodeOutput("node1", profile{Email: "a@b.com"})
	e := NewEngine(ctx)

	got := e.ResolveString("{{node1.Email}}")
	if got != "a@b.com" {
		t.Errorf("expected struct field access to resolve, got %v", got)
	}
}

func TestHasTemplates(t *testing.T) {
	if !HasTemplates("hello {{trigger.x}}") {
		t.Error("expected HasTemplates to find a reference")
	}
	if HasTemplates("plain string") {
		t.Error("expected HasTemplates to report false for plain string")
	}
}

func TestExtractRefs(t *testing.T) {
	refs := ExtractRefs("{{trigger.email}} and {{node1.count}}")
	if len(refs) != 2 || refs[0] != "trigger.email" || refs[1] != "node1.count" {
		t.Errorf("unexpected refs: %v", refs)
	}
}

func TestSplitPath(t *testing.T) {
	tests := []struct {
		path string
		want []string
	}{
		{"a.b.c", []string{"a", "b", "c"}},
		{"items[0].name", []string{"items[0]", "name"}},
		{"items[0][1]", []string{"items[0][1]"}},
		{"", nil},
	}

	for _, tt := range tests {
		got := splitPath(tt.path)
		if len(got) != len(tt.want) {
			t.Errorf("splitPath(%q) = %v, want %v", tt.path, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("splitPath(%q)[%d] = %v, want %v", tt.path, i, got[i], tt.want[i])
			}
		}
	}
}
