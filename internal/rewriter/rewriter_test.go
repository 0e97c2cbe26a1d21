package rewriter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRewrite_NoReturnNoTrailingExpr_IdentityModuloImports(t *testing.T) {
	src := "int x = 10;\nint y = 20;"
	got := Rewrite(src)
	assert.True(t, strings.HasSuffix(got, src))
	assert.Contains(t, got, "using System;")
}

func TestRewrite_BareReturn_BecomesNoOp(t *testing.T) {
	got := Rewrite("return;")
	assert.NotContains(t, got, "return")
	assert.Contains(t, got, ";")
}

func TestRewrite_ReturnExpr_PrintsAndDropsReturnKeyword(t *testing.T) {
	got := Rewrite("int x = 1; return x + 1;")
	assert.NotContains(t, got, "return")
	assert.Contains(t, got, "Console.WriteLine(x + 1)")
}

func TestRewrite_TrailingExpressionNoSemicolon(t *testing.T) {
	got := Rewrite("2 + 3")
	assert.Contains(t, got, "Console.WriteLine(2 + 3);")
}

func TestRewrite_TrailingExpressionWithSemicolon(t *testing.T) {
	got := Rewrite("var x = 10;\nx;")
	assert.Contains(t, got, "Console.WriteLine(x);")
}

func TestRewrite_DeclarationNotWrapped(t *testing.T) {
	got := Rewrite("int x = 10;")
	assert.NotContains(t, got, "Console.WriteLine")
}

func TestRewrite_ReturnSuppressesTrailingExpressionRule(t *testing.T) {
	got := Rewrite("return 5;\nx")
	// Only the return statement is wrapped, not the dangling "x" after it.
	assert.Equal(t, 1, strings.Count(got, "Console.WriteLine"))
}

func TestRewrite_AwaitInjectsTasksImport(t *testing.T) {
	got := Rewrite("await Task.Delay(10);")
	assert.Contains(t, got, "using System.Threading.Tasks;")
	assert.Contains(t, got, "using System;")
}

func TestRewrite_ExistingSystemUsingNotDuplicated(t *testing.T) {
	got := Rewrite("using System;\nint x = 1;")
	assert.Equal(t, 1, strings.Count(got, "using System;"))
}

func TestRewrite_PreservesCommentsAndWhitespace(t *testing.T) {
	src := "// leading comment\nint x = 10; // trailing\n"
	got := Rewrite(src)
	assert.Contains(t, got, "// leading comment")
	assert.Contains(t, got, "// trailing")
}

func TestRewrite_IfBlockNotWrapped(t *testing.T) {
	got := Rewrite("if (true) { Console.WriteLine(1); }")
	assert.Equal(t, 1, strings.Count(got, "Console.WriteLine"))
}

func TestRewrite_StringLiteralWithSemicolonNotMisparsedAsBoundary(t *testing.T) {
	got := Rewrite(`"a;b"`)
	assert.Contains(t, got, `Console.WriteLine("a;b");`)
}
