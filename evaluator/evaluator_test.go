package evaluator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"reflect"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/petermattis/goid"

	"github.com/chazu/replkit/completion"
	"github.com/chazu/replkit/reference"
	"github.com/chazu/replkit/script"
)

// Shared host modules. The static module has an image on disk; the
// dynamic one only exists in memory.
var (
	staticModule  *reference.Module
	dynamicModule *reference.Module
	threadModule  *reference.Module
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "replkit-evaluator")
	if err != nil {
		fmt.Fprintf(os.Stderr, "temp dir: %v\n", err)
		os.Exit(1)
	}

	staticModule = &reference.Module{
		Path: "example.com/StaticExportsClass",
		Symbols: map[string]reflect.Value{
			"TestFunction": reflect.ValueOf(func(s string) int { return len(s) }),
		},
	}
	staticModule.Image = reference.ImagePath(dir, staticModule.Path)
	if err := reference.WriteImage(staticModule, staticModule.Image); err != nil {
		fmt.Fprintf(os.Stderr, "write image: %v\n", err)
		os.Exit(1)
	}

	dynamicModule = &reference.Module{
		Path: "example.com/dynamic",
		Name: "DynamicExportsClass",
		Symbols: map[string]reflect.Value{
			"TestFunction": reflect.ValueOf(func(s string) int { return len(s) * 2 }),
		},
	}
	threadModule = &reference.Module{
		Path: "example.com/thread",
		Symbols: map[string]reflect.Value{
			"ID": reflect.ValueOf(goid.Get),
		},
	}

	code := m.Run()
	os.RemoveAll(dir)
	os.Exit(code)
}

func testOptions() Options {
	return Options{
		Stdlib:  true,
		Modules: []*reference.Module{staticModule, dynamicModule, threadModule},
	}
}

func newBasic(t *testing.T) *Basic {
	t.Helper()
	e, err := NewBasic(testOptions())
	if err != nil {
		t.Fatalf("NewBasic: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return e
}

func newFull(t *testing.T) *Full {
	t.Helper()
	e, err := NewFull(testOptions())
	if err != nil {
		t.Fatalf("NewFull: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return e
}

// evaluator is what both variants share.
type evaluator interface {
	Evaluate(source string) (*script.Result, error)
	Imports() []string
	Close() error
}

func variants(t *testing.T) map[string]evaluator {
	return map[string]evaluator{"basic": newBasic(t), "full": newFull(t)}
}

func mustEvaluate(t *testing.T, e evaluator, src string) *script.Result {
	t.Helper()
	r, err := e.Evaluate(src)
	if err != nil {
		t.Fatalf("Evaluate(%q) returned error: %v", src, err)
	}
	return r
}

// ---------------------------------------------------------------------------
// Evaluate
// ---------------------------------------------------------------------------

func TestEvaluate_Values(t *testing.T) {
	for name, e := range variants(t) {
		t.Run(name, func(t *testing.T) {
			tests := []struct {
				src  string
				want any
			}{
				{"6 + 4", 10},
				{"48 * 3", 144},
				{`"Hello" + " " + "World"`, "Hello World"},
			}
			for _, tt := range tests {
				r := mustEvaluate(t, e, tt.src)
				if r.Value != tt.want {
					t.Errorf("Evaluate(%q) = %v, want %v", tt.src, r.Value, tt.want)
				}
				if r.Fault != nil || len(r.Diagnostics) != 0 {
					t.Errorf("Evaluate(%q): fault = %v, diagnostics = %v", tt.src, r.Fault, r.Diagnostics)
				}
			}
		})
	}
}

func TestEvaluate_Fault(t *testing.T) {
	for name, e := range variants(t) {
		t.Run(name, func(t *testing.T) {
			r := mustEvaluate(t, e, `panic("boom")`)
			if r.Fault == nil {
				t.Fatal("expected a fault")
			}
			if r.Value != nil || len(r.Diagnostics) != 0 {
				t.Errorf("value = %v, diagnostics = %v", r.Value, r.Diagnostics)
			}
		})
	}
}

func TestEvaluate_CompileErrorLeavesChain(t *testing.T) {
	for name, e := range variants(t) {
		t.Run(name, func(t *testing.T) {
			mustEvaluate(t, e, "y := 2")
			for _, src := range []string{"}", "undefinedThing + 1"} {
				r := mustEvaluate(t, e, src)
				if !script.HasErrors(r.Diagnostics) || r.Value != nil || r.Fault != nil {
					t.Errorf("Evaluate(%q) = %+v, want diagnostics only", src, r)
				}
			}
			if r := mustEvaluate(t, e, "y * 21"); r.Value != 42 {
				t.Errorf("y * 21 = %v, want 42", r.Value)
			}
		})
	}
}

func TestEvaluate_ImportsAccumulate(t *testing.T) {
	e := newBasic(t)
	mustEvaluate(t, e, `import "strings"`)
	mustEvaluate(t, e, "import (\n\t\"math\"\n\t\"strings\"\n)")
	mustEvaluate(t, e, `import "strings"`)

	got := e.Imports()
	if len(got) != 2 || got[0] != "math" || got[1] != "strings" {
		t.Errorf("Imports = %v, want [math strings]", got)
	}
	if r := mustEvaluate(t, e, `strings.Repeat("a", 3)`); r.Value != "aaa" {
		t.Errorf("Repeat = %v", r.Value)
	}
}

func TestEvaluate_ImportAndUseInOneFragment(t *testing.T) {
	for name, e := range variants(t) {
		t.Run(name, func(t *testing.T) {
			r := mustEvaluate(t, e, "import \"strings\"\nstrings.ToUpper(\"a\")")
			if r.Value != "A" {
				t.Errorf("ToUpper = %v (%v), want A", r.Value, r.Diagnostics)
			}
			if got := e.Imports(); !slices.Contains(got, "strings") {
				t.Errorf("Imports = %v, want strings", got)
			}

			r = mustEvaluate(t, e, "import \"example.com/StaticExportsClass\"\nStaticExportsClass.TestFunction(\"Hello\")")
			if r.Value != 5 {
				t.Errorf("TestFunction = %v (%v), want 5", r.Value, r.Diagnostics)
			}
		})
	}
}

func TestEvaluate_FailedCompileLeavesNoState(t *testing.T) {
	for name, e := range variants(t) {
		t.Run(name, func(t *testing.T) {
			if r := mustEvaluate(t, e, "x := 41\nundefinedThing"); !script.HasErrors(r.Diagnostics) {
				t.Fatalf("Evaluate = %+v, want diagnostics", r)
			}
			r := mustEvaluate(t, e, "x")
			if r.Outcome() != script.OutcomeDiagnostics {
				t.Fatalf("x from a failed fragment evaluated to %v", r.Value)
			}
			if !strings.Contains(r.Diagnostics[0].Message, "undefined: x") {
				t.Errorf("diagnostics = %v, want undefined: x", r.Diagnostics)
			}
		})
	}
}

func TestEvaluate_DeclarationsHaveNoValue(t *testing.T) {
	for name, e := range variants(t) {
		t.Run(name, func(t *testing.T) {
			for _, src := range []string{`import "fmt"`, "func g() int { return 1 }", "type T struct{}", "var z = 3"} {
				r := mustEvaluate(t, e, src)
				if r.Outcome() != script.OutcomeValue || r.Value != nil {
					t.Errorf("Evaluate(%q) = %v %#v (%v), want no value", src, r.Outcome(), r.Value, r.Diagnostics)
				}
			}
		})
	}
}

func TestEvaluate_StaticModule(t *testing.T) {
	for name, e := range variants(t) {
		t.Run(name, func(t *testing.T) {
			mustEvaluate(t, e, `import "example.com/StaticExportsClass"`)
			for arg, want := range map[string]int{"Hello": 5, "Hello World": 11, "": 0} {
				r := mustEvaluate(t, e, fmt.Sprintf("StaticExportsClass.TestFunction(%q)", arg))
				if r.Value != want {
					t.Errorf("TestFunction(%q) = %v (%v), want %d", arg, r.Value, r.Diagnostics, want)
				}
			}
		})
	}
}

func TestEvaluate_DynamicModule(t *testing.T) {
	e := newBasic(t)
	mustEvaluate(t, e, `import "example.com/dynamic"`)
	if r := mustEvaluate(t, e, `DynamicExportsClass.TestFunction("abc")`); r.Value != 6 {
		t.Errorf("TestFunction = %v (%v), want 6", r.Value, r.Diagnostics)
	}
}

func TestEvaluate_RunsOnCallerGoroutine(t *testing.T) {
	e := newBasic(t)
	mustEvaluate(t, e, `import "example.com/thread"`)
	r := mustEvaluate(t, e, "thread.ID()")
	if r.Value != goid.Get() {
		t.Errorf("fragment ran on goroutine %v, want caller %d", r.Value, goid.Get())
	}
}

// ---------------------------------------------------------------------------
// EvaluateAsync
// ---------------------------------------------------------------------------

func TestEvaluateAsync(t *testing.T) {
	e := newBasic(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r, err := e.EvaluateAsync(ctx, "20 + 22").Wait(ctx)
	if err != nil {
		t.Fatalf("EvaluateAsync: %v", err)
	}
	if r.Value != 42 {
		t.Errorf("Value = %v, want 42", r.Value)
	}
}

func TestEvaluateAsync_Cancelled(t *testing.T) {
	e := newBasic(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.EvaluateAsync(ctx, "1").Wait(context.Background())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if r := mustEvaluate(t, e, "2"); r.Value != 2 {
		t.Errorf("evaluator unusable after cancellation: %v", r.Value)
	}
}

func TestEvaluateAsync_InterruptedDuringRun(t *testing.T) {
	e := newBasic(t)
	mustEvaluate(t, e, "n := 0")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	r, err := e.EvaluateAsync(ctx, "for i := 0; i < 300000000; i++ { n++ }").Wait(context.Background())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("EvaluateAsync = %+v, %v; want DeadlineExceeded", r, err)
	}
	if got := len(e.History()); got != 1 {
		t.Errorf("History has %d generations, want 1", got)
	}

	first := mustEvaluate(t, e, "n")
	time.Sleep(100 * time.Millisecond)
	second := mustEvaluate(t, e, "n")
	if first.Value != second.Value {
		t.Errorf("n moved from %v to %v after the run was interrupted", first.Value, second.Value)
	}
	if got := len(e.History()); got != 3 {
		t.Errorf("History has %d generations, want 3", got)
	}
}

func TestEvaluateAsync_Serialized(t *testing.T) {
	e := newBasic(t)
	mustEvaluate(t, e, "n := 0")

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.EvaluateAsync(context.Background(), "n++").Wait(context.Background())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Errorf("EvaluateAsync: %v", err)
		}
	}

	if r := mustEvaluate(t, e, "n"); r.Value != 10 {
		t.Errorf("n = %v, want 10", r.Value)
	}
}

// ---------------------------------------------------------------------------
// Full mode
// ---------------------------------------------------------------------------

func TestFull_CompletionsFollowImports(t *testing.T) {
	e := newFull(t)
	ctx := context.Background()
	text := "StaticExportsCla"

	items, err := e.Completions(ctx, text, len(text), completion.Insertion('a'))
	if err != nil {
		t.Fatalf("Completions: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("completions before import = %v", items)
	}

	mustEvaluate(t, e, `import "example.com/StaticExportsClass"`)
	items, err = e.Completions(ctx, text, len(text), completion.Insertion('a'))
	if err != nil {
		t.Fatalf("Completions: %v", err)
	}
	if len(items) == 0 || items[0].DisplayText != "StaticExportsClass" {
		t.Fatalf("completions after import = %v", items)
	}

	member := "StaticExportsClass.Test"
	items, err = e.Completions(ctx, member, len(member), completion.Insertion('t'))
	if err != nil || len(items) == 0 || items[0].DisplayText != "TestFunction" {
		t.Fatalf("member completions = %v, %v", items, err)
	}
}

func TestFull_ApplyAndEvaluate(t *testing.T) {
	e := newFull(t)
	ctx := context.Background()
	mustEvaluate(t, e, `import "strings"`)

	text := "strings.ToUpp"
	items, err := e.Completions(ctx, text, len(text), completion.Insertion('p'))
	if err != nil || len(items) == 0 {
		t.Fatalf("Completions = %v, %v", items, err)
	}
	if items[0].DisplayText != "ToUpper" {
		t.Fatalf("top completion = %q", items[0].DisplayText)
	}

	newText, caret, err := e.ApplyCompletion(ctx, text, items[0], len(text), '(')
	if err != nil {
		t.Fatalf("ApplyCompletion: %v", err)
	}
	if newText != "strings.ToUpper()" || caret != len("strings.ToUpper(") {
		t.Fatalf("ApplyCompletion = %q, %d", newText, caret)
	}

	src := newText[:caret] + `"go"` + newText[caret:]
	if r := mustEvaluate(t, e, src); r.Value != "GO" {
		t.Errorf("Evaluate(%q) = %v (%v)", src, r.Value, r.Diagnostics)
	}
}

func TestFull_CompletionsDoNotChangeImports(t *testing.T) {
	e := newFull(t)
	ctx := context.Background()
	text := "import \"os\"\nos.Ge"
	if _, err := e.Completions(ctx, text, len(text), completion.Insertion('e')); err != nil {
		t.Fatalf("Completions: %v", err)
	}
	if got := e.ModelImports(); len(got) != 0 {
		t.Errorf("model imports = %v after a completion query", got)
	}
	if got := e.Imports(); len(got) != 0 {
		t.Errorf("chain imports = %v after a completion query", got)
	}
}

func TestFull_DeclarationsComplete(t *testing.T) {
	e := newFull(t)
	mustEvaluate(t, e, "func square(n int) int { return n * n }")

	items, err := e.Completions(context.Background(), "squ", 3, completion.Insertion('u'))
	if err != nil || len(items) == 0 || items[0].DisplayText != "square" {
		t.Fatalf("Completions = %v, %v", items, err)
	}
	if r := mustEvaluate(t, e, "square(7)"); r.Value != 49 {
		t.Errorf("square(7) = %v (%v)", r.Value, r.Diagnostics)
	}
}

func TestFull_Describe(t *testing.T) {
	e := newFull(t)
	mustEvaluate(t, e, `import "example.com/StaticExportsClass"`)

	info, err := e.Describe(context.Background(), `StaticExportsClass.TestFunction("x")`, 22)
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if info == nil || info.Name != "TestFunction" || info.Detail != "func(string) int" {
		t.Errorf("Describe = %+v", info)
	}
}

// ---------------------------------------------------------------------------
// Close
// ---------------------------------------------------------------------------

func TestClose(t *testing.T) {
	for _, ctor := range []func() (evaluator, error){
		func() (evaluator, error) { return NewBasic(testOptions()) },
		func() (evaluator, error) { return NewFull(testOptions()) },
	} {
		e, err := ctor()
		if err != nil {
			t.Fatal(err)
		}
		if err := e.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
		if err := e.Close(); !errors.Is(err, ErrClosed) {
			t.Errorf("second Close = %v, want ErrClosed", err)
		}
		if _, err := e.Evaluate("1"); !errors.Is(err, ErrClosed) {
			t.Errorf("Evaluate after Close = %v, want ErrClosed", err)
		}
	}

	f, err := NewFull(testOptions())
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	if _, err := f.Completions(context.Background(), "x", 1, completion.Insertion('x')); !errors.Is(err, ErrClosed) {
		t.Errorf("Completions after Close = %v, want ErrClosed", err)
	}
}

func TestWithImages_CopiesModules(t *testing.T) {
	dir := t.TempDir()
	mods := withImages([]*reference.Module{staticModule, dynamicModule}, dir)

	if mods[0] != staticModule {
		t.Error("a module that names its image should be kept")
	}
	if mods[1] == dynamicModule {
		t.Fatal("a module without an image should be copied")
	}
	if want := reference.ImagePath(dir, dynamicModule.Path); mods[1].Image != want {
		t.Errorf("Image = %q, want %q", mods[1].Image, want)
	}
	if dynamicModule.Image != "" {
		t.Error("withImages must not modify the shared module")
	}
	if got := withImages(mods, ""); &got[0] != &mods[0] {
		t.Error("an empty dir should return modules unchanged")
	}
}

func TestFull_ImageDirWithoutImages(t *testing.T) {
	opts := testOptions()
	opts.ImageDir = t.TempDir()
	e, err := NewFull(opts)
	if err != nil {
		t.Fatalf("NewFull: %v", err)
	}
	defer e.Close()

	r, err := e.Evaluate(`import "example.com/dynamic"` + "\n" + `DynamicExportsClass.TestFunction("ab")`)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if r.Value != 4 {
		t.Errorf("value = %v, want 4", r.Value)
	}
}
