package scripts_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/apitree/internal/runtime"
	"github.com/jward/apitree/scripts"
)

func eval(t *testing.T, expr string, sym runtime.Symbol) bool {
	t.Helper()
	rt := runtime.NewRuntime(nil, runtime.WithRuntimeFS(scripts.FS))
	got, err := rt.Eval(context.Background(), "import naming\n"+expr, sym)
	require.NoError(t, err, expr)
	return got
}

func TestNaming_IsDunder(t *testing.T) {
	t.Parallel()
	assert.True(t, eval(t, `naming.is_dunder(name)`, runtime.Symbol{Name: "__all__"}))
	assert.False(t, eval(t, `naming.is_dunder(name)`, runtime.Symbol{Name: "____"}))
	assert.False(t, eval(t, `naming.is_dunder(name)`, runtime.Symbol{Name: "_private"}))
}

func TestNaming_IsTestName(t *testing.T) {
	t.Parallel()
	for _, name := range []string{"test_models", "models_test", "tests", "conftest"} {
		assert.True(t, eval(t, `naming.is_test_name(name)`, runtime.Symbol{Name: name}), name)
	}
	assert.False(t, eval(t, `naming.is_test_name(name)`, runtime.Symbol{Name: "testing"}))
}

func TestNaming_IsGenerated(t *testing.T) {
	t.Parallel()
	assert.True(t, eval(t, `naming.is_generated(qualname)`, runtime.Symbol{QualName: "shop.api_pb2"}))
	assert.True(t, eval(t, `naming.is_generated(qualname)`, runtime.Symbol{QualName: "shop.api_pb2.Order"}))
	assert.False(t, eval(t, `naming.is_generated(qualname)`, runtime.Symbol{QualName: "shop.pb2"}))
}

func TestNaming_InModule(t *testing.T) {
	t.Parallel()
	assert.True(t, eval(t, `naming.in_module(qualname, "shop.legacy")`, runtime.Symbol{QualName: "shop.legacy"}))
	assert.True(t, eval(t, `naming.in_module(qualname, "shop.legacy")`, runtime.Symbol{QualName: "shop.legacy.Order"}))
	assert.False(t, eval(t, `naming.in_module(qualname, "shop.legacy")`, runtime.Symbol{QualName: "shop.legacy_v2"}))
}
