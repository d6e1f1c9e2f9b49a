package registry

import (
	"context"
	"log/slog"
	"testing"

	"github.com/mindweld/forgeflow/pkg/models"
	"github.com/mindweld/forgeflow/pkg/protocol"
	"github.com/mindweld/forgeflow/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDefaultRegistry() *Registry {
	r := NewRegistry(slog.Default())
	r.RegisterDefaultSteps(testutil.NewStubAIClient("ok"), testutil.NewStubIngestor())

	return r
}

func TestRegistry_CreateStep(t *testing.T) {
	r := newDefaultRegistry()

	for _, name := range []models.StepName{
		models.StepResearch,
		models.StepArchitect,
		models.StepImplement,
		models.StepDebug,
		models.StepMemoryIngestion,
	} {
		t.Run(string(name), func(t *testing.T) {
			require.True(t, r.HasStep(name))

			step, err := r.CreateStep(context.Background(), name, nil)
			require.NoError(t, err)
			assert.Equal(t, name, step.Name())
		})
	}
}

func TestRegistry_CreateStep_Unknown(t *testing.T) {
	r := newDefaultRegistry()

	_, err := r.CreateStep(context.Background(), models.StepName("profiling"), nil)
	require.Error(t, err)

	var notRegistered *ErrStepNotRegistered
	require.ErrorAs(t, err, &notRegistered)
	assert.Equal(t, models.StepName("profiling"), notRegistered.Step)
}

func TestRegistry_ValidateParameters(t *testing.T) {
	r := newDefaultRegistry()

	err := r.ValidateParameters(models.StepResearch, map[string]any{"max_results": 5})
	assert.NoError(t, err)

	err = r.ValidateParameters(models.StepResearch, map[string]any{"max_results": "five"})
	assert.Error(t, err)

	// Unknown steps validate trivially; the miss surfaces at execution time.
	err = r.ValidateParameters(models.StepName("profiling"), map[string]any{"whatever": 1})
	assert.NoError(t, err)
}

func TestRegistry_ValidateParameters_NilParameters(t *testing.T) {
	r := newDefaultRegistry()

	// Submissions without a parameters map must validate against every
	// registered step schema.
	for _, name := range []models.StepName{
		models.StepResearch,
		models.StepArchitect,
		models.StepImplement,
		models.StepDebug,
		models.StepMemoryIngestion,
	} {
		assert.NoError(t, r.ValidateParameters(name, nil), string(name))
	}

	assert.NoError(t, r.ValidateParameters(models.StepResearch, map[string]any{}))
}

func TestRegistry_RegisterStep_Replaces(t *testing.T) {
	r := NewRegistry(slog.Default())

	first := &namedFactory{id: "research", name: "First"}
	second := &namedFactory{id: "research", name: "Second"}

	r.RegisterStep(first)
	r.RegisterStep(second)

	assert.Equal(t, []models.StepName{models.StepResearch}, r.AvailableSteps())

	step, err := r.CreateStep(context.Background(), models.StepResearch, nil)
	require.NoError(t, err)
	assert.Equal(t, "Second", step.(*namedStep).label)
}

type namedFactory struct {
	id   string
	name string
}

func (f *namedFactory) Create(_ context.Context, _ map[string]any) (protocol.StepExecutor, error) {
	return &namedStep{name: models.StepName(f.id), label: f.name}, nil
}

func (f *namedFactory) ID() string { return f.id }

func (f *namedFactory) Name() string { return f.name }

func (f *namedFactory) Description() string { return "test factory" }

func (f *namedFactory) Schema() map[string]any {
	return map[string]any{"type": "object"}
}

type namedStep struct {
	name  models.StepName
	label string
}

func (s *namedStep) Name() models.StepName {
	return s.name
}

func (s *namedStep) Run(_ context.Context, _ protocol.StepInput) (map[string]any, error) {
	return map[string]any{"ok": true}, nil
}
