package prompts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatTemplate(t *testing.T) {
	tests := []struct {
		name      string
		template  string
		variables map[string]string
		want      string
	}{
		{
			name:      "all variables present",
			template:  "Hello {name}, you ordered {item}.",
			variables: map[string]string{"name": "Ivan", "item": "pizza"},
			want:      "Hello Ivan, you ordered pizza.",
		},
		{
			name:      "missing variable returns raw template",
			template:  "Hello {name}, you ordered {item}.",
			variables: map[string]string{"name": "Ivan"},
			want:      "Hello {name}, you ordered {item}.",
		},
		{
			name:      "no placeholders",
			template:  "Plain text.",
			variables: nil,
			want:      "Plain text.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatTemplate(tt.template, tt.variables))
		})
	}
}

func TestStoreLoadsFiles(t *testing.T) {
	dir := t.TempDir()
	content := "You are an agent for {brand}."
	require.NoError(t, os.WriteFile(filepath.Join(dir, "agent_system.txt"), []byte(content+"\n"), 0o644))

	store := NewStore(dir)

	assert.Equal(t, content, store.Template(AgentSystem))
	assert.Equal(t, "You are an agent for Acme.",
		store.Format(AgentSystem, map[string]string{"brand": "Acme"}))
}

func TestStoreFallsBack(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "missing"))

	assert.NotEmpty(t, store.Template(ClientSystem))
	assert.NotEmpty(t, store.Template(EvaluatorSystem))
}
