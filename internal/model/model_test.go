package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTableNames(t *testing.T) {
	tests := []struct {
		name     string
		model    interface{ TableName() string }
		expected string
	}{
		{"JournalInfo", &JournalInfo{}, "journal_infos"},
		{"Session", &Session{}, "sessions"},
		{"Generation", &Generation{}, "generations"},
		{"GenerationPath", &GenerationPath{}, "generation_paths"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.model.TableName())
		})
	}
}

func TestSQLiteModelsSkipGeometry(t *testing.T) {
	assert.Len(t, DatabaseModelsSQLite, len(DatabaseModels)-1)
	for _, m := range DatabaseModelsSQLite {
		_, isPath := m.(*GenerationPath)
		assert.False(t, isPath)
	}
}
