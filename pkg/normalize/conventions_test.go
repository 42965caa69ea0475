package normalize

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/taskboard/pkg/models"
)

func TestDefaultConventions_CoverEveryField(t *testing.T) {
	conv := DefaultConventions()
	for _, f := range models.Fields {
		assert.NotEmpty(t, conv.Names(f), "field %s has no conventional names", f)
	}
	assert.Nil(t, conv.Names(models.Field("bogus")))
}

func TestConventions_RelationProperty(t *testing.T) {
	conv := DefaultConventions()
	assert.Equal(t, "Project", conv.RelationProperty(models.FieldProject, nil))
	assert.Equal(t, "Sprint", conv.RelationProperty(models.FieldSprint, models.PropertyMapping{}))
	assert.Equal(t, "Epic", conv.RelationProperty(models.FieldProject, models.PropertyMapping{models.FieldProject: "Epic"}))
}

func TestLoadConventions(t *testing.T) {
	t.Run("empty path returns defaults", func(t *testing.T) {
		conv, err := LoadConventions("")
		require.NoError(t, err)
		assert.Equal(t, DefaultConventions(), conv)
	})

	t.Run("overrides replace only listed fields", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "conventions.yaml")
		yaml := "status:\n  - Stage\n  - Status\nassignee:\n  - Responsible\n"
		require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

		conv, err := LoadConventions(path)
		require.NoError(t, err)
		assert.Equal(t, []string{"Stage", "Status"}, conv.Status)
		assert.Equal(t, []string{"Responsible"}, conv.Assignee)
		assert.Equal(t, DefaultConventions().Title, conv.Title)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConventions(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("status: [unclosed"), 0o600))
		_, err := LoadConventions(path)
		assert.Error(t, err)
	})
}
