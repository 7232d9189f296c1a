package schemas

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jonathan/portfolio-core/internal/portfolio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateDocument_Default(t *testing.T) {
	err := ValidateDocument(portfolio.DefaultJSON())
	assert.NoError(t, err)
}

func TestValidateDocument_Sparse(t *testing.T) {
	err := ValidateDocument([]byte(`{"personal":{"name":"X"}}`))
	assert.NoError(t, err)
}

func TestValidateDocument_NotAnObject(t *testing.T) {
	err := ValidateDocument([]byte(`[1,2,3]`))
	require.Error(t, err)

	validationErr, ok := err.(*ValidationError)
	require.True(t, ok, "error should be ValidationError type")
	assert.Equal(t, "(root)", validationErr.Errors[0].Field)
}

func TestValidateDocument_EntityMissingID(t *testing.T) {
	err := ValidateDocument([]byte(`{"technologies":[{"name":"Go"}]}`))
	require.Error(t, err)

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Greater(t, len(validationErr.Errors), 0)
	assert.Contains(t, err.Error(), "technologies.0")
}

func TestValidateDocument_WrongSectionType(t *testing.T) {
	err := ValidateDocument([]byte(`{"projects":{"id":1},"profilePicture":42}`))
	require.Error(t, err)

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Len(t, validationErr.Errors, 2)
}

func TestValidateDocument_Malformed(t *testing.T) {
	err := ValidateDocument([]byte(`{"personal":`))
	require.Error(t, err)

	var loadErr *SchemaLoadError
	assert.ErrorAs(t, err, &loadErr)
}

func TestValidateDocumentFile(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.json")
	require.NoError(t, os.WriteFile(good, portfolio.DefaultJSON(), 0o644))
	assert.NoError(t, ValidateDocumentFile(good))

	err := ValidateDocumentFile(filepath.Join(dir, "missing.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestValidateJSONString(t *testing.T) {
	schema := `{"type":"object","required":["name"]}`

	assert.NoError(t, ValidateJSONString(schema, `{"name":"x"}`))

	err := ValidateJSONString(schema, `{}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}

func TestPortfolioSchema_Copy(t *testing.T) {
	a := PortfolioSchema()
	a[0] = 'X'
	assert.NotEqual(t, a[0], PortfolioSchema()[0])
}
