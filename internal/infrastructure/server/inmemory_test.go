package server

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FreePeak/golang-mcp-gateway/internal/domain"
	"github.com/FreePeak/golang-mcp-gateway/internal/domain/shared"
)

func textReader(text string) domain.ResourceReader {
	return func(ctx context.Context, uri string) ([]shared.ResourceContents, error) {
		return []shared.ResourceContents{{URI: uri, MIMEType: "text/plain", Text: text}}, nil
	}
}

func TestInMemoryResourceRepository_AddAndGetResource(t *testing.T) {
	repo := NewInMemoryResourceRepository()
	ctx := context.Background()

	resource := &domain.RegisteredResource{
		Resource: shared.Resource{URI: "test://resource1", Name: "Test Resource"},
		Reader:   textReader("one"),
	}
	require.NoError(t, repo.AddResource(ctx, resource))

	retrieved, err := repo.GetResource(ctx, "test://resource1")
	require.NoError(t, err)
	assert.Equal(t, resource, retrieved)

	_, err = repo.GetResource(ctx, "test://nonexistent")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestInMemoryResourceRepository_Validation(t *testing.T) {
	repo := NewInMemoryResourceRepository()
	ctx := context.Background()

	var validationErr *domain.ValidationError
	assert.ErrorAs(t, repo.AddResource(ctx, nil), &validationErr)
	assert.ErrorAs(t, repo.AddResource(ctx, &domain.RegisteredResource{Reader: textReader("")}), &validationErr)
	assert.ErrorAs(t, repo.AddResource(ctx, &domain.RegisteredResource{Resource: shared.Resource{URI: "a://b"}}), &validationErr)
	assert.ErrorAs(t, repo.AddTemplate(ctx, &domain.RegisteredTemplate{}), &validationErr)
}

func TestInMemoryResourceRepository_ListIsOrdered(t *testing.T) {
	repo := NewInMemoryResourceRepository()
	ctx := context.Background()

	for _, uri := range []string{"test://c", "test://a", "test://b"} {
		require.NoError(t, repo.AddResource(ctx, &domain.RegisteredResource{
			Resource: shared.Resource{URI: uri, Name: uri},
			Reader:   textReader(uri),
		}))
	}

	resources, err := repo.ListResources(ctx)
	require.NoError(t, err)
	require.Len(t, resources, 3)
	assert.Equal(t, "test://a", resources[0].Resource.URI)
	assert.Equal(t, "test://c", resources[2].Resource.URI)

	require.NoError(t, repo.DeleteResource(ctx, "test://a"))
	assert.ErrorIs(t, repo.DeleteResource(ctx, "test://a"), domain.ErrNotFound)
}

func TestInMemoryToolRepository(t *testing.T) {
	repo := NewInMemoryToolRepository()
	ctx := context.Background()

	handler := func(ctx context.Context, args map[string]interface{}) (*shared.CallToolResult, error) {
		return &shared.CallToolResult{}, nil
	}

	require.NoError(t, repo.AddTool(ctx, &domain.RegisteredTool{Tool: shared.Tool{Name: "b"}, Handler: handler}))
	require.NoError(t, repo.AddTool(ctx, &domain.RegisteredTool{Tool: shared.Tool{Name: "a"}, Handler: handler}))

	tools, err := repo.ListTools(ctx)
	require.NoError(t, err)
	require.Len(t, tools, 2)
	assert.Equal(t, "a", tools[0].Tool.Name)

	_, err = repo.GetTool(ctx, "missing")
	var notFound *domain.ToolNotFoundError
	assert.ErrorAs(t, err, &notFound)

	var validationErr *domain.ValidationError
	assert.ErrorAs(t, repo.AddTool(ctx, &domain.RegisteredTool{Tool: shared.Tool{Name: "x"}}), &validationErr)
	assert.ErrorAs(t, repo.AddTool(ctx, &domain.RegisteredTool{Handler: handler}), &validationErr)

	require.NoError(t, repo.DeleteTool(ctx, "a"))
	assert.ErrorAs(t, repo.DeleteTool(ctx, "a"), &notFound)
}
