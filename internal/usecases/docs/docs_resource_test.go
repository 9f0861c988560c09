package docs

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/FreePeak/golang-mcp-gateway/internal/domain"
	"github.com/FreePeak/golang-mcp-gateway/internal/infrastructure/server"
)

func newInvoker(t *testing.T) *server.InMemoryInvoker {
	t.Helper()
	local := server.NewInMemoryServer("docs")
	if err := Register(local); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	invoker := server.NewInMemoryInvoker(local)
	t.Cleanup(func() { _ = invoker.Close() })
	return invoker
}

func TestRegisterListsResources(t *testing.T) {
	invoker := newInvoker(t)
	ctx := context.Background()

	groups, err := invoker.ListResources(ctx)
	if err != nil {
		t.Fatalf("Failed to list resources: %v", err)
	}
	if len(groups) != 1 || len(groups[0].Resources) != 1 {
		t.Fatalf("Expected a single introduction resource, got %+v", groups)
	}
	if groups[0].Resources[0].URI != introductionURI {
		t.Errorf("Expected %s, got %s", introductionURI, groups[0].Resources[0].URI)
	}

	templates, err := invoker.ListResourceTemplates(ctx)
	if err != nil {
		t.Fatalf("Failed to list templates: %v", err)
	}
	if len(templates) != 1 || len(templates[0].Templates) != 1 {
		t.Fatalf("Expected a single template, got %+v", templates)
	}
	if templates[0].Templates[0].URITemplate != toolTemplate {
		t.Errorf("Expected %s, got %s", toolTemplate, templates[0].Templates[0].URITemplate)
	}
}

func TestReadResources(t *testing.T) {
	invoker := newInvoker(t)
	ctx := context.Background()

	intro, err := invoker.ReadResource(ctx, 0, introductionURI)
	if err != nil {
		t.Fatalf("Failed to read introduction: %v", err)
	}
	if len(intro.Contents) != 1 || !strings.HasPrefix(intro.Contents[0].Text, "# Calculator") {
		t.Errorf("Unexpected introduction contents: %+v", intro.Contents)
	}

	for _, name := range ToolNames() {
		uri := toolPrefix + name
		result, err := invoker.ReadResource(ctx, 0, uri)
		if err != nil {
			t.Fatalf("Failed to read %s: %v", uri, err)
		}
		if len(result.Contents) != 1 || result.Contents[0].URI != uri {
			t.Errorf("Unexpected contents for %s: %+v", uri, result.Contents)
		}
		if result.Contents[0].MIMEType != markdown {
			t.Errorf("Expected %s mime type, got %s", markdown, result.Contents[0].MIMEType)
		}
	}
}

func TestReadUnknownToolDoc(t *testing.T) {
	invoker := newInvoker(t)

	_, err := invoker.ReadResource(context.Background(), 0, toolPrefix+"sqrt")
	var notFound *domain.ResourceNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("Expected ResourceNotFoundError, got %v", err)
	}
}
