package vespa

import (
	"archive/zip"
	"bytes"
	"context"
	"embed"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"text/template"
	"time"
)

//go:embed schemas/services.xml schemas/chunk.sd.tmpl
var schemaFS embed.FS

// DeployResult describes a successful application package deployment
type DeployResult struct {
	EmbeddingDim  int
	SchemaVersion string
	Message       string
}

// Deployer pushes the chunk schema to a Vespa config server
type Deployer struct {
	httpClient *http.Client
}

// NewDeployer creates a new Vespa deployer
func NewDeployer() *Deployer {
	return &Deployer{
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Deploy builds the application package for the given embedding dimension
// and activates it via the config server at endpoint (e.g., http://localhost:19071).
func (d *Deployer) Deploy(ctx context.Context, endpoint string, embeddingDim int) (*DeployResult, error) {
	endpoint, err := validateEndpoint(endpoint)
	if err != nil {
		return nil, err
	}
	if embeddingDim <= 0 {
		return nil, fmt.Errorf("embedding dimension must be positive, got %d", embeddingDim)
	}

	schemaContent, err := generateSchema(embeddingDim)
	if err != nil {
		return nil, fmt.Errorf("failed to generate schema: %w", err)
	}
	servicesContent, err := schemaFS.ReadFile("schemas/services.xml")
	if err != nil {
		return nil, fmt.Errorf("failed to read services.xml: %w", err)
	}
	zipData, err := createAppPackage(servicesContent, schemaContent)
	if err != nil {
		return nil, fmt.Errorf("failed to create app package: %w", err)
	}

	deployURL := fmt.Sprintf("%s/application/v2/tenant/default/prepareandactivate", endpoint)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, deployURL, bytes.NewReader(zipData))
	if err != nil {
		return nil, fmt.Errorf("failed to create deploy request: %w", err)
	}
	req.Header.Set("Content-Type", "application/zip")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("deployment request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("deployment failed with status %s: %s", resp.Status, string(body))
	}

	return &DeployResult{
		EmbeddingDim:  embeddingDim,
		SchemaVersion: fmt.Sprintf("v1-semantic-dim%d", embeddingDim),
		Message:       fmt.Sprintf("Deployed chunk schema with %d-dimensional embeddings", embeddingDim),
	}, nil
}

// HealthCheck verifies the Vespa config server is healthy
func (d *Deployer) HealthCheck(ctx context.Context, endpoint string) error {
	endpoint, err := validateEndpoint(endpoint)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"/state/v1/health", nil)
	if err != nil {
		return err
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unhealthy: %s - %s", resp.Status, string(body))
	}
	return nil
}

// validateEndpoint accepts only absolute http(s) URLs and strips a trailing slash
func validateEndpoint(endpoint string) (string, error) {
	if endpoint == "" {
		return "", fmt.Errorf("endpoint is required")
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("endpoint must use http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("endpoint has no host")
	}
	return strings.TrimSuffix(endpoint, "/"), nil
}

// generateSchema renders the chunk schema for the embedding dimension
func generateSchema(embeddingDim int) ([]byte, error) {
	tmplContent, err := schemaFS.ReadFile("schemas/chunk.sd.tmpl")
	if err != nil {
		return nil, err
	}

	tmpl, err := template.New("schema").Parse(string(tmplContent))
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	data := struct {
		EmbeddingDim int
	}{
		EmbeddingDim: embeddingDim,
	}
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// createAppPackage creates a Vespa application package zip
func createAppPackage(services, schema []byte) ([]byte, error) {
	var buf bytes.Buffer
	zipWriter := zip.NewWriter(&buf)

	files := []struct {
		name    string
		content []byte
	}{
		{"services.xml", services},
		{"schemas/chunk.sd", schema},
	}
	for _, f := range files {
		w, err := zipWriter.Create(f.name)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(f.content); err != nil {
			return nil, err
		}
	}

	if err := zipWriter.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
