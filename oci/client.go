// Package oci publishes finished SBOM documents as OCI artifacts, so they
// can live next to the images they describe.
package oci

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joshyorko/bomforge/common"
)

const (
	ManifestMediaType    = "application/vnd.oci.image.manifest.v1+json"
	EmptyConfigMediaType = "application/vnd.oci.empty.v1+json"
	ArtifactType         = "application/vnd.cyclonedx"

	titleAnnotation   = "org.opencontainers.image.title"
	createdAnnotation = "org.opencontainers.image.created"
	versionAnnotation = "dev.bomforge.sbom.version"
)

type Config struct {
	Registry string // "registry.example/org/sboms", optionally with http(s)://
	Tag      string
	Username string
	Password string
}

type Client struct {
	config     Config
	httpClient *http.Client
}

func NewClient(config Config) *Client {
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// NewClientFromEnv takes credentials from BOMFORGE_REGISTRY_USERNAME and
// BOMFORGE_REGISTRY_PASSWORD, falling back to OCI_* and DOCKER_* variables.
func NewClientFromEnv(registry, tag string) *Client {
	return NewClient(Config{
		Registry: registry,
		Tag:      tag,
		Username: firstEnv("BOMFORGE_REGISTRY_USERNAME", "OCI_USERNAME", "DOCKER_USERNAME"),
		Password: firstEnv("BOMFORGE_REGISTRY_PASSWORD", "OCI_PASSWORD", "DOCKER_PASSWORD"),
	})
}

func firstEnv(names ...string) string {
	for _, name := range names {
		if value := os.Getenv(name); len(value) > 0 {
			return value
		}
	}
	return ""
}

// Artifact is one SBOM file to publish.
type Artifact struct {
	Title     string
	MediaType string
	Version   int
	Content   []byte
}

type PushResult struct {
	Digest    string `json:"digest"`
	Tag       string `json:"tag"`
	Registry  string `json:"registry"`
	MediaType string `json:"mediaType"`
	Size      int64  `json:"size"`
}

type manifest struct {
	SchemaVersion int               `json:"schemaVersion"`
	MediaType     string            `json:"mediaType"`
	ArtifactType  string            `json:"artifactType,omitempty"`
	Config        descriptor        `json:"config"`
	Layers        []descriptor      `json:"layers"`
	Annotations   map[string]string `json:"annotations,omitempty"`
}

type descriptor struct {
	MediaType   string            `json:"mediaType"`
	Digest      string            `json:"digest"`
	Size        int64             `json:"size"`
	Annotations map[string]string `json:"annotations,omitempty"`
}

type endpoint struct {
	base       string
	repository string
	auth       string
}

// Push uploads the artifact as a single layer image manifest and tags it.
func (it *Client) Push(ctx context.Context, artifact Artifact) (*PushResult, error) {
	base, repository, err := parseRegistryURL(it.config.Registry)
	if err != nil {
		return nil, fmt.Errorf("invalid registry URL: %w", err)
	}
	common.Debug("Pushing %s to %s/%s:%s", artifact.Title, base, repository, it.config.Tag)

	target := &endpoint{base: base, repository: repository}
	target.auth, err = it.authenticate(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("authentication failed: %w", err)
	}

	empty := []byte("{}")
	configDigest := calculateDigest(empty)
	contentDigest := calculateDigest(artifact.Content)

	if err := it.uploadBlob(ctx, target, empty, configDigest); err != nil {
		return nil, fmt.Errorf("failed to upload config blob: %w", err)
	}
	if err := it.uploadBlob(ctx, target, artifact.Content, contentDigest); err != nil {
		return nil, fmt.Errorf("failed to upload SBOM blob: %w", err)
	}

	annotations := map[string]string{
		createdAnnotation: time.Now().UTC().Format(time.RFC3339),
	}
	if artifact.Version > 0 {
		annotations[versionAnnotation] = fmt.Sprintf("%d", artifact.Version)
	}
	body, err := json.Marshal(manifest{
		SchemaVersion: 2,
		MediaType:     ManifestMediaType,
		ArtifactType:  ArtifactType,
		Config: descriptor{
			MediaType: EmptyConfigMediaType,
			Digest:    configDigest,
			Size:      int64(len(empty)),
		},
		Layers: []descriptor{{
			MediaType:   artifact.MediaType,
			Digest:      contentDigest,
			Size:        int64(len(artifact.Content)),
			Annotations: map[string]string{titleAnnotation: artifact.Title},
		}},
		Annotations: annotations,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal manifest: %w", err)
	}

	digest, err := it.pushManifest(ctx, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to push manifest: %w", err)
	}
	return &PushResult{
		Digest:    digest,
		Tag:       it.config.Tag,
		Registry:  it.config.Registry,
		MediaType: artifact.MediaType,
		Size:      int64(len(artifact.Content)),
	}, nil
}

func parseRegistryURL(registryURL string) (string, string, error) {
	url := registryURL
	protocol := "https://"
	if strings.HasPrefix(url, "https://") {
		url = strings.TrimPrefix(url, "https://")
	} else if strings.HasPrefix(url, "http://") {
		protocol = "http://"
		url = strings.TrimPrefix(url, "http://")
		common.Debug("WARNING: Using insecure HTTP connection to registry")
	}

	parts := strings.SplitN(strings.TrimSuffix(url, "/"), "/", 2)
	if len(parts) < 2 || len(parts[0]) == 0 || len(parts[1]) == 0 {
		return "", "", fmt.Errorf("invalid registry URL format: expected 'registry/repository'")
	}
	return protocol + parts[0], parts[1], nil
}

func calculateDigest(content []byte) string {
	hash := sha256.Sum256(content)
	return fmt.Sprintf("sha256:%x", hash)
}

// authenticate returns the Authorization header value to use, or "" when
// the registry is open. Bearer challenges are exchanged for a token using
// the configured credentials; other challenges get basic auth.
func (it *Client) authenticate(ctx context.Context, target *endpoint) (string, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, target.base+"/v2/", nil)
	if err != nil {
		return "", err
	}
	response, err := it.httpClient.Do(request)
	if err != nil {
		return "", err
	}
	defer response.Body.Close()

	if response.StatusCode == http.StatusOK {
		return "", nil
	}
	if response.StatusCode != http.StatusUnauthorized {
		return "", fmt.Errorf("unexpected response from registry: %d", response.StatusCode)
	}

	basic := ""
	if len(it.config.Username) > 0 || len(it.config.Password) > 0 {
		basic = "Basic " + base64.StdEncoding.EncodeToString([]byte(it.config.Username+":"+it.config.Password))
	}
	scheme, params := parseChallenge(response.Header.Get("WWW-Authenticate"))
	if !strings.EqualFold(scheme, "bearer") {
		if len(basic) == 0 {
			return "", fmt.Errorf("registry requires credentials")
		}
		return basic, nil
	}
	token, err := it.exchangeToken(ctx, params, basic, target.repository)
	if err != nil {
		return "", err
	}
	return "Bearer " + token, nil
}

func (it *Client) exchangeToken(ctx context.Context, params map[string]string, basic, repository string) (string, error) {
	realm := params["realm"]
	if len(realm) == 0 {
		return "", fmt.Errorf("bearer challenge without realm")
	}
	scope := params["scope"]
	if len(scope) == 0 {
		scope = fmt.Sprintf("repository:%s:pull,push", repository)
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, realm, nil)
	if err != nil {
		return "", err
	}
	query := request.URL.Query()
	if service, ok := params["service"]; ok {
		query.Set("service", service)
	}
	query.Set("scope", scope)
	request.URL.RawQuery = query.Encode()
	if len(basic) > 0 {
		request.Header.Set("Authorization", basic)
	}

	response, err := it.httpClient.Do(request)
	if err != nil {
		return "", err
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(response.Body)
		return "", fmt.Errorf("token exchange failed: status %d, body: %s", response.StatusCode, string(body))
	}
	reply := struct {
		Token       string `json:"token"`
		AccessToken string `json:"access_token"`
	}{}
	if err := json.NewDecoder(response.Body).Decode(&reply); err != nil {
		return "", fmt.Errorf("token exchange reply: %w", err)
	}
	if len(reply.Token) > 0 {
		return reply.Token, nil
	}
	if len(reply.AccessToken) > 0 {
		return reply.AccessToken, nil
	}
	return "", fmt.Errorf("token exchange returned no token")
}

// parseChallenge splits `Bearer realm="x",service="y"` into scheme and
// parameters. Quoted values may contain commas.
func parseChallenge(header string) (string, map[string]string) {
	params := make(map[string]string)
	header = strings.TrimSpace(header)
	scheme, rest, _ := strings.Cut(header, " ")
	for len(rest) > 0 {
		rest = strings.TrimLeft(rest, " ,")
		key, remainder, found := strings.Cut(rest, "=")
		if !found {
			break
		}
		value := ""
		if strings.HasPrefix(remainder, `"`) {
			closing := strings.Index(remainder[1:], `"`)
			if closing < 0 {
				value, rest = remainder[1:], ""
			} else {
				value, rest = remainder[1:closing+1], remainder[closing+2:]
			}
		} else {
			value, rest, _ = strings.Cut(remainder, ",")
		}
		params[strings.ToLower(strings.TrimSpace(key))] = value
	}
	return scheme, params
}

func (it *Client) do(request *http.Request, target *endpoint) (*http.Response, error) {
	if len(target.auth) > 0 {
		request.Header.Set("Authorization", target.auth)
	}
	return it.httpClient.Do(request)
}

func (it *Client) uploadBlob(ctx context.Context, target *endpoint, content []byte, digest string) error {
	exists, err := it.blobExists(ctx, target, digest)
	if err != nil {
		return err
	}
	if exists {
		common.Debug("Blob %s already exists, skipping upload", digest)
		return nil
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/v2/%s/blobs/uploads/", target.base, target.repository), nil)
	if err != nil {
		return err
	}
	response, err := it.do(request, target)
	if err != nil {
		return err
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(response.Body)
		return fmt.Errorf("failed to initiate upload: status %d, body: %s", response.StatusCode, string(body))
	}

	location := response.Header.Get("Location")
	if len(location) == 0 {
		return fmt.Errorf("no upload location returned")
	}
	if !strings.HasPrefix(location, "http") {
		location = target.base + location
	}
	separator := "?"
	if strings.Contains(location, "?") {
		separator = "&"
	}

	request, err = http.NewRequestWithContext(ctx, http.MethodPut, location+separator+"digest="+digest, bytes.NewReader(content))
	if err != nil {
		return err
	}
	request.Header.Set("Content-Type", "application/octet-stream")
	request.ContentLength = int64(len(content))
	response, err = it.do(request, target)
	if err != nil {
		return err
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(response.Body)
		return fmt.Errorf("failed to upload blob: status %d, body: %s", response.StatusCode, string(body))
	}
	return nil
}

func (it *Client) blobExists(ctx context.Context, target *endpoint, digest string) (bool, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodHead, fmt.Sprintf("%s/v2/%s/blobs/%s", target.base, target.repository, digest), nil)
	if err != nil {
		return false, err
	}
	response, err := it.do(request, target)
	if err != nil {
		return false, err
	}
	defer response.Body.Close()
	return response.StatusCode == http.StatusOK, nil
}

func (it *Client) pushManifest(ctx context.Context, target *endpoint, body []byte) (string, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodPut, fmt.Sprintf("%s/v2/%s/manifests/%s", target.base, target.repository, it.config.Tag), bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	request.Header.Set("Content-Type", ManifestMediaType)
	response, err := it.do(request, target)
	if err != nil {
		return "", err
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusCreated && response.StatusCode != http.StatusOK {
		responseBody, _ := io.ReadAll(response.Body)
		return "", fmt.Errorf("status %d, body: %s", response.StatusCode, string(responseBody))
	}
	digest := response.Header.Get("Docker-Content-Digest")
	if len(digest) == 0 {
		digest = calculateDigest(body)
	}
	return digest, nil
}
