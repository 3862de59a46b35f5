package scanner_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/joshyorko/bomforge/scanner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandExpandsPlaceholders(t *testing.T) {
	tests := []struct {
		template string
		expected []string
	}{
		{scanner.DefaultFilesystemTemplate, []string{"syft", "scan", "dir:/src/app", "-o", "cyclonedx-json=/out/App.json"}},
		{scanner.DefaultImageTemplate, []string{"syft", "scan", "docker-archive:/src/app", "-o", "cyclonedx-json=/out/App.json"}},
		{`scan "{source}" --name 'with space' {output}`, []string{"scan", "/src/app", "--name", "with space", "/out/App.json"}},
	}

	request := scanner.Request{Source: "/src/app", Output: "/out/App.json"}
	for _, tt := range tests {
		t.Run(tt.template, func(t *testing.T) {
			args, err := scanner.NewCommandProducer(tt.template).Command(request)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, args)
		})
	}
}

func TestCommandRejectsBrokenTemplates(t *testing.T) {
	for _, template := range []string{"", "   ", `syft "unterminated`} {
		_, err := scanner.NewCommandProducer(template).Command(scanner.Request{})
		assert.Error(t, err, "template %q", template)
	}
}

func TestCommandProducerReturnsWrittenFragment(t *testing.T) {
	folder := t.TempDir()
	source := filepath.Join(folder, "source.json")
	require.NoError(t, os.WriteFile(source, []byte(`{"components": []}`), 0o644))
	output := filepath.Join(folder, "deep", "er", "fragment.json")

	produced, err := scanner.NewCommandProducer("cp {source} {output}").Produce(context.Background(), scanner.Request{Source: source, Output: output})

	require.NoError(t, err)
	assert.Equal(t, output, produced)
	assert.FileExists(t, output)
}

func TestCommandProducerFailuresMeanNoFragment(t *testing.T) {
	folder := t.TempDir()
	request := scanner.Request{Source: folder, Output: filepath.Join(folder, "fragment.json")}

	for _, template := range []string{"false", "true", "no-such-scanner-binary-anywhere {source}"} {
		_, err := scanner.NewCommandProducer(template).Produce(context.Background(), request)
		assert.ErrorIs(t, err, scanner.ErrUnavailable, "template %q", template)
	}
}

func TestPrebuiltOnlyReportsExistingFragments(t *testing.T) {
	folder := t.TempDir()
	present := filepath.Join(folder, "present.json")
	require.NoError(t, os.WriteFile(present, []byte(`{}`), 0o644))

	produced, err := scanner.Prebuilt{}.Produce(context.Background(), scanner.Request{Output: present})
	require.NoError(t, err)
	assert.Equal(t, present, produced)

	_, err = scanner.Prebuilt{}.Produce(context.Background(), scanner.Request{Output: filepath.Join(folder, "absent.json")})
	assert.ErrorIs(t, err, scanner.ErrUnavailable)

	_, err = scanner.Prebuilt{}.Produce(context.Background(), scanner.Request{Output: folder})
	assert.ErrorIs(t, err, scanner.ErrUnavailable)
}
