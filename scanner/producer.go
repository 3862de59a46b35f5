package scanner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/shlex"
	"github.com/joshyorko/bomforge/common"
)

const (
	DefaultFilesystemTemplate = "syft scan dir:{source} -o cyclonedx-json={output}"
	DefaultImageTemplate      = "syft scan docker-archive:{source} -o cyclonedx-json={output}"

	sourcePlaceholder = "{source}"
	outputPlaceholder = "{output}"
)

// ErrUnavailable means the producer ran (or could not run) without leaving a
// fragment behind. Callers treat it as "no fragment", not as a failure.
var ErrUnavailable = errors.New("no SBOM fragment produced")

// Request names what to scan and where the fragment should go.
type Request struct {
	Source string
	Output string
}

func (it Request) String() string {
	return fmt.Sprintf("%s -> %s", it.Source, it.Output)
}

// Producer turns a directory or archive into a CycloneDX JSON fragment and
// returns the location of the written fragment.
type Producer interface {
	Produce(ctx context.Context, request Request) (string, error)
}

// CommandProducer runs an external scanner described by a command template.
type CommandProducer struct {
	Template string
	Env      []string
}

func NewCommandProducer(template string) *CommandProducer {
	return &CommandProducer{Template: template}
}

// Command expands the template for request into program and arguments.
func (it *CommandProducer) Command(request Request) ([]string, error) {
	parts, err := shlex.Split(it.Template)
	if err != nil {
		return nil, fmt.Errorf("scanner template %q: %w", it.Template, err)
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("scanner template is empty")
	}
	replacer := strings.NewReplacer(sourcePlaceholder, request.Source, outputPlaceholder, request.Output)
	for at, part := range parts {
		parts[at] = replacer.Replace(part)
	}
	return parts, nil
}

func (it *CommandProducer) Produce(ctx context.Context, request Request) (string, error) {
	args, err := it.Command(request)
	if err != nil {
		return "", err
	}
	err = os.MkdirAll(filepath.Dir(request.Output), 0o755)
	if err != nil {
		return "", err
	}
	stopwatch := common.Stopwatch("Scanner %q took", args[0])
	defer stopwatch.Debug()

	common.Debug("Running scanner: %s", strings.Join(args, " "))
	command := exec.CommandContext(ctx, args[0], args[1:]...)
	if len(it.Env) > 0 {
		command.Env = append(os.Environ(), it.Env...)
	}
	output, err := command.CombinedOutput()
	if len(output) > 0 {
		common.Trace("Scanner output for %s:\n%s", request.Source, output)
	}
	if err != nil {
		common.Debug("Scanner failed for %s: %v", request.Source, err)
		return "", fmt.Errorf("%w: %s: %v", ErrUnavailable, request, err)
	}
	return existing(request.Output)
}

func existing(where string) (string, error) {
	stat, err := os.Stat(where)
	if err != nil || stat.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrUnavailable, where)
	}
	return where, nil
}

// Prebuilt serves fragments that some earlier step already wrote. It never
// runs anything; it only reports whether the expected output exists.
type Prebuilt struct{}

func (Prebuilt) Produce(ctx context.Context, request Request) (string, error) {
	return existing(request.Output)
}
