package skill

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// LoaderOptions controls how skills are discovered from the filesystem.
type LoaderOptions struct {
	ProjectRoot string
}

// File captures an on-disk SKILL.md definition.
type File struct {
	Name     string
	Path     string
	Metadata FileMetadata
}

// FileMetadata mirrors the YAML frontmatter fields inside SKILL.md.
type FileMetadata struct {
	Name         string `yaml:"name"`
	Description  string `yaml:"description"`
	AllowedTools string `yaml:"allowed-tools"`
}

// Result is the output of a markdown-backed skill invocation: the rendered
// body plus source metadata.
type Result struct {
	Skill    string
	Body     string
	Metadata map[string]string
}

var skillNameRegexp = regexp.MustCompile(`^[a-z0-9-]{1,64}$`)

// readFile is swappable in tests to track filesystem IO.
var readFile = os.ReadFile

// LoadFromFS discovers SKILL.md files under <root>/.claude/skills and returns
// the registrations. Errors are aggregated so one broken file will not block
// others; duplicate names are skipped with a warning entry in the error list.
func LoadFromFS(opts LoaderOptions) (*Registry, []error) {
	registry := NewRegistry()
	files, errs := loadSkillDir(filepath.Join(opts.ProjectRoot, ".claude", "skills"))
	if len(files) == 0 {
		return registry, errs
	}

	sort.Slice(files, func(i, j int) bool {
		if files[i].Metadata.Name != files[j].Metadata.Name {
			return files[i].Metadata.Name < files[j].Metadata.Name
		}
		return files[i].Path < files[j].Path
	})

	seen := map[string]string{}
	for _, file := range files {
		if prev, ok := seen[file.Metadata.Name]; ok {
			errs = append(errs, fmt.Errorf("skill: duplicate %q at %s (already from %s)", file.Metadata.Name, file.Path, prev))
			continue
		}
		seen[file.Metadata.Name] = file.Path

		def := Definition{
			Name:        file.Metadata.Name,
			Description: file.Metadata.Description,
			Metadata:    definitionMetadata(file),
		}
		if err := registry.Register(def, fileHandler(file)); err != nil {
			errs = append(errs, err)
		}
	}
	return registry, errs
}

func loadSkillDir(root string) ([]File, []error) {
	var (
		results []File
		errs    []error
	)

	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, []error{fmt.Errorf("skill: stat %s: %w", root, err)}
	}
	if !info.IsDir() {
		return nil, []error{fmt.Errorf("skill: path %s is not a directory", root)}
	}

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			errs = append(errs, fmt.Errorf("skill: walk %s: %w", path, walkErr))
			return nil
		}
		if d.IsDir() || d.Name() != "SKILL.md" {
			return nil
		}
		dirName := filepath.Base(filepath.Dir(path))
		file, parseErr := parseSkillFile(path, dirName)
		if parseErr != nil {
			errs = append(errs, parseErr)
			return nil
		}
		results = append(results, file)
		return nil
	})
	if walkErr != nil {
		errs = append(errs, walkErr)
	}
	return results, errs
}

func parseSkillFile(path, dirName string) (File, error) {
	meta, err := readFrontMatter(path)
	if err != nil {
		return File{}, fmt.Errorf("skill: read %s: %w", path, err)
	}
	if meta.Name != "" && dirName != "" && meta.Name != dirName {
		return File{}, fmt.Errorf("skill: name %q does not match directory %q in %s", meta.Name, dirName, path)
	}
	if err := validateMetadata(meta); err != nil {
		return File{}, fmt.Errorf("skill: validate %s: %w", path, err)
	}
	return File{Name: meta.Name, Path: path, Metadata: meta}, nil
}

func readFrontMatter(path string) (FileMetadata, error) {
	file, err := os.Open(path)
	if err != nil {
		return FileMetadata{}, err
	}
	defer file.Close()

	reader := bufio.NewReader(file)
	first, err := reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return FileMetadata{}, err
	}
	first = strings.TrimPrefix(first, "\uFEFF")
	if strings.TrimSpace(first) != "---" {
		return FileMetadata{}, errors.New("missing YAML frontmatter")
	}

	var lines []string
	for {
		line, readErr := reader.ReadString('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return FileMetadata{}, readErr
		}
		if strings.TrimSpace(line) == "---" {
			var meta FileMetadata
			if err := yaml.Unmarshal([]byte(strings.Join(lines, "")), &meta); err != nil {
				return FileMetadata{}, fmt.Errorf("decode YAML: %w", err)
			}
			return meta, nil
		}
		if line != "" {
			lines = append(lines, line)
		}
		if errors.Is(readErr, io.EOF) {
			return FileMetadata{}, errors.New("missing closing frontmatter separator")
		}
	}
}

func parseFrontMatter(content string) (FileMetadata, string, error) {
	trimmed := strings.TrimPrefix(content, "\uFEFF") // drop BOM if present
	lines := strings.Split(trimmed, "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != "---" {
		return FileMetadata{}, "", errors.New("missing YAML frontmatter")
	}
	end := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			end = i
			break
		}
	}
	if end == -1 {
		return FileMetadata{}, "", errors.New("missing closing frontmatter separator")
	}
	var meta FileMetadata
	if err := yaml.Unmarshal([]byte(strings.Join(lines[1:end], "\n")), &meta); err != nil {
		return FileMetadata{}, "", fmt.Errorf("decode YAML: %w", err)
	}
	body := strings.TrimPrefix(strings.Join(lines[end+1:], "\n"), "\n")
	return meta, body, nil
}

func validateMetadata(meta FileMetadata) error {
	name := strings.TrimSpace(meta.Name)
	if name == "" {
		return errors.New("name is required")
	}
	if !skillNameRegexp.MatchString(name) {
		return fmt.Errorf("invalid name %q", meta.Name)
	}
	desc := strings.TrimSpace(meta.Description)
	if desc == "" {
		return errors.New("description is required")
	}
	if len(desc) > 1024 {
		return errors.New("description exceeds 1024 characters")
	}
	return nil
}

func definitionMetadata(file File) map[string]string {
	meta := map[string]string{}
	if file.Metadata.AllowedTools != "" {
		meta["allowed-tools"] = strings.TrimSpace(file.Metadata.AllowedTools)
	}
	if file.Path != "" {
		meta["source"] = file.Path
	}
	if len(meta) == 0 {
		return nil
	}
	return meta
}

// fileHandler defers loading the skill body until first invocation.
func fileHandler(file File) Handler {
	var (
		once    sync.Once
		cached  Result
		loadErr error
	)
	return func(_ context.Context, _ any) (any, error) {
		once.Do(func() {
			cached, loadErr = loadSkillBody(file)
		})
		if loadErr != nil {
			return nil, loadErr
		}
		return cached, nil
	}
}

func loadSkillBody(file File) (Result, error) {
	data, err := readFile(file.Path)
	if err != nil {
		return Result{}, fmt.Errorf("skill: read %s: %w", file.Path, err)
	}
	_, body, err := parseFrontMatter(string(data))
	if err != nil {
		return Result{}, fmt.Errorf("skill: parse %s: %w", file.Path, err)
	}
	meta := map[string]string{"source": file.Path}
	if allowed := strings.TrimSpace(file.Metadata.AllowedTools); allowed != "" {
		meta["allowed-tools"] = allowed
	}
	return Result{Skill: file.Metadata.Name, Body: body, Metadata: meta}, nil
}
