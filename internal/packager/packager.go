// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package packager writes a finished run to disk: one markdown file per
// stage, a combined document, a README manifest, optional images and an
// optional zip archive. A package directory is never overwritten.
package packager

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/pdiddy/content-engine/pkg/types"
)

// File names inside a package directory.
const (
	ResearchFile = "01_research_findings.md"
	BlogFile     = "02_technical_blog_post.md"
	SocialFile   = "03_social_media_content.md"
	CombinedFile = "complete_multi_agent_content.md"
	ReadmeFile   = "README.md"
	ImagesDir    = "images"
)

// TimestampLayout formats the run start time in directory names.
const TimestampLayout = "20060102_150405"

// DisplayTimeLayout formats times inside the documents.
const DisplayTimeLayout = "2006-01-02 15:04:05"

// DefaultDir is the base output directory.
const DefaultDir = "multi_agent_content"

const (
	maxTopicRunes = 50
	maxSuffix     = 1000
)

// stageFiles maps each stage to its file name in StageOrder.
var stageFiles = map[types.StageName]string{
	types.StageResearch: ResearchFile,
	types.StageWriting:  BlogFile,
	types.StageSocial:   SocialFile,
}

// StageFile returns the package file name for stage n.
func StageFile(n types.StageName) string { return stageFiles[n] }

// File is one rendered package member.
type File struct {
	Name string
	Data []byte
}

// Output describes what Write produced.
type Output struct {
	// Dir is the package directory.
	Dir string
	// Files lists the paths written, relative to Dir.
	Files []string
	// Archive is the zip path, empty when no archive was written.
	Archive string
}

// Packager writes run packages under BaseDir.
type Packager struct {
	BaseDir string
	Archive bool
}

// New returns a Packager for cfg.
func New(cfg types.OutputConfig) *Packager {
	dir := cfg.Dir
	if dir == "" {
		dir = DefaultDir
	}
	return &Packager{BaseDir: dir, Archive: cfg.Archive}
}

// SafeTopic reduces topic to a directory-safe name: letters, digits,
// spaces, hyphens and underscores are kept, the result is cut to 50 runes,
// and spaces become underscores.
func SafeTopic(topic string) string {
	var b strings.Builder
	for _, r := range topic {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}
	s := strings.TrimRight(b.String(), " ")
	if r := []rune(s); len(r) > maxTopicRunes {
		s = strings.TrimRight(string(r[:maxTopicRunes]), " ")
	}
	s = strings.TrimLeft(s, " ")
	s = strings.ReplaceAll(s, " ", "_")
	if s == "" {
		return "untitled"
	}
	return s
}

// DirName returns the package directory name for topic started at t.
func DirName(topic string, t time.Time) string {
	return SafeTopic(topic) + "_" + t.Format(TimestampLayout)
}

// Render builds the in-memory file set for pkg: three stage files, the
// combined document and the README, followed by images in name order.
// pkg.Summary is filled with the combined document.
func Render(pkg *types.RunPackage) ([]File, error) {
	if len(pkg.Results) != len(types.StageOrder) {
		return nil, fmt.Errorf("run package has %d results, want %d", len(pkg.Results), len(types.StageOrder))
	}

	var files []File
	for _, n := range types.StageOrder {
		res, ok := pkg.Result(n)
		if !ok {
			return nil, fmt.Errorf("run package is missing the %s result", n)
		}
		cfg, _ := pkg.Config(n)
		data, err := renderStage(pkg.Topic, res, cfg)
		if err != nil {
			return nil, err
		}
		files = append(files, File{Name: stageFiles[n], Data: data})
	}

	combined, err := renderCombined(pkg)
	if err != nil {
		return nil, err
	}
	pkg.Summary = string(combined)
	files = append(files, File{Name: CombinedFile, Data: combined})

	readme, err := renderReadme(pkg)
	if err != nil {
		return nil, err
	}
	files = append(files, File{Name: ReadmeFile, Data: readme})

	names := make([]string, 0, len(pkg.Images))
	for name := range pkg.Images {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		files = append(files, File{Name: ImagesDir + "/" + filepath.Base(name), Data: pkg.Images[name]})
	}
	return files, nil
}

// Write renders pkg and writes it into a new directory under BaseDir.
// Failures are returned as *types.PackagingError.
func (p *Packager) Write(pkg *types.RunPackage) (Output, error) {
	files, err := Render(pkg)
	if err != nil {
		return Output{}, &types.PackagingError{Path: p.BaseDir, Err: err}
	}
	return p.WriteFiles(pkg.Topic, pkg.StartedAt, files)
}

// WriteFiles writes already rendered files into a new package directory
// named after topic and startedAt.
func (p *Packager) WriteFiles(topic string, startedAt time.Time, files []File) (Output, error) {
	if err := os.MkdirAll(p.BaseDir, 0o755); err != nil {
		return Output{}, &types.PackagingError{Path: p.BaseDir, Err: err}
	}
	dir, err := createUnique(filepath.Join(p.BaseDir, DirName(topic, startedAt)))
	if err != nil {
		return Output{}, &types.PackagingError{Path: p.BaseDir, Err: err}
	}

	out := Output{Dir: dir}
	for _, f := range files {
		path := filepath.Join(dir, filepath.FromSlash(f.Name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return discard(dir, path, err)
		}
		if err := writeNew(path, f.Data); err != nil {
			return discard(dir, path, err)
		}
		out.Files = append(out.Files, f.Name)
	}

	if p.Archive {
		zipPath := dir + ".zip"
		if err := writeArchiveFile(zipPath, files); err != nil {
			return discard(dir, zipPath, err)
		}
		out.Archive = zipPath
	}
	return out, nil
}

// discard removes a partially written package so a failed write leaves
// nothing behind.
func discard(dir, path string, err error) (Output, error) {
	os.RemoveAll(dir)
	return Output{}, &types.PackagingError{Path: path, Err: err}
}

// createUnique creates dir, or dir_2, dir_3 and so on when the name is
// taken. An existing directory is never reused.
func createUnique(dir string) (string, error) {
	candidate := dir
	for i := 2; i <= maxSuffix+1; i++ {
		err := os.Mkdir(candidate, 0o755)
		if err == nil {
			return candidate, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", err
		}
		candidate = fmt.Sprintf("%s_%d", dir, i)
	}
	return "", fmt.Errorf("no free directory name for %s after %d attempts", dir, maxSuffix)
}

// writeNew writes data to a file that must not exist yet.
func writeNew(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeArchiveFile(path string, files []File) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if err := WriteArchive(f, files); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}

// ArchiveName returns the download name of the archive for topic.
func ArchiveName(topic string, t time.Time) string {
	return DirName(topic, t) + ".zip"
}
