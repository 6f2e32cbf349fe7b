// Package project implements the snapshot file format (§6 "Snapshot file"):
// a directory per project holding a pretty-printed JSON Snapshot, a
// metadata.json, and one script file per non-empty (line,frame,language)
// triple.
//
// Grounded on the teacher's pkg/fileutil (RealFS, case-insensitive lookup)
// for the read side, and on pkg/script's Loader shape for per-file script
// storage — minus its #include preprocessor, since scripts here are
// per-frame rather than a compiled program tree. Legacy non-UTF8 script
// content is normalized through pkg/compiler.ConvertShiftJISToUTF8, the same
// way the teacher handles legacy-encoded source.
package project

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/zurustar/bubocore/internal/device"
	"github.com/zurustar/bubocore/pkg/compiler"
	"github.com/zurustar/bubocore/pkg/fileutil"
)

// DefaultProjectsDir is ~/.config/bubocore/projects, per §6.
func DefaultProjectsDir() (string, error) {
	cfg, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("project: resolving user config dir: %w", err)
	}
	return filepath.Join(cfg, "bubocore", "projects"), nil
}

// Metadata is metadata.json (§6).
type Metadata struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Tempo     float64   `json:"tempo"`
	LineCount int       `json:"line_count"`
}

// ScriptRef names a non-empty script's source file.
type ScriptRef struct {
	Line     int    `json:"line"`
	Frame    int    `json:"frame"`
	Language string `json:"language"`
}

func (r ScriptRef) filename() string {
	return fmt.Sprintf("line%d_frame%d.%s", r.Line, r.Frame, r.Language)
}

// FrameSnapshot is one frame's non-script state; script content lives in
// separate files under scripts/, referenced by Scripts.
type FrameSnapshot struct {
	Length  float64  `json:"length"`
	Enabled bool     `json:"enabled"`
	Scripts []string `json:"scripts"` // language names with non-empty content
}

// LineSnapshot is one line's state, §3 Line attributes.
type LineSnapshot struct {
	Frames         []FrameSnapshot `json:"frames"`
	StartFrame     *int            `json:"start_frame,omitempty"`
	EndFrame       *int            `json:"end_frame,omitempty"`
	LengthOverride *float64        `json:"length_override,omitempty"`
	SpeedFactor    float64         `json:"speed_factor"`
}

// SceneSnapshot is the scene's pure data, independent of compiled programs
// (those are rebuilt on load by recompiling each script's stored content).
type SceneSnapshot struct {
	Length int            `json:"length"`
	Lines  []LineSnapshot `json:"lines"`
}

// Snapshot is the full <name>.bubo document (§3 Snapshot, §6).
type Snapshot struct {
	Scene   SceneSnapshot           `json:"scene"`
	Tempo   float64                 `json:"tempo"`
	Beat    float64                 `json:"beat"`
	Micros  uint64                  `json:"micros"`
	Quantum float64                 `json:"quantum"`
	Devices []device.OutputSnapshot `json:"devices"`
}

// Store reads and writes project directories under baseDir.
type Store struct {
	baseDir string
	log     *slog.Logger
}

// New creates a Store rooted at baseDir (create it with NewWithDefaultDir if
// the caller has no specific path in mind).
func New(baseDir string, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{baseDir: baseDir, log: log}
}

// NewWithDefaultDir roots the Store at DefaultProjectsDir().
func NewWithDefaultDir(log *slog.Logger) (*Store, error) {
	dir, err := DefaultProjectsDir()
	if err != nil {
		return nil, err
	}
	return New(dir, log), nil
}

func (s *Store) projectDir(name string) string {
	return filepath.Join(s.baseDir, name)
}

// List returns the names of every project directory under baseDir.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.baseDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("project: listing %s: %w", s.baseDir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Save writes snap and its accompanying script contents to
// <baseDir>/<name>/, creating the directory tree if needed.
func (s *Store) Save(name string, snap Snapshot, scripts map[ScriptRef]string) error {
	if err := sanitizeName(name); err != nil {
		return err
	}
	dir := s.projectDir(name)
	scriptsDir := filepath.Join(dir, "scripts")
	if err := os.MkdirAll(scriptsDir, 0o755); err != nil {
		return fmt.Errorf("project: creating %s: %w", scriptsDir, err)
	}

	body, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("project: marshaling snapshot: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, name+".bubo"), body, 0o644); err != nil {
		return fmt.Errorf("project: writing snapshot: %w", err)
	}

	meta := s.loadMetadataOrZero(dir)
	now := time.Now()
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = now
	}
	meta.UpdatedAt = now
	meta.Tempo = snap.Tempo
	meta.LineCount = len(snap.Scene.Lines)
	metaBody, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("project: marshaling metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "metadata.json"), metaBody, 0o644); err != nil {
		return fmt.Errorf("project: writing metadata: %w", err)
	}

	for ref, content := range scripts {
		path := filepath.Join(scriptsDir, ref.filename())
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return fmt.Errorf("project: writing script %s: %w", path, err)
		}
	}

	s.log.Info("project: saved", "name", name, "lines", meta.LineCount)
	return nil
}

func (s *Store) loadMetadataOrZero(dir string) Metadata {
	body, err := os.ReadFile(filepath.Join(dir, "metadata.json"))
	if err != nil {
		return Metadata{}
	}
	var m Metadata
	if err := json.Unmarshal(body, &m); err != nil {
		return Metadata{}
	}
	return m
}

// Load reads <baseDir>/<name>/<name>.bubo and its script files back.
func (s *Store) Load(name string) (Snapshot, map[ScriptRef]string, error) {
	if err := sanitizeName(name); err != nil {
		return Snapshot{}, nil, err
	}
	dir := s.projectDir(name)
	fsys := fileutil.NewRealFS(dir)

	body, err := fsys.ReadFile(name + ".bubo")
	if err != nil {
		return Snapshot{}, nil, fmt.Errorf("project: reading snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		return Snapshot{}, nil, fmt.Errorf("project: parsing snapshot: %w", err)
	}

	scripts := make(map[ScriptRef]string)
	for lineIdx, line := range snap.Scene.Lines {
		for frameIdx, frame := range line.Frames {
			for _, lang := range frame.Scripts {
				ref := ScriptRef{Line: lineIdx, Frame: frameIdx, Language: lang}
				content, err := s.readScript(fsys, ref)
				if err != nil {
					return Snapshot{}, nil, err
				}
				scripts[ref] = content
			}
		}
	}

	return snap, scripts, nil
}

func (s *Store) readScript(fsys fileutil.FileSystem, ref ScriptRef) (string, error) {
	path := filepath.Join("scripts", ref.filename())
	data, err := fsys.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("project: reading script %s: %w", path, err)
	}
	if utf8.Valid(data) {
		return string(data), nil
	}
	text, err := compiler.ConvertShiftJISToUTF8(data)
	if err != nil {
		return "", fmt.Errorf("project: decoding legacy script %s: %w", path, err)
	}
	return text, nil
}

// sanitizeName rejects path-traversal attempts in a user-supplied project
// name before it is joined into a filesystem path.
func sanitizeName(name string) error {
	if name == "" || strings.ContainsAny(name, "/\\") || name == "." || name == ".." {
		return fmt.Errorf("project: invalid project name %q", name)
	}
	return nil
}
