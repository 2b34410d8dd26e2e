package scene

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ScenesDir is where a performer's locally-saved scenes live, matching
// the teacher's PatternsDir convention.
const ScenesDir = "scenes"

// Save serializes the Scene to a JSON document under ScenesDir. Rather
// than round-tripping through encoding/json (which would require a
// full exported mirror struct for every nested type), the document is
// built incrementally with sjson.Set so a later partial edit — renaming
// one frame, say — can patch a single path without re-marshalling the
// whole tree, per SPEC_FULL.md's scene/persistence.go note.
func (s *Scene) Save(name string) error {
	if err := os.MkdirAll(ScenesDir, 0o755); err != nil {
		return fmt.Errorf("failed to create scenes directory: %w", err)
	}

	doc := "{}"
	var err error
	doc, err = sjson.Set(doc, "name", name)
	if err != nil {
		return fmt.Errorf("failed to encode scene: %w", err)
	}
	doc, err = sjson.Set(doc, "saved_at", time.Now().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to encode scene: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for li, line := range s.Lines {
		line.mu.RLock()
		base := fmt.Sprintf("lines.%d", li)
		doc, err = sjson.Set(doc, base+".speed", line.Speed)
		if err != nil {
			line.mu.RUnlock()
			return fmt.Errorf("failed to encode line %d: %w", li, err)
		}
		doc, err = sjson.Set(doc, base+".custom_loop_beats", line.CustomLoopBeats)
		if err != nil {
			line.mu.RUnlock()
			return fmt.Errorf("failed to encode line %d: %w", li, err)
		}
		for fi, f := range line.Frames {
			fbase := fmt.Sprintf("%s.frames.%d", base, fi)
			doc, err = sjson.Set(doc, fbase+".length_beats", f.LengthBeats)
			if err != nil {
				line.mu.RUnlock()
				return fmt.Errorf("failed to encode line %d frame %d: %w", li, fi, err)
			}
			doc, _ = sjson.Set(doc, fbase+".enabled", f.Enabled)
			doc, _ = sjson.Set(doc, fbase+".name", f.Name)
			doc, _ = sjson.Set(doc, fbase+".repetitions", f.Repetitions)
			doc, _ = sjson.Set(doc, fbase+".language", f.Script.Language)
			doc, _ = sjson.Set(doc, fbase+".source", f.Script.Content())
		}
		line.mu.RUnlock()
	}

	path := filepath.Join(ScenesDir, sanitizeFilename(name)+".json")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		return fmt.Errorf("failed to write scene file: %w", err)
	}
	return nil
}

// Load reads a previously Saved Scene back from ScenesDir. Compilation
// is not triggered here — the caller (the Scheduler's SetScene path)
// enqueues compilation for every script once the Scene is installed.
func Load(name string) (*Scene, error) {
	path := filepath.Join(ScenesDir, sanitizeFilename(name)+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("scene '%s' not found", name)
		}
		return nil, fmt.Errorf("failed to read scene file: %w", err)
	}

	root := gjson.ParseBytes(data)
	sc := NewScene()

	for _, lineJSON := range root.Get("lines").Array() {
		line := NewLine()
		line.Speed = orDefault(lineJSON.Get("speed").Float(), 1.0)
		line.CustomLoopBeats = lineJSON.Get("custom_loop_beats").Float()

		for _, frameJSON := range lineJSON.Get("frames").Array() {
			length := frameJSON.Get("length_beats").Float()
			if length <= 0 {
				continue // zero-length frames are rejected at load, same as at edit time
			}
			f := NewFrame(length)
			f.Enabled = frameJSON.Get("enabled").Bool()
			f.Name = frameJSON.Get("name").String()
			if reps := int(frameJSON.Get("repetitions").Int()); reps >= 1 {
				f.Repetitions = reps
			}
			f.Script = NewScript(frameJSON.Get("source").String(), frameJSON.Get("language").String())
			line.AddFrame(f)
		}
		sc.AddLine(line)
	}

	if err := sc.Normalize(); err != nil {
		return nil, fmt.Errorf("loaded scene '%s' failed normalization: %w", name, err)
	}
	return sc, nil
}

// List returns the names of every saved scene file.
func List() ([]string, error) {
	if _, err := os.Stat(ScenesDir); os.IsNotExist(err) {
		return []string{}, nil
	}
	entries, err := os.ReadDir(ScenesDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenes directory: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, strings.TrimSuffix(e.Name(), ".json"))
		}
	}
	return names, nil
}

func orDefault(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}

// sanitizeFilename mirrors the teacher's sequence.sanitizeFilename.
func sanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, " ", "_")
	var sb strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			sb.WriteRune(r)
		}
	}
	if sb.Len() == 0 {
		return "unnamed"
	}
	return sb.String()
}
