package project

import (
	"github.com/zurustar/bubocore/internal/device"
	"github.com/zurustar/bubocore/internal/lang"
	"github.com/zurustar/bubocore/internal/scene"
)

// Build reconstructs a live *scene.Scene from a loaded Snapshot and its
// accompanying script contents, recompiling every script against langs so
// the scene.Script invariant (exactly one of Compiled/Error set) holds
// immediately, without waiting for the first playback crossing.
func Build(snap Snapshot, scripts map[ScriptRef]string, langs *lang.Registry) *scene.Scene {
	scn := scene.New(snap.Scene.Length)
	for lineIdx, lineSnap := range snap.Scene.Lines {
		_ = scn.InsertLine(lineIdx)
		for frameIdx, frameSnap := range lineSnap.Frames {
			_ = scn.InsertFrame(lineIdx, frameIdx, frameSnap.Length)
			_ = scn.SetEnabled(lineIdx, frameIdx, frameSnap.Enabled)
			for _, language := range frameSnap.Scripts {
				ref := ScriptRef{Line: lineIdx, Frame: frameIdx, Language: language}
				content := scripts[ref]
				scn.SetScript(lineIdx, frameIdx, language, compileScript(langs, lineIdx, frameIdx, language, content))
			}
		}
		_ = scn.SetLineLength(lineIdx, lineSnap.LengthOverride)
		_ = scn.SetLineSpeed(lineIdx, orDefault(lineSnap.SpeedFactor, 1.0))
		_ = scn.SetPlayRange(lineIdx, lineSnap.StartFrame, lineSnap.EndFrame)
	}
	return scn
}

func compileScript(langs *lang.Registry, lineIdx, frameIdx int, language, content string) *scene.Script {
	script := &scene.Script{Language: language, Content: content}
	program, cerr := langs.Compile(language, content, lang.CompileContext{
		Language: language, Line: lineIdx, Frame: frameIdx,
	})
	if cerr != nil {
		script.Error = cerr
		return script
	}
	script.Compiled = program
	return script
}

func orDefault(f, def float64) float64 {
	if f <= 0 {
		return def
	}
	return f
}

// ToSnapshot projects live scene/clock/device state into the serializable
// Snapshot form, splitting script content out into a side map so Store.Save
// can write it as separate scripts/ files rather than inline JSON.
func ToSnapshot(scn *scene.Scene, tempo, beat float64, micros uint64, quantum float64, devices []device.OutputSnapshot) (Snapshot, map[ScriptRef]string) {
	scripts := make(map[ScriptRef]string)
	snap := Snapshot{
		Scene:   SceneSnapshot{Length: scn.Length()},
		Tempo:   tempo,
		Beat:    beat,
		Micros:  micros,
		Quantum: quantum,
		Devices: devices,
	}
	for i := 0; i < scn.LineCount(); i++ {
		line, err := scn.Line(i)
		if err != nil {
			continue
		}
		lineSnap := LineSnapshot{
			StartFrame:     line.StartFrame,
			EndFrame:       line.EndFrame,
			LengthOverride: line.LengthOverride,
			SpeedFactor:    line.SpeedFactor,
		}
		for frameIdx, frame := range line.Frames {
			frameSnap := FrameSnapshot{Length: frame.Length, Enabled: frame.Enabled}
			for language, script := range frame.Scripts {
				if script.Content == "" {
					continue
				}
				frameSnap.Scripts = append(frameSnap.Scripts, language)
				scripts[ScriptRef{Line: i, Frame: frameIdx, Language: language}] = script.Content
			}
			lineSnap.Frames = append(lineSnap.Frames, frameSnap)
		}
		snap.Scene.Lines = append(snap.Scene.Lines, lineSnap)
	}
	return snap, scripts
}
