package narration

import "fmt"

// Pipeline stage names carried by NarrationPipelineError.
const (
	StageSelect     = "select"
	StageWorkspace  = "workspace"
	StageSynthesize = "synthesize"
	StageStretch    = "stretch"
	StageAssemble   = "assemble"
	StageNormalize  = "normalize"
	StageWrite      = "write"
)

// NarrationPipelineError wraps every failure that aborts the narration pass.
// SceneID is zero for stages that are not per scene.
type NarrationPipelineError struct {
	Stage   string
	SceneID int
	Err     error
}

func (e *NarrationPipelineError) Error() string {
	if e.SceneID != 0 {
		return fmt.Sprintf("narration %s failed for scene %d: %v", e.Stage, e.SceneID, e.Err)
	}
	return fmt.Sprintf("narration %s failed: %v", e.Stage, e.Err)
}

func (e *NarrationPipelineError) Unwrap() error { return e.Err }

// SynthesisFailedError is a provider failure for one scene. It is fatal.
type SynthesisFailedError struct {
	SceneID int
	Backend string
	Err     error
}

func (e *SynthesisFailedError) Error() string {
	return fmt.Sprintf("%s could not synthesize scene %d: %v", e.Backend, e.SceneID, e.Err)
}

func (e *SynthesisFailedError) Unwrap() error { return e.Err }

// StretchFailedError is logged and recovered from: the segment keeps its
// natural timing.
type StretchFailedError struct {
	SceneID  int
	ExitCode int
	Stderr   string
}

func (e *StretchFailedError) Error() string {
	return fmt.Sprintf("stretch of scene %d failed (exit %d): %s", e.SceneID, e.ExitCode, e.Stderr)
}
