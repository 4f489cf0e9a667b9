// Package reconstruct turns a captured image into a mesh by running an
// external pipeline executable.
//
// Pipelines live in subdirectories of a pipeline directory, each with a
// pipeline.json manifest. The executable receives a Request as JSON on
// stdin and answers with a Response as JSON on stdout.
package reconstruct

// ManifestFile is the manifest name looked up in each pipeline directory.
const ManifestFile = "pipeline.json"

// Manifest describes a pipeline.
type Manifest struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description"`
	Executable  string `json:"executable"`
}

// Request is sent to a pipeline on stdin.
type Request struct {
	Image     string `json:"image"`
	OutputDir string `json:"output_dir"`
}

// Response is read from a pipeline's stdout. Mesh is the produced .obj
// file, absolute or relative to the request's OutputDir.
type Response struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Mesh    string `json:"mesh,omitempty"`
}

// Pipeline is a discovered pipeline and where it lives.
type Pipeline struct {
	Manifest   Manifest `json:"manifest"`
	Path       string   `json:"path"`
	Executable string   `json:"executable"`
}
