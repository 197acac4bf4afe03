package artifact

import (
	"github.com/robert-at-pretension-io/odogen/internal/schedule"
	"github.com/robert-at-pretension-io/odogen/internal/verilog"
)

// GeneratorName identifies manifests written by this tool.
const GeneratorName = "odogen"

// Manifest records what one generation produced: where the spec came
// from, the schedule, every module interface and the artifact digest.
type Manifest struct {
	Generator string              `json:"generator"`
	Seed      *uint32             `json:"seed,omitempty"`
	SpecFile  string              `json:"spec_file,omitempty"`
	Prefix    string              `json:"prefix"`
	Schedule  schedule.Params     `json:"schedule"`
	Modules   []verilog.Interface `json:"modules"`
	Artifact  Digest              `json:"artifact"`
}

// NewManifest describes a rendered module set.
func NewManifest(set *verilog.ModuleSet, digest Digest) *Manifest {
	return &Manifest{
		Generator: GeneratorName,
		Prefix:    set.Prefix,
		Schedule:  set.Schedule,
		Modules:   set.Interfaces(),
		Artifact:  digest,
	}
}
