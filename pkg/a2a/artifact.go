package a2a

import "github.com/google/uuid"

/*
Artifact is a named, ordered collection of Parts produced as task output.
*/
type Artifact struct {
	ID          string         `json:"artifactId"`
	Name        *string        `json:"name,omitempty"`
	Description *string        `json:"description,omitempty"`
	Parts       []Part         `json:"parts"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

func NewArtifact(name string, parts ...Part) Artifact {
	return Artifact{
		ID:    uuid.New().String(),
		Name:  &name,
		Parts: parts,
	}
}

func NewFileArtifact(name string, mimeType string, data string) Artifact {
	return Artifact{
		ID:   uuid.New().String(),
		Name: &name,
		Parts: []Part{
			{
				Type: PartTypeFile,
				File: &FilePart{
					MimeType: &mimeType,
					Data:     data,
				},
			},
		},
	}
}

// MergeAppend concatenates incoming.Parts onto a, preferring incoming's Name
// when set and unioning Metadata — the merge-by-id rule for
// ArtifactUpdate(append=true) in §4.3.
func (a Artifact) MergeAppend(incoming Artifact) Artifact {
	merged := a
	merged.Parts = append(append([]Part{}, a.Parts...), incoming.Parts...)

	if incoming.Name != nil {
		merged.Name = incoming.Name
	}

	if len(incoming.Metadata) > 0 {
		if merged.Metadata == nil {
			merged.Metadata = make(map[string]any, len(incoming.Metadata))
		}
		for k, v := range incoming.Metadata {
			merged.Metadata[k] = v
		}
	}

	return merged
}
