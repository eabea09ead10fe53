package domain

type Capability string

const (
	CapabilityText  Capability = "text"
	CapabilityImage Capability = "image"
	CapabilityVideo Capability = "video"
)

const (
	HandleText   = "text"
	HandlePrompt = "prompt"
	HandleSystem = "system"
	HandleImage  = "image"
	HandleVideo  = "video"
	HandleResult = "result"
)

// Live data fields written by nodes and read through output handles.
const (
	FieldText      = "text"
	FieldImageURL  = "imageUrl"
	FieldMediaURL  = "mediaUrl"
	FieldMediaType = "mediaType"
	FieldResult    = "result"
)

type InputHandle struct {
	ID         string
	Capability Capability
	Required   bool
}

type OutputHandle struct {
	ID         string
	Capability Capability
	Field      string
}

type NodeHandles struct {
	Kind    NodeKind
	Inputs  []InputHandle
	Outputs []OutputHandle
}

var nodeHandles = map[NodeKind]NodeHandles{
	NodeKindText: {
		Kind:    NodeKindText,
		Outputs: []OutputHandle{{ID: HandleText, Capability: CapabilityText, Field: FieldText}},
	},
	NodeKindPrompt: {
		Kind:    NodeKindPrompt,
		Outputs: []OutputHandle{{ID: HandlePrompt, Capability: CapabilityText, Field: FieldText}},
	},
	NodeKindImageUpload: {
		Kind:    NodeKindImageUpload,
		Outputs: []OutputHandle{{ID: HandleImage, Capability: CapabilityImage, Field: FieldImageURL}},
	},
	NodeKindCropImage: {
		Kind:    NodeKindCropImage,
		Inputs:  []InputHandle{{ID: HandleImage, Capability: CapabilityImage, Required: true}},
		Outputs: []OutputHandle{{ID: HandleImage, Capability: CapabilityImage, Field: FieldImageURL}},
	},
	NodeKindVideoUpload: {
		Kind:    NodeKindVideoUpload,
		Outputs: []OutputHandle{{ID: HandleVideo, Capability: CapabilityVideo, Field: FieldMediaURL}},
	},
	NodeKindExtractFrame: {
		Kind:    NodeKindExtractFrame,
		Inputs:  []InputHandle{{ID: HandleVideo, Capability: CapabilityVideo, Required: true}},
		Outputs: []OutputHandle{{ID: HandleImage, Capability: CapabilityImage, Field: FieldImageURL}},
	},
	NodeKindRunLLM: {
		Kind: NodeKindRunLLM,
		Inputs: []InputHandle{
			{ID: HandleSystem, Capability: CapabilityText},
			{ID: HandlePrompt, Capability: CapabilityText, Required: true},
			{ID: HandleImage, Capability: CapabilityImage},
		},
		Outputs: []OutputHandle{{ID: HandleResult, Capability: CapabilityText, Field: FieldResult}},
	},
}

func GetNodeHandles(kind NodeKind) (NodeHandles, bool) {
	handles, ok := nodeHandles[kind]

	return handles, ok
}

func (s NodeHandles) Input(handleID string) (InputHandle, bool) {
	for _, input := range s.Inputs {
		if input.ID == handleID {
			return input, true
		}
	}

	return InputHandle{}, false
}

func (s NodeHandles) Output(handleID string) (OutputHandle, bool) {
	for _, output := range s.Outputs {
		if output.ID == handleID {
			return output, true
		}
	}

	return OutputHandle{}, false
}
