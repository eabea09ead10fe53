package graph

import (
	"testing"

	"github.com/flowbaker/weave/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func TestIsValidConnection(t *testing.T) {
	text := domain.Node{ID: "text", Kind: domain.NodeKindText}
	prompt := domain.Node{ID: "prompt", Kind: domain.NodeKindPrompt}
	image := domain.Node{ID: "image", Kind: domain.NodeKindImageUpload}
	video := domain.Node{ID: "video", Kind: domain.NodeKindVideoUpload}
	crop := domain.Node{ID: "crop", Kind: domain.NodeKindCropImage}
	frame := domain.Node{ID: "frame", Kind: domain.NodeKindExtractFrame}
	llm := domain.Node{ID: "llm", Kind: domain.NodeKindRunLLM}
	otherLLM := domain.Node{ID: "llm-2", Kind: domain.NodeKindRunLLM}
	otherFrame := domain.Node{ID: "frame-2", Kind: domain.NodeKindExtractFrame}

	tests := []struct {
		name         string
		source       domain.Node
		sourceHandle string
		target       domain.Node
		targetHandle string
		expected     bool
	}{
		{name: "text into prompt", source: text, sourceHandle: "text", target: llm, targetHandle: "prompt", expected: true},
		{name: "text into system", source: text, sourceHandle: "text", target: llm, targetHandle: "system", expected: true},
		{name: "prompt node into prompt", source: prompt, sourceHandle: "prompt", target: llm, targetHandle: "prompt", expected: true},
		{name: "image into llm image", source: image, sourceHandle: "image", target: llm, targetHandle: "image", expected: true},
		{name: "crop output into llm image", source: crop, sourceHandle: "image", target: llm, targetHandle: "image", expected: true},
		{name: "frame output into crop", source: frame, sourceHandle: "image", target: crop, targetHandle: "image", expected: true},
		{name: "video into frame", source: video, sourceHandle: "video", target: frame, targetHandle: "video", expected: true},
		{name: "llm result into another llm prompt", source: llm, sourceHandle: "result", target: otherLLM, targetHandle: "prompt", expected: true},
		{name: "text into llm image", source: text, sourceHandle: "text", target: llm, targetHandle: "image", expected: false},
		{name: "llm result into llm image", source: llm, sourceHandle: "result", target: otherLLM, targetHandle: "image", expected: false},
		{name: "image into prompt", source: image, sourceHandle: "image", target: llm, targetHandle: "prompt", expected: false},
		{name: "image into system", source: image, sourceHandle: "image", target: llm, targetHandle: "system", expected: false},
		{name: "video into crop", source: video, sourceHandle: "video", target: crop, targetHandle: "image", expected: false},
		{name: "image into frame", source: image, sourceHandle: "image", target: frame, targetHandle: "video", expected: false},
		{name: "undeclared source handle", source: text, sourceHandle: "output", target: llm, targetHandle: "prompt", expected: false},
		{name: "undeclared target handle", source: text, sourceHandle: "text", target: llm, targetHandle: "image1", expected: false},
		{name: "input handle used as source", source: frame, sourceHandle: "video", target: otherFrame, targetHandle: "video", expected: false},
		{name: "unknown kind", source: domain.Node{ID: "x", Kind: "audio"}, sourceHandle: "text", target: llm, targetHandle: "prompt", expected: false},
		{name: "self connection", source: llm, sourceHandle: "result", target: llm, targetHandle: "prompt", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsValidConnection(tt.source, tt.sourceHandle, tt.target, tt.targetHandle))
		})
	}
}
