package domain

import (
	"encoding/json"
	"fmt"
)

type NodeKind string

const (
	NodeKindText         NodeKind = "text"
	NodeKindPrompt       NodeKind = "prompt"
	NodeKindImageUpload  NodeKind = "image-upload"
	NodeKindCropImage    NodeKind = "crop-image"
	NodeKindVideoUpload  NodeKind = "video-upload"
	NodeKindExtractFrame NodeKind = "extract-frame"
	NodeKindRunLLM       NodeKind = "run-llm"
)

var NodeKinds = []NodeKind{
	NodeKindText,
	NodeKindPrompt,
	NodeKindImageUpload,
	NodeKindCropImage,
	NodeKindVideoUpload,
	NodeKindExtractFrame,
	NodeKindRunLLM,
}

func (k NodeKind) IsValid() bool {
	for _, kind := range NodeKinds {
		if kind == k {
			return true
		}
	}

	return false
}

type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Node struct {
	ID       string
	Kind     NodeKind
	Position Position
	Data     NodeData
}

// NodeData is the static configuration of a node. Each kind has exactly one
// implementation, held by value so that copying a Node copies its data.
type NodeData interface {
	NodeKind() NodeKind
}

type TextData struct {
	Text string `json:"text"`
}

func (TextData) NodeKind() NodeKind { return NodeKindText }

type PromptData struct {
	Prompt string `json:"prompt"`
}

func (PromptData) NodeKind() NodeKind { return NodeKindPrompt }

type ImageUploadData struct {
	ImageURL string `json:"imageUrl,omitempty"`
}

func (ImageUploadData) NodeKind() NodeKind { return NodeKindImageUpload }

// CropImageData holds the crop rectangle as percentages of the source image.
type CropImageData struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (CropImageData) NodeKind() NodeKind { return NodeKindCropImage }

type VideoUploadData struct {
	MediaURL  string `json:"mediaUrl,omitempty"`
	MediaType string `json:"mediaType,omitempty"`
}

func (VideoUploadData) NodeKind() NodeKind { return NodeKindVideoUpload }

// ExtractFrameData holds the frame offset in seconds.
type ExtractFrameData struct {
	Timestamp float64 `json:"timestamp"`
}

func (ExtractFrameData) NodeKind() NodeKind { return NodeKindExtractFrame }

type RunLLMData struct {
	Model string `json:"model,omitempty"`
}

func (RunLLMData) NodeKind() NodeKind { return NodeKindRunLLM }

func DefaultNodeData(kind NodeKind) (NodeData, error) {
	switch kind {
	case NodeKindText:
		return TextData{}, nil
	case NodeKindPrompt:
		return PromptData{}, nil
	case NodeKindImageUpload:
		return ImageUploadData{}, nil
	case NodeKindCropImage:
		return CropImageData{X: 0, Y: 0, Width: 100, Height: 100}, nil
	case NodeKindVideoUpload:
		return VideoUploadData{}, nil
	case NodeKindExtractFrame:
		return ExtractFrameData{}, nil
	case NodeKindRunLLM:
		return RunLLMData{}, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownNodeKind, kind)
}

// DecodeNodeData decodes raw JSON into the data variant of kind. Empty input
// yields the kind's defaults.
func DecodeNodeData(kind NodeKind, raw json.RawMessage) (NodeData, error) {
	data, err := DefaultNodeData(kind)
	if err != nil {
		return nil, err
	}

	if len(raw) == 0 || string(raw) == "null" {
		return data, nil
	}

	switch d := data.(type) {
	case TextData:
		err = json.Unmarshal(raw, &d)
		data = d
	case PromptData:
		err = json.Unmarshal(raw, &d)
		data = d
	case ImageUploadData:
		err = json.Unmarshal(raw, &d)
		data = d
	case CropImageData:
		err = json.Unmarshal(raw, &d)
		data = d
	case VideoUploadData:
		err = json.Unmarshal(raw, &d)
		data = d
	case ExtractFrameData:
		err = json.Unmarshal(raw, &d)
		data = d
	case RunLLMData:
		err = json.Unmarshal(raw, &d)
		data = d
	}

	if err != nil {
		return nil, fmt.Errorf("failed to decode %s node data: %w", kind, err)
	}

	return data, nil
}

type nodeJSON struct {
	ID       string          `json:"id"`
	Kind     NodeKind        `json:"kind"`
	Position Position        `json:"position"`
	Data     json.RawMessage `json:"data,omitempty"`
}

func (n Node) MarshalJSON() ([]byte, error) {
	var raw json.RawMessage

	if n.Data != nil {
		encoded, err := json.Marshal(n.Data)
		if err != nil {
			return nil, err
		}

		raw = encoded
	}

	return json.Marshal(nodeJSON{
		ID:       n.ID,
		Kind:     n.Kind,
		Position: n.Position,
		Data:     raw,
	})
}

func (n *Node) UnmarshalJSON(b []byte) error {
	var decoded nodeJSON

	if err := json.Unmarshal(b, &decoded); err != nil {
		return err
	}

	data, err := DecodeNodeData(decoded.Kind, decoded.Data)
	if err != nil {
		return err
	}

	n.ID = decoded.ID
	n.Kind = decoded.Kind
	n.Position = decoded.Position
	n.Data = data

	return nil
}
