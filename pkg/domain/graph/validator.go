package graph

import "github.com/flowbaker/weave/pkg/domain"

var compatibleCapabilities = map[domain.Capability]domain.Capability{
	domain.CapabilityText:  domain.CapabilityText,
	domain.CapabilityImage: domain.CapabilityImage,
	domain.CapabilityVideo: domain.CapabilityVideo,
}

// IsValidConnection reports whether sourceHandle of source may feed
// targetHandle of target. Handles must be declared by their node kinds and
// carry the same capability; anything else is rejected.
func IsValidConnection(source domain.Node, sourceHandle string, target domain.Node, targetHandle string) bool {
	if source.ID == target.ID {
		return false
	}

	sourceHandles, ok := domain.GetNodeHandles(source.Kind)
	if !ok {
		return false
	}

	targetHandles, ok := domain.GetNodeHandles(target.Kind)
	if !ok {
		return false
	}

	output, ok := sourceHandles.Output(sourceHandle)
	if !ok {
		return false
	}

	input, ok := targetHandles.Input(targetHandle)
	if !ok {
		return false
	}

	accepted, ok := compatibleCapabilities[output.Capability]
	if !ok {
		return false
	}

	return accepted == input.Capability
}
