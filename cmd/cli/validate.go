package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/flowbaker/weave/pkg/domain"
	"github.com/flowbaker/weave/pkg/domain/graph"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func NewValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Validate a workflow snapshot",
		Long: `Load a workflow snapshot from a JSON or YAML file, check its nodes and connections,
and report required inputs that are not connected.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read snapshot: %w", err)
			}

			snapshot, err := decodeSnapshot(data)
			if err != nil {
				return err
			}

			store := graph.NewStore()
			if err := store.Load(snapshot); err != nil {
				return fmt.Errorf("invalid snapshot: %w", err)
			}

			out := cmd.OutOrStdout()

			missing := missingInputs(store)
			for _, message := range missing {
				fmt.Fprintf(out, "warning: %s\n", message)
			}

			fmt.Fprintf(out, "ok: %d nodes, %d edges\n", len(snapshot.Nodes), len(snapshot.Edges))

			return nil
		},
	}

	return cmd
}

// decodeSnapshot accepts JSON, or YAML converted to JSON so that node data
// goes through the same decoding as the API.
func decodeSnapshot(data []byte) (domain.Snapshot, error) {
	if !json.Valid(data) {
		var document any
		if err := yaml.Unmarshal(data, &document); err != nil {
			return domain.Snapshot{}, fmt.Errorf("failed to parse snapshot: %w", err)
		}

		converted, err := json.Marshal(document)
		if err != nil {
			return domain.Snapshot{}, fmt.Errorf("failed to convert snapshot: %w", err)
		}

		data = converted
	}

	var snapshot domain.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return domain.Snapshot{}, fmt.Errorf("failed to decode snapshot: %w", err)
	}

	return snapshot, nil
}

func missingInputs(store *graph.Store) []string {
	var missing []string

	for _, node := range store.Nodes() {
		handles, ok := domain.GetNodeHandles(node.Kind)
		if !ok {
			continue
		}

		for _, input := range handles.Inputs {
			if !input.Required {
				continue
			}

			if _, connected := store.IncomingEdge(node.ID, input.ID); !connected {
				missing = append(missing, fmt.Sprintf("node %s (%s) has no %s input", node.ID, node.Kind, input.ID))
			}
		}
	}

	return missing
}
