package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newActionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "action <name> [key=value...]",
		Short: "Submit any action with the saved command token",
		Long: `Submit a raw action. Values that parse as JSON are sent as JSON
(numbers, booleans, objects), anything else is sent as a string.

Examples:
  dndinv action CreatePlayer player_name=Tasha gold=25
  dndinv action GiveItem item_id=3 player_id=1
  dndinv action CreateItem 'item={"name":"Rope","rarity":0,"itemType":3,"value":1}'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fields, err := parseFields(args[1:])
			if err != nil {
				return err
			}

			result, err := client.Action(args[0], fields, nil)
			if err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(*result)
			return nil
		},
	}
}

// parseFields turns key=value arguments into action fields
func parseFields(args []string) (map[string]any, error) {
	fields := make(map[string]any, len(args))
	for _, arg := range args {
		key, raw, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid field %q: want key=value", arg)
		}
		var value any
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			value = raw
		}
		fields[key] = value
	}
	return fields, nil
}
