package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Merdeus/dndinventory/internal/dispatch"
	"github.com/Merdeus/dndinventory/internal/model"
)

func newSelectCmd() *cobra.Command {
	var dmPass string

	cmd := &cobra.Command{
		Use:   "select <game-id> <player-id|dm>",
		Short: "Pick a character (or the DM role) and get a registration token",
		Long: `Request a registration grant for a character. The printed registration
token opens the event stream with "events"; it is single use and expires
quickly.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			gameID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid game id: %w", err)
			}
			playerID, err := parsePlayerID(args[1])
			if err != nil {
				return err
			}
			if playerID == model.DMPlayerID && dmPass == "" {
				return fmt.Errorf("--dm-pass is required to select the DM")
			}

			fields := map[string]any{"gameid": gameID, "playerid": playerID, "dm_pass": dmPass}
			var result dispatch.GrantPayload

			if _, err := client.Action("selectPlayer", fields, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&dmPass, "dm-pass", "", "DM password, when selecting the DM")

	return cmd
}

func newResyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resync [credential]",
		Short: "Trade a resume credential for a new registration token",
		Long: `Resume a previous identity after a disconnect. Without an argument the
credential saved by the last "events" run is used.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var credential string
			if len(args) == 1 {
				credential = args[0]
			} else {
				saved, err := cfg.LoadCredential()
				if err != nil {
					return err
				}
				credential = saved
			}
			if credential == "" {
				return fmt.Errorf("no resume credential: pass one or run \"events\" first")
			}

			var result dispatch.GrantPayload

			if _, err := client.Action("resync", map[string]any{"credential": credential}, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}
}

// parsePlayerID accepts a numeric id or "dm"
func parsePlayerID(s string) (model.PlayerID, error) {
	if strings.EqualFold(s, "dm") {
		return model.DMPlayerID, nil
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid player id %q: %w", s, err)
	}
	return model.PlayerID(id), nil
}
