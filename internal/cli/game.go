package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Merdeus/dndinventory/internal/dispatch"
	"github.com/Merdeus/dndinventory/internal/model"
)

func newGameCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "game",
		Short: "Game commands",
	}

	cmd.AddCommand(newGameCreateCmd())
	cmd.AddCommand(newGameJoinCmd())
	cmd.AddCommand(newGameInfoCmd())

	return cmd
}

func newGameCreateCmd() *cobra.Command {
	var description, dmPass string

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a game and print its join code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result dispatch.SessionPayload

			fields := map[string]any{"name": args[0], "description": description, "dm_pass": dmPass}
			if _, err := client.Action("createSession", fields, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&description, "description", "", "Game description")
	cmd.Flags().StringVar(&dmPass, "dm-pass", "", "DM password (required)")
	_ = cmd.MarkFlagRequired("dm-pass")

	return cmd
}

func newGameJoinCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "join <code>",
		Short: "Look up a game by join code and list its characters",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result dispatch.SessionPayload

			if _, err := client.Action("joinSession", map[string]any{"code": args[0]}, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}
}

func newGameInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Request the game state for the current connection",
		Long: `Ask the server to push game_info (and item_list for the DM) on the
event stream of the current command token.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Token == "" {
				return errNoToken
			}
			var result model.GameInfoPayload

			if _, err := client.Action("GetGameInfo", nil, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}
}

var errNoToken = fmt.Errorf("no command token: run \"events <registration-token>\" first or pass --token")
