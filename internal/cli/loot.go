package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Merdeus/dndinventory/internal/dispatch"
	"github.com/Merdeus/dndinventory/internal/model"
)

func newLootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "loot",
		Short: "Loot round commands",
		Long: `Run a loot round. The DM fills the pool (add, generate, gold), hands
it out (distribute), and resolves it once players have claimed, voted and
marked themselves done.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := cmd.Root().PersistentPreRunE(cmd, args); err != nil {
				return err
			}
			if cfg.Token == "" {
				return errNoToken
			}
			return nil
		},
	}

	cmd.AddCommand(
		newLootIDCmd("add <prefab-id>", "Add an item prefab to the pool (DM)", "AddLootItem", "item_id"),
		newLootIDCmd("remove <loot-id>", "Remove an entry from the pool (DM)", "RemoveLootItem", "loot_id"),
		newLootIDCmd("gold <amount>", "Set the pool's gold (DM)", "SetLootGold", "loot_gold"),
		newLootIDCmd("claim <loot-id>", "Toggle your claim on an entry", "ClaimLootItem", "loot_id"),
		newLootSimpleCmd("clear", "Empty the pool and start over (DM)", "ClearLoot"),
		newLootSimpleCmd("next", "Advance the pool to its next phase (DM)", "NextLootPhase"),
		newLootSimpleCmd("done", "Mark yourself done with the current phase", "LootPhaseDone"),
		newLootSimpleCmd("show", "Show the pool", "GetLoot"),
		newLootGenerateCmd(),
		newLootDistributeCmd(),
		newLootVoteCmd(),
		newLootResolveCmd(),
	)

	return cmd
}

// lootAction submits a loot action and prints the resulting pool
func lootAction(name string, fields map[string]any) error {
	var view dispatch.LootView

	result, err := client.Action(name, fields, &view)
	if err != nil {
		return err
	}

	out := NewOutput(cfg.Output)
	if result.Message != "" && cfg.Output != "json" {
		out.PrintMessage(result.Message)
	}
	out.Print(view)
	return nil
}

func newLootIDCmd(use, short, action, field string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", field, err)
			}
			return lootAction(action, map[string]any{field: n})
		},
	}
}

func newLootSimpleCmd(use, short, action string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return lootAction(action, nil)
		},
	}
}

func newLootGenerateCmd() *cobra.Command {
	var preset int

	cmd := &cobra.Command{
		Use:   "generate [rarity=count...]",
		Short: "Add random prefabs by rarity (DM)",
		Long: `Add random prefabs from the game's catalogue. Either name a preset tier
or give counts per rarity:

  dndinv loot generate --preset 2
  dndinv loot generate common=3 rare=1`,
		RunE: func(cmd *cobra.Command, args []string) error {
			fields := map[string]any{}
			if cmd.Flags().Changed("preset") {
				fields["preset"] = preset
			}

			counts := make(map[string]int, len(args))
			for _, arg := range args {
				rarity, raw, ok := strings.Cut(arg, "=")
				if !ok {
					return fmt.Errorf("invalid count %q: want rarity=count", arg)
				}
				if _, known := model.ParseRarity(rarity); !known {
					return fmt.Errorf("unknown rarity %q", rarity)
				}
				n, err := strconv.Atoi(raw)
				if err != nil {
					return fmt.Errorf("invalid count for %s: %w", rarity, err)
				}
				counts[rarity] = n
			}
			if len(counts) > 0 {
				fields["count_list"] = counts
			}
			if len(fields) == 0 {
				return fmt.Errorf("give --preset or at least one rarity=count")
			}

			return lootAction("GenerateLootItems", fields)
		},
	}

	cmd.Flags().IntVar(&preset, "preset", 0, "Preset tier")

	return cmd
}

func newLootDistributeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "distribute <player-id...>",
		Short: "Open the claim phase for these players (DM)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			players := make([]model.PlayerID, 0, len(args))
			for _, arg := range args {
				id, err := parsePlayerID(arg)
				if err != nil {
					return err
				}
				players = append(players, id)
			}
			return lootAction("DistributeLoot", map[string]any{"players": players})
		},
	}
}

func newLootVoteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "vote <loot-id> <player-id>",
		Short: "Vote for a claimant of a contested entry",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			lootID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid loot id: %w", err)
			}
			playerID, err := parsePlayerID(args[1])
			if err != nil {
				return err
			}
			return lootAction("VoteLootItem", map[string]any{"loot_id": lootID, "player_id": playerID})
		},
	}
}

func newLootResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve",
		Short: "Distribute a concluded round into inventories (DM)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var result dispatch.ResolvedPayload

			if _, err := client.Action("ResolveLoot", nil, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}
}
