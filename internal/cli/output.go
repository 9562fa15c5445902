package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/Merdeus/dndinventory/internal/api/response"
	"github.com/Merdeus/dndinventory/internal/dispatch"
	"github.com/Merdeus/dndinventory/internal/model"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
}

// NewOutput creates a new Output formatter
func NewOutput(format string) *Output {
	return &Output{format: format}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintError outputs an error
func (o *Output) PrintError(err error) {
	if o.format == "json" {
		errData := map[string]any{
			"error": map[string]string{
				"message": err.Error(),
			},
		}
		data, _ := json.Marshal(errData)
		fmt.Fprintln(os.Stderr, string(data))
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		fmt.Println(string(data))
	} else {
		fmt.Println(msg)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case response.Health:
		o.printHealth(v)
	case dispatch.SessionPayload:
		o.printSession(v)
	case dispatch.GrantPayload:
		o.printGrant(v)
	case model.GameInfoPayload:
		o.printGameInfo(v)
	case dispatch.LootView:
		o.printLoot(v)
	case dispatch.ResolvedPayload:
		o.printResolved(v)
	case response.ActionResult:
		o.printActionResult(v)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

func (o *Output) printHealth(h response.Health) {
	fmt.Printf("Status: %s\n", h.Status)
	fmt.Printf("Connections: %d\n", h.Connections)
	fmt.Printf("Pending grants: %d\n", h.PendingGrants)
}

func (o *Output) printSession(s dispatch.SessionPayload) {
	fmt.Printf("Game: %s (id %d)\n", s.Game.Name, s.Game.ID)
	fmt.Printf("Join code: %s\n", s.Game.JoinCode)
	if len(s.Players) == 0 {
		fmt.Println("No characters yet")
		return
	}
	fmt.Printf("Characters (%d):\n", len(s.Players))
	for _, p := range s.Players {
		fmt.Printf("  - %s (id %d) %d gold\n", p.Name, p.ID, p.Gold)
	}
}

func (o *Output) printGrant(g dispatch.GrantPayload) {
	if g.PlayerID == model.DMPlayerID {
		fmt.Println("Role: DM")
	} else {
		fmt.Printf("Player: %d\n", g.PlayerID)
	}
	fmt.Printf("Registration token: %s\n", g.RegistrationToken)
}

func (o *Output) printGameInfo(info model.GameInfoPayload) {
	fmt.Printf("Game: %s (id %d)\n", info.Game.Name, info.Game.ID)
	selling := "disabled"
	if info.Game.SellingAllowed {
		selling = "allowed"
	}
	fmt.Printf("Selling: %s\n", selling)

	for _, p := range info.Players {
		fmt.Printf("  - %s (id %d) %d gold\n", p.Name, p.ID, p.Gold)
		if inv, ok := info.Inventories[p.ID]; ok {
			o.printInventory(inv.Inventory, "      ")
		}
	}
	if info.Inventory != nil {
		fmt.Println("\nYour inventory:")
		o.printInventory(info.Inventory, "  ")
	}
}

func (o *Output) printInventory(items map[model.ItemID]model.ItemView, indent string) {
	ids := make([]model.ItemID, 0, len(items))
	for id := range items {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		item := items[id]
		fmt.Printf("%s[%d] %s x%d (%s)\n", indent, id, item.Name, item.Count, item.Rarity)
	}
}

func (o *Output) printLoot(l dispatch.LootView) {
	fmt.Printf("Phase: %s\n", l.Phase)
	fmt.Printf("Gold: %d\n", l.Gold)
	if len(l.Eligible) > 0 {
		fmt.Printf("Eligible: %s\n", joinIDs(l.Eligible))
	}
	if len(l.Finished) > 0 {
		fmt.Printf("Done: %s\n", joinIDs(l.Finished))
	}
	if len(l.Items) == 0 {
		fmt.Println("Pool is empty")
		return
	}
	fmt.Printf("Items (%d):\n", len(l.Items))
	for _, e := range l.Items {
		line := fmt.Sprintf("  [%d] %s (%s)", e.LootID, e.Name, e.Rarity)
		if len(e.Claims) > 0 {
			line += " claimed by " + joinIDs(e.Claims)
		}
		if len(e.Votes) > 0 {
			line += fmt.Sprintf(", %d votes", len(e.Votes))
		}
		fmt.Println(line)
	}
}

func (o *Output) printResolved(r dispatch.ResolvedPayload) {
	if r.Resolution == nil {
		fmt.Println("Nothing resolved")
		return
	}
	for _, a := range r.Awards {
		fmt.Printf("  [%d] -> player %d (%s)\n", a.LootID, a.Winner, a.Method)
	}
	for _, a := range r.Skipped {
		fmt.Printf("  [%d] skipped\n", a.LootID)
	}
	fmt.Printf("Gold: %d each", r.GoldShare)
	if r.GoldRemainder > 0 {
		fmt.Printf(", %d left over", r.GoldRemainder)
	}
	fmt.Println()
}

func (o *Output) printActionResult(r response.ActionResult) {
	if r.Message != "" {
		fmt.Println(r.Message)
	} else {
		fmt.Println("OK")
	}
	if len(r.Data) > 0 && string(r.Data) != "null" {
		fmt.Println(string(r.Data))
	}
}

func joinIDs(ids []model.PlayerID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprint(int64(id))
	}
	return strings.Join(parts, ", ")
}
