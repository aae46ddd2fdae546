package discord

import (
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"maps"
	"sort"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/tunebooth/datastore"
)

// commandHashes maps guild id to command name to definition hash, so
// unchanged commands are not re-created on every start.
type commandHashes = datastore.Store[map[string]string]

// hashCommand is a stable digest of the user-visible parts of a command.
func hashCommand(cmd *discordgo.ApplicationCommand) string {
	data, _ := json.Marshal(map[string]any{
		"name":        cmd.Name,
		"description": cmd.Description,
		"type":        cmd.Type,
		"options":     normalizeOptions(cmd.Options),
	})
	return fmt.Sprintf("%x", sha1.Sum(data))
}

func normalizeOptions(opts []*discordgo.ApplicationCommandOption) []map[string]any {
	out := make([]map[string]any, len(opts))
	for i, o := range opts {
		entry := map[string]any{
			"name":        o.Name,
			"description": o.Description,
			"type":        o.Type,
			"required":    o.Required,
		}
		if len(o.Choices) > 0 {
			choices := make([]map[string]any, len(o.Choices))
			for j, ch := range o.Choices {
				choices[j] = map[string]any{"name": ch.Name, "value": ch.Value}
			}
			entry["choices"] = choices
		}
		if len(o.Options) > 0 {
			entry["options"] = normalizeOptions(o.Options)
		}
		out[i] = entry
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i]["name"].(string) < out[j]["name"].(string)
	})
	return out
}

// registerCommands creates the bot's commands in guildID when they changed
// since the last registration.
func (b *Bot) registerCommands(guildID string) error {
	appID := b.dg.State.User.ID
	wanted := []*discordgo.ApplicationCommand{musicCommand(b.subcommands)}

	hashes := make(map[string]string)
	if prev, ok := b.hashes.Get(guildID); ok {
		maps.Copy(hashes, prev)
	}
	changed := false
	for _, cmd := range wanted {
		h := hashCommand(cmd)
		if hashes[cmd.Name] == h {
			continue
		}
		if _, err := b.dg.ApplicationCommandCreate(appID, guildID, cmd); err != nil {
			return fmt.Errorf("create command %s: %w", cmd.Name, err)
		}
		log.WithField("guild", guildID).WithField("command", cmd.Name).Info("command registered")
		hashes[cmd.Name] = h
		changed = true
	}
	if !changed {
		return nil
	}
	b.hashes.Set(guildID, hashes)
	return b.hashes.Save()
}
