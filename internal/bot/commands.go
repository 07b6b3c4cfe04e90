package bot

import "github.com/bwmarrin/discordgo"

func (b *Bot) registerCommands() error {
	manageMessages := int64(discordgo.PermissionManageMessages)
	dmPermission := false

	commands := []*discordgo.ApplicationCommand{
		{
			Name:        "adhistory",
			Description: "Show the servers a member advertised recently",
			DescriptionLocalizations: &map[discordgo.Locale]string{
				discordgo.EnglishUS: "Show the servers a member advertised recently",
				discordgo.Japanese:  "メンバーが最近宣伝したサーバーを表示",
			},
			DefaultMemberPermissions: &manageMessages,
			DMPermission:             &dmPermission,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "Member to look up",
					DescriptionLocalizations: map[discordgo.Locale]string{
						discordgo.EnglishUS: "Member to look up",
						discordgo.Japanese:  "対象のメンバー",
					},
					Required: true,
				},
			},
		},
	}

	appID := b.session.State.User.ID
	existing, err := b.session.ApplicationCommands(appID, "")
	if err != nil {
		for _, cmd := range commands {
			if _, err := b.session.ApplicationCommandCreate(appID, "", cmd); err != nil {
				return err
			}
		}
		return nil
	}

	existingByName := make(map[string]*discordgo.ApplicationCommand)
	for _, cmd := range existing {
		existingByName[cmd.Name] = cmd
	}

	desired := make(map[string]struct{})
	for _, cmd := range commands {
		desired[cmd.Name] = struct{}{}
		if current, ok := existingByName[cmd.Name]; ok {
			if _, err := b.session.ApplicationCommandEdit(appID, "", current.ID, cmd); err != nil {
				return err
			}
			continue
		}
		if _, err := b.session.ApplicationCommandCreate(appID, "", cmd); err != nil {
			return err
		}
	}

	for _, cmd := range existing {
		if _, ok := desired[cmd.Name]; ok {
			continue
		}
		_ = b.session.ApplicationCommandDelete(appID, "", cmd.ID)
	}
	return nil
}
