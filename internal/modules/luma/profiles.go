package luma

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/Trust-Square/luma-mcp-server/internal/broker"
	"github.com/Trust-Square/luma-mcp-server/internal/modules"
	"github.com/Trust-Square/luma-mcp-server/internal/observability"
	"github.com/Trust-Square/luma-mcp-server/pkg/lumaapi"
)

// =============================================================================
// Profiles
// =============================================================================

func (m *Module) configureProfile(ctx context.Context, params map[string]any) (string, error) {
	p := broker.Profile{
		Name:        strings.TrimSpace(modules.String(params, "name")),
		APIKey:      strings.TrimSpace(modules.String(params, "api_key")),
		Description: modules.String(params, "description"),
	}
	setDefault := modules.Bool(params, "set_as_default", false)

	var warning string
	if modules.Bool(params, "validate", true) {
		warning = m.validateKey(ctx, p)
	}

	res, err := m.session.Store().Upsert(ctx, p, setDefault)
	if err != nil {
		return "", err
	}
	modules.SetProfile(ctx, p.Name)
	observability.LogProfileEvent(observability.RequestID(ctx), "configured", p.Name, map[string]any{
		"created": res.Created,
		"default": res.IsDefault,
	})

	action := "updated"
	if res.Created {
		action = "created"
	}
	stored, _ := m.session.Store().Get(p.Name)

	var sb strings.Builder
	fmt.Fprintf(&sb, "✅ Calendar profile %q %s.\n\n", p.Name, action)
	fmt.Fprintf(&sb, "- Description: %s\n", firstNonEmpty("None", stored.Description))
	fmt.Fprintf(&sb, "- API Key: %s\n", maskKey(p.APIKey))
	fmt.Fprintf(&sb, "- Default: %s", yesNo(res.IsDefault))
	if warning != "" {
		sb.WriteString("\n\n" + warning)
	}
	return sb.String(), nil
}

// validateKey issues a minimal listing with the new key. Failures only
// produce a warning; the profile is saved regardless.
func (m *Module) validateKey(ctx context.Context, p broker.Profile) string {
	client, err := m.session.NewClient(p.APIKey)
	if err == nil {
		_, err = client.ListEvents(ctx, lumaapi.ListEventsParams{Limit: 1})
	}
	switch {
	case err == nil:
		return ""
	case lumaapi.IsKind(err, lumaapi.KindUnauthorized):
		log.Printf("[luma] profile %q: API key rejected by Lu.ma", p.Name)
		return "⚠️ Warning: the API key was rejected by Lu.ma (401 Unauthorized). It may be invalid or lack permissions. The profile was saved anyway."
	default:
		log.Printf("[luma] profile %q: could not validate API key: %v", p.Name, err)
		return fmt.Sprintf("⚠️ Could not validate the API key: %v. The profile was saved anyway.", err)
	}
}

func (m *Module) listProfiles(ctx context.Context, params map[string]any) (string, error) {
	store := m.session.Store()
	profiles := store.List()
	active, _ := m.session.Active()

	if len(profiles) == 0 {
		if m.session.Bootstrapped() {
			return fmt.Sprintf("No calendar profiles configured.\n\nUsing the API key from LUMA_API_KEY as profile %q. Use configure_profile to add named calendars.", broker.BootstrapProfileName), nil
		}
		return "No calendar profiles configured. Use configure_profile to add a calendar API key.", nil
	}

	def := store.Default()
	var sb strings.Builder
	fmt.Fprintf(&sb, "Configured Calendars (%d):\n", len(profiles))
	for i, p := range profiles {
		var tags []string
		if p.Name == def {
			tags = append(tags, "default")
		}
		if p.Name == active.Name {
			tags = append(tags, "active")
		}
		fmt.Fprintf(&sb, "\n%d. **%s**", i+1, p.Name)
		if len(tags) > 0 {
			fmt.Fprintf(&sb, " (%s)", strings.Join(tags, ", "))
		}
		fmt.Fprintf(&sb, "\n   - Description: %s", firstNonEmpty("None", p.Description))
		fmt.Fprintf(&sb, "\n   - API Key: %s", maskKey(p.APIKey))
	}
	return sb.String(), nil
}

func (m *Module) switchProfile(ctx context.Context, params map[string]any) (string, error) {
	p, err := m.session.Switch(strings.TrimSpace(modules.String(params, "name")))
	if err != nil {
		return "", err
	}
	modules.SetProfile(ctx, p.Name)
	observability.LogProfileEvent(observability.RequestID(ctx), "switched", p.Name, nil)

	msg := fmt.Sprintf("✅ Switched to calendar profile %q.", p.Name)
	if p.Description != "" {
		msg += "\n- Description: " + p.Description
	}
	return msg + "\n\nThis selection lasts for the current session. Use configure_profile with set_as_default: true to change the default.", nil
}

func (m *Module) removeProfile(ctx context.Context, params map[string]any) (string, error) {
	name := strings.TrimSpace(modules.String(params, "name"))
	confirm := modules.Bool(params, "confirm", false)

	res, err := m.session.Store().Remove(ctx, name, confirm)
	if err != nil {
		return "", err
	}
	modules.SetProfile(ctx, name)

	if !res.Removed {
		msg := fmt.Sprintf("⚠️ Removing calendar profile %q requires confirmation.", name)
		if res.WasDefault {
			msg += " It is the current default."
		}
		return msg + "\n\nNo changes have been made. Run remove_profile again with `confirm: true` to delete it.", nil
	}

	m.session.Forget(name)
	observability.LogProfileEvent(observability.RequestID(ctx), "removed", name, map[string]any{
		"was_default": res.WasDefault,
		"new_default": res.NewDefault,
	})

	msg := fmt.Sprintf("✅ Calendar profile %q removed.", name)
	switch {
	case res.WasDefault && res.NewDefault != "":
		msg += fmt.Sprintf("\n- Default calendar is now %q.", res.NewDefault)
	case res.NewDefault == "":
		msg += "\n- No calendars remain. Use configure_profile to add one."
	}
	return msg, nil
}
