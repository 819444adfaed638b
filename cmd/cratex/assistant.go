package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hypnoticwarchief/cratex/internal/agent"
	"github.com/hypnoticwarchief/cratex/internal/dashboard"
	"github.com/hypnoticwarchief/cratex/internal/export"
	"github.com/hypnoticwarchief/cratex/internal/kvstore"
	"github.com/hypnoticwarchief/cratex/internal/server"
	"github.com/hypnoticwarchief/cratex/internal/status"
	"github.com/hypnoticwarchief/cratex/pkg/models"
)

// setting maps a user-facing name to its storage key
type setting struct {
	key    string
	secret bool
	check  func(string) error
}

var settings = map[string]setting{
	"api-key":       {key: kvstore.KeyAPIKey, secret: true},
	"spotify-token": {key: kvstore.KeySpotifyToken, secret: true},
	"model": {key: kvstore.KeyModel, check: func(v string) error {
		if _, ok := models.ParseModel(v); !ok {
			return fmt.Errorf("unknown model %q (known: %v)", v, models.KnownModels)
		}
		return nil
	}},
	"theme": {key: kvstore.KeyTheme, check: func(v string) error {
		if v != dashboard.ThemeDark && v != dashboard.ThemeLight {
			return fmt.Errorf("theme must be %q or %q", dashboard.ThemeDark, dashboard.ThemeLight)
		}
		return nil
	}},
}

func lookupSetting(name string) (setting, error) {
	s, ok := settings[name]
	if !ok {
		return setting{}, fmt.Errorf("unknown setting %q (api-key, spotify-token, model, theme)", name)
	}
	return s, nil
}

func maskSecret(v string) string {
	if len(v) <= 4 {
		return strings.Repeat("*", len(v))
	}
	return strings.Repeat("*", len(v)-4) + v[len(v)-4:]
}

func newSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Manage stored preferences and credentials",
	}

	setCmd := &cobra.Command{
		Use:   "set <name> <value>",
		Short: "Store a setting",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(func(_ context.Context, a *app, args []string) error {
			s, err := lookupSetting(args[0])
			if err != nil {
				return err
			}
			value := strings.TrimSpace(args[1])
			if s.check != nil {
				if err := s.check(value); err != nil {
					return err
				}
			}
			if err := a.kv.Set(s.key, value); err != nil {
				return fmt.Errorf("failed to store %s: %w", args[0], err)
			}
			a.view.Notify(dashboard.Notification{Message: args[0] + " saved.", Kind: dashboard.KindSuccess})
			return nil
		}),
	}

	getCmd := &cobra.Command{
		Use:   "get <name>",
		Short: "Print a stored setting",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(_ context.Context, a *app, args []string) error {
			s, err := lookupSetting(args[0])
			if err != nil {
				return err
			}
			value, ok, err := a.kv.Get(s.key)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}
			switch {
			case !ok:
				fmt.Println("(not set)")
			case s.secret:
				fmt.Println(maskSecret(value))
			default:
				fmt.Println(value)
			}
			return nil
		}),
	}

	clearCmd := &cobra.Command{
		Use:   "clear <name>",
		Short: "Remove a stored setting",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(_ context.Context, a *app, args []string) error {
			s, err := lookupSetting(args[0])
			if err != nil {
				return err
			}
			return a.kv.Delete(s.key)
		}),
	}

	cmd.AddCommand(setCmd, getCmd, clearCmd)
	return cmd
}

func newAskCmd() *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "ask <prompt>",
		Short: "Ask the CrateX agent",
		Long: `Ask the CrateX agent. The agent can start the pipeline, change the library
path, create playlists and look up tracks. With --mode the prompt is answered
directly without tools (fast, think or search).`,
		Args: cobra.MinimumNArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			prompt := strings.Join(args, " ")
			assistant := a.newAgent()

			if mode != "" {
				reply, err := assistant.Quick(ctx, prompt, agent.ParseMode(mode))
				if err != nil {
					return err
				}
				fmt.Println(reply)
				return nil
			}

			dispatcher := agent.NewDispatcher(a.status, a.controller.HandleAction, a.logger)
			appCtx := agent.AppContext{Path: a.status.CurrentPath(), Status: a.status.GetStatus(ctx)}
			reply, err := assistant.Ask(ctx, prompt, appCtx, dispatcher.Dispatch)
			if err != nil {
				a.view.ShowError(err)
				return reported(err)
			}
			fmt.Println(reply)

			if a.status.GetStatus(ctx).IsRunning {
				return a.follow(ctx)
			}
			return nil
		}),
	}
	cmd.Flags().StringVar(&mode, "mode", "", "Answer without tools: fast, think or search")
	return cmd
}

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the proposed moves",
	}

	var (
		out        string
		library    string
		aiComments bool
	)
	rekordboxCmd := &cobra.Command{
		Use:   "rekordbox",
		Short: "Write a Rekordbox XML collection",
		Long: `Write the proposed moves as a Rekordbox XML collection. When nothing is
proposed yet a dry run over the current library path runs first.`,
		Args: cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
			st := a.status.GetStatus(ctx)
			if len(st.ProposedChanges) == 0 && !st.IsRunning {
				cfg := a.cfg.DryRunDefaults()
				if err := a.controller.Analyze(ctx, "", &cfg); err != nil {
					return reported(err)
				}
			}
			if err := a.follow(ctx); err != nil {
				return err
			}

			doc, err := export.GenerateXML(ctx, export.Options{
				LibraryName:       library,
				IncludeAIComments: aiComments,
				Commenter:         a.newAgent(),
			}, a.controller.Last().Status.ProposedChanges)
			if err != nil {
				return err
			}
			doc = export.PatchXML(doc)

			if out == "-" {
				fmt.Print(doc)
				return nil
			}
			if err := os.WriteFile(out, []byte(doc), 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", out, err)
			}
			a.view.Notify(dashboard.Notification{Message: "Rekordbox XML written to " + out, Kind: dashboard.KindSuccess})
			return nil
		}),
	}
	rekordboxCmd.Flags().StringVarP(&out, "out", "o", "rekordbox.xml", `Output file ("-" for stdout)`)
	rekordboxCmd.Flags().StringVar(&library, "library", "CrateX", "Library name used in track locations")
	rekordboxCmd.Flags().BoolVar(&aiComments, "ai-comments", false, "Fill comments with AI genre notes")

	cmd.AddCommand(rekordboxCmd)
	return cmd
}

func newServeCmd() *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the simulated pipeline over the backend HTTP API",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
			addr := a.cfg.Server.Listen
			if listen != "" {
				addr = listen
			}

			srv := server.New(server.Options{
				Engine:  a.engine,
				History: a.history,
				Config: models.ConfigResponse{
					HasGeminiKey:         a.status.HasCredential(),
					DefaultMinConfidence: status.DefaultMinConfidence,
					CWD:                  a.cfg.Dashboard.DefaultPath,
					PreferredModel:       a.status.PreferredModel(),
				},
				Defaults: a.cfg.DryRunDefaults(),
			}, a.logger)
			return srv.ListenAndServe(ctx, addr)
		}),
	}
	cmd.Flags().StringVar(&listen, "listen", "", "Listen address (overrides server.listen)")
	return cmd
}
