package main

import (
	"bufio"
	"context"
	"embed"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/menu"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
	"github.com/wailsapp/wails/v2/pkg/options/mac"
	"go.uber.org/zap"

	slidesApp "slides/internal/app"
	"slides/internal/config"
	"slides/internal/logging"
	"slides/internal/secret"
)

//go:embed all:frontend/dist
var assets embed.FS

//go:embed build/appicon.png
var icon []byte

var (
	// Global flags
	configPath string
	logLevel   string

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "slides",
	Short: "Slide deck editor",
	Long: `Slides is a desktop slide deck editor.

Run without arguments to open the editor window.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		logger, err = logging.New(cfg.Logging)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGUI()
	},
}

// mcpCmd serves the editor to AI agents over stdio.
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run a standalone MCP server on stdin/stdout",
	Long: `Runs the MCP server without a window so an agent can build decks.

Destructive tools (delete_slide, remove_element) wait until the user
approves them in a running editor window.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		return slidesApp.ServeMCP(ctx, cfg, logger)
	},
}

var (
	exportDeck   string
	exportFormat string
	exportOut    string
)

// exportCmd writes a stored deck without opening the editor.
var exportCmd = &cobra.Command{
	Use:     "export",
	Short:   "Export a saved deck to pptx, pdf or docx",
	Example: `  slides export --deck "Quarterly review" --format pdf --out ~/Desktop/review.pdf`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		id, err := slidesApp.ExportHeadless(ctx, cfg, logger, exportDeck, exportFormat, exportOut)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "exported deck %s as %s\n", id, exportFormat)
		return nil
	},
}

// passwordCmd stores the storage server password in the keychain.
var passwordCmd = &cobra.Command{
	Use:   "storage-password",
	Short: "Save the mysql/postgres/mongodb password in the keychain",
	Long: `Reads the password from stdin and stores it in the macOS keychain under
storage.password_key. SLIDES_DB_PASSWORD, when set, still takes precedence.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("read password: %w", err)
		}
		pw := strings.TrimRight(line, "\r\n")
		if pw == "" {
			return fmt.Errorf("password is empty")
		}
		if err := secret.NewKeychainStore().Set(cfg.Storage.PasswordKey, []byte(pw)); err != nil {
			return err
		}
		logger.Info("storage password saved", zap.String("key", cfg.Storage.PasswordKey))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath(), "config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logging.level (debug, info, warn, error)")

	exportCmd.Flags().StringVar(&exportDeck, "deck", "", "deck id or name")
	exportCmd.Flags().StringVar(&exportFormat, "format", "pptx", "pptx, pdf or docx")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file")
	exportCmd.MarkFlagRequired("deck")
	exportCmd.MarkFlagRequired("out")

	rootCmd.AddCommand(mcpCmd, exportCmd, passwordCmd)
}

func runGUI() error {
	app := slidesApp.New(cfg, logger)

	// macOS needs an Edit menu for Cmd+C/V/X/A to reach the WebView
	appMenu := menu.NewMenu()
	appMenu.Append(menu.EditMenu())

	return wails.Run(&options.App{
		Title:     "Slides",
		Width:     1280,
		Height:    800,
		MinWidth:  800,
		MinHeight: 600,
		AssetServer: &assetserver.Options{
			Assets: assets,
		},
		BackgroundColour: &options.RGBA{R: 15, G: 15, B: 20, A: 1},
		Menu:             appMenu,
		OnStartup:        app.Startup,
		OnShutdown:       app.Shutdown,
		Bind: []interface{}{
			app,
		},
		Mac: &mac.Options{
			TitleBar: &mac.TitleBar{
				TitlebarAppearsTransparent: true,
				HideTitle:                  true,
				HideTitleBar:               false,
				FullSizeContent:            true,
				UseToolbar:                 true,
				HideToolbarSeparator:       true,
			},
			WebviewIsTransparent: false,
			WindowIsTranslucent:  false,
			About: &mac.AboutInfo{
				Title:   "Slides",
				Message: "Slide deck editor with pptx, pdf and docx export",
				Icon:    icon,
			},
		},
	})
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
