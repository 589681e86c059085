package config

import "path/filepath"

// Defaults returns a Config with sensible defaults for a fresh install.
// Telegram stays disabled until a token is configured; the CLI channel works
// out of the box.
func Defaults() *Config {
	dir := DefaultConfigDir()
	return &Config{
		General: GeneralConfig{
			LogLevel: "info",
		},
		Channels: ChannelsConfig{
			Telegram: TelegramConfig{
				Enabled:   false,
				ParseMode: "Markdown",
			},
			CLI: CLIConfig{
				Enabled: true,
			},
		},
		Files: FilesConfig{
			AllowedDir: filepath.Join(dir, "outbox"),
		},
		History: HistoryConfig{
			Enabled:       true,
			DBPath:        filepath.Join(dir, "history.db"),
			RetentionDays: 90,
		},
		Tools: ToolsConfig{
			Capture: CaptureToolConfig{Enabled: false},
		},
	}
}
