package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"seatwatch/internal/usos"
)

var (
	ErrNoRegistrations  = errors.New("error getting SW_REGISTRATIONS: no monitored registrations configured")
	ErrEmptyCredentials = errors.New("error getting SW_USOS_USERNAME/SW_USOS_PASSWORD: variable not specified or contains an empty string")
)

type Config struct {
	Env            string // Env is the current environment: local, dev, prod.
	StoragePath    string // StoragePath is the SQLite snapshot database file.
	CalendarPath   string // CalendarPath is the iCalendar export of the user's weekly plan.
	MinOccurrences int    // MinOccurrences is the regular-slot detection threshold.
	WatchCron      string // WatchCron, if set, runs the check cycle on this cron schedule.
	USOS           USOS
	Registrations  []usos.Registration
	Discord        Discord
	Tg             Telegram
}

type USOS struct {
	BaseURL  string
	CASURL   string
	Username string
	Password string
	Pace     time.Duration // Pace is the fixed delay between page fetches.
}

type Discord struct {
	Token  string // Token is the Discord bot token; empty disables the channel.
	UserID string // UserID is the DM recipient.
}

type Telegram struct {
	Token   string        // Token is an unique telegram bot token; empty disables the channel.
	ChatID  int64         // ChatID is the destination chat.
	Timeout time.Duration // Timeout is a poller timeout duration.
}

// MustLoad loads the configuration from environment variables and returns
// a Config struct. Missing registrations or USOS credentials are fatal
// before any fetch attempt; missing notification credentials are not.
func MustLoad() *Config {
	// Automatically binds environment variables to config keys
	viper.SetEnvPrefix("SW")
	viper.AutomaticEnv()

	// optional args
	viper.SetDefault("ENV", "production")
	viper.SetDefault("STORAGE_PATH", "seatwatch.db")
	viper.SetDefault("CALENDAR_PATH", "plan.ics")
	viper.SetDefault("MIN_OCCURRENCES", 3)
	viper.SetDefault("USOS_BASE_URL", "https://usosweb.usos.pw.edu.pl/kontroler.php")
	viper.SetDefault("USOS_CAS_URL", "https://cas.usos.pw.edu.pl/cas/login")
	viper.SetDefault("USOS_PACE", "300ms")
	viper.SetDefault("TELEGRAM_TIMEOUT", "15s")

	if viper.GetString("USOS_USERNAME") == "" || viper.GetString("USOS_PASSWORD") == "" {
		panic(ErrEmptyCredentials)
	}

	registrations, err := parseRegistrations(viper.GetString("REGISTRATIONS"))
	if err != nil {
		panic(err)
	}

	return &Config{
		Env:            viper.GetString("ENV"),
		StoragePath:    viper.GetString("STORAGE_PATH"),
		CalendarPath:   viper.GetString("CALENDAR_PATH"),
		MinOccurrences: viper.GetInt("MIN_OCCURRENCES"),
		WatchCron:      viper.GetString("WATCH_CRON"),
		USOS: USOS{
			BaseURL:  viper.GetString("USOS_BASE_URL"),
			CASURL:   viper.GetString("USOS_CAS_URL"),
			Username: viper.GetString("USOS_USERNAME"),
			Password: viper.GetString("USOS_PASSWORD"),
			Pace:     viper.GetDuration("USOS_PACE"),
		},
		Registrations: registrations,
		Discord: Discord{
			Token:  viper.GetString("DISCORD_TOKEN"),
			UserID: viper.GetString("DISCORD_USER_ID"),
		},
		Tg: Telegram{
			Token:   viper.GetString("TELEGRAM_TOKEN"),
			ChatID:  viper.GetInt64("TELEGRAM_CHAT_ID"),
			Timeout: viper.GetDuration("TELEGRAM_TIMEOUT"),
		},
	}
}

// parseRegistrations parses the comma-separated SW_REGISTRATIONS list.
// Each entry is "rej_kod@cdyd_kod" with an optional "@name" suffix, e.g.
// "6420-1000-2026L-A1M1@2026L@Jezyki od podstaw (M1)".
func parseRegistrations(raw string) ([]usos.Registration, error) {
	var registrations []usos.Registration

	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		parts := strings.SplitN(entry, "@", 3)
		if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("invalid registration entry %q: want rej_kod@cdyd_kod", entry)
		}

		reg := usos.Registration{Code: parts[0], Term: parts[1]}
		if len(parts) == 3 {
			reg.Name = parts[2]
		} else {
			reg.Name = parts[0]
		}
		registrations = append(registrations, reg)
	}

	if len(registrations) == 0 {
		return nil, ErrNoRegistrations
	}
	return registrations, nil
}
