package config

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"

	"SampleDeck/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
)

// Settings are the user preferences that may change while the process runs.
type Settings struct {
	RepeatAudio bool
	Volume      float64
}

// Settings returns the startup values of the live settings.
func (c *Config) Settings() Settings {
	return Settings{RepeatAudio: c.RepeatAudio, Volume: c.Volume}
}

// ReadSettings parses a settings file in .env syntax. Keys missing from the
// file keep the values in base.
func ReadSettings(path string, base Settings) (Settings, error) {
	values, err := godotenv.Read(path)
	if err != nil {
		return base, fmt.Errorf("read settings %s: %w", path, err)
	}

	s := base
	if v, ok := values["REPEAT_AUDIO"]; ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return base, fmt.Errorf("REPEAT_AUDIO: %w", err)
		}
		s.RepeatAudio = b
	}
	if v, ok := values["AUDIO_VOLUME"]; ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return base, fmt.Errorf("AUDIO_VOLUME: %w", err)
		}
		if f < 0 || f > 1 {
			return base, fmt.Errorf("AUDIO_VOLUME out of range: %v", f)
		}
		s.Volume = f
	}
	return s, nil
}

// WatchSettings re-reads path whenever it is written or replaced and hands
// the result to apply. It blocks until ctx is cancelled.
func WatchSettings(ctx context.Context, path string, base Settings, apply func(Settings)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create settings watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: editors usually replace the file instead of writing it.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	current := base
	if s, err := ReadSettings(path, base); err == nil {
		current = s
		apply(current)
	}

	target := filepath.Clean(path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			s, err := ReadSettings(path, current)
			if err != nil {
				logger.Warn("Ignoring invalid settings file",
					logger.String("path", path),
					logger.ErrorField(err))
				continue
			}
			if s != current {
				current = s
				logger.Info("Settings reloaded",
					logger.Bool("repeatAudio", s.RepeatAudio),
					logger.Float64("volume", s.Volume))
				apply(s)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Settings watcher error", logger.ErrorField(err))
		}
	}
}
