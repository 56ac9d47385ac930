package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch следит за файлом конфигурации и вызывает onChange при его
// изменении. Блокируется до отмены ctx.
//
// Наблюдается каталог, а не сам файл: редакторы и configuration
// management обычно пишут во временный файл и переименовывают его,
// из-за чего watch на inode файла теряется после первой замены.
//
// onChange — это flag-and-wake уведомление для основного цикла;
// самостоятельно Watch конфигурацию не перечитывает.
func Watch(ctx context.Context, path string, onChange func(), logger *slog.Logger) error {
	if path == "" {
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	dir := filepath.Dir(path)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	name := filepath.Clean(path)
	logger.Debug("watching config file", "path", name)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != name {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			logger.Debug("config file changed", "op", ev.Op.String())
			onChange()

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("config watcher error", "error", err)
		}
	}
}
