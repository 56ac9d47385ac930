// worker-spark — фоновый воркер-"искра" для PostgreSQL.
//
// С заданным интервалом (или по cron-расписанию) проверяет, существует
// ли в каталоге базы процедура schema.procedure, и если да — вызывает
// её в собственной транзакции. Дешёвый периодический тик для внешних
// планировщиков, живущий рядом с базой.
//
// Управление на лету:
//   - SIGHUP, изменение конфиг-файла или сообщение {"type":"reload"}
//     в очереди spark.control — перечитать конфигурацию
//   - SIGTERM/SIGINT или {"type":"terminate"} — graceful shutdown
//
// Использование:
//
//	worker-spark [--config FILE]
//	worker-spark service [install|uninstall|start|stop|restart]
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var cfgPath string

	rootCmd := &cobra.Command{
		Use:           "worker-spark",
		Short:         "Periodic stored procedure spark for PostgreSQL",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runService(cfgPath, "")
		},
	}

	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to the YAML config file")

	rootCmd.AddCommand(newServiceCmd(&cfgPath))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
