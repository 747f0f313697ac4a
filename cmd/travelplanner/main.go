// Command travelplanner は旅行計画APIのサーバー、ワーカー、マイグレーションを起動する。
//
//	travelplanner [--env-file .env] [serve|worker|migrate|healthcheck]
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/hitoshi/travelplanner/internal/app"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "travelplanner: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := pflag.NewFlagSet("travelplanner", pflag.ContinueOnError)
	envFile := fs.String("env-file", "", "起動前に読み込む.envファイルのパス（既存の環境変数は上書きしない）")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", *envFile, err)
		}
	}

	return app.Run(os.Stdout, fs.Args())
}
